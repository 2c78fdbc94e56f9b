package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchclub/couchclub-sync/internal/bus"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/remote"
	"github.com/couchclub/couchclub-sync/internal/store"
)

const (
	// Restore fans out one goroutine per entity, bounded.
	restoreConcurrency = 4

	retryAttempts = 3
	retryBaseWait = 250 * time.Millisecond
)

// Restore rebuilds the device's local state after sign-in: every watchlist
// and chatroom the user is a member of, the catalog items they reference,
// and the user's watched set. One failing entity is retried with backoff
// and then dropped with a warning; it never aborts its siblings. Exactly
// one bulk event per entity kind is published at the end.
func (c *Coordinator) Restore(ctx context.Context) error {
	userID, err := c.currentUser()
	if err != nil {
		return err
	}

	watchlistDocs, err := c.remote.Query(ctx, remote.CollectionWatchlists, "users", remote.OpArrayContains, userID)
	if err != nil {
		return fmt.Errorf("restore: query watchlists: %w", err)
	}
	chatroomDocs, err := c.remote.Query(ctx, remote.CollectionChatrooms, "users", remote.OpArrayContains, userID)
	if err != nil {
		return fmt.Errorf("restore: query chatrooms: %w", err)
	}

	// Watchlists before chatrooms: watchlist-scoped rooms expect their
	// subject to be present.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restoreConcurrency)
	for _, doc := range watchlistDocs {
		g.Go(func() error {
			if err := c.restoreWatchlistDoc(gctx, doc); err != nil {
				c.logger.Warn("dropping watchlist from restore",
					slog.String("watchlist_id", doc.ID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(restoreConcurrency)
	for _, doc := range chatroomDocs {
		g.Go(func() error {
			if err := c.restoreChatroomDoc(gctx, doc); err != nil {
				c.logger.Warn("dropping chatroom from restore",
					slog.String("chatroom_id", doc.ID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := c.restoreWatched(ctx, userID); err != nil {
		c.logger.Warn("watched state not restored", slog.Any("error", err))
	}

	c.bus.Publish(bus.NewWatchlistsChangedEvent())
	c.bus.Publish(bus.NewChatroomsChangedEvent())
	c.logger.Info("restore complete",
		slog.Int("watchlists", len(watchlistDocs)),
		slog.Int("chatrooms", len(chatroomDocs)))
	return nil
}

// restoreWatchlistDoc mirrors one remote watchlist locally, fetching any
// item records this device is missing. An item whose catalog lookup keeps
// failing is dropped from the local copy; the reference stays remote and
// heals on a later restore.
func (c *Coordinator) restoreWatchlistDoc(ctx context.Context, doc remote.Document) error {
	watchlist, err := watchlistFromDoc(doc)
	if err != nil {
		return err
	}

	kept := watchlist.ItemIDs[:0:0]
	for _, itemID := range watchlist.ItemIDs {
		err := withRetry(ctx, func() error {
			_, err := c.ensureItem(ctx, itemID)
			return err
		})
		if err != nil {
			c.logger.Warn("dropping unresolvable item from watchlist",
				slog.String("watchlist_id", watchlist.ID),
				slog.String("item_id", itemID),
				slog.Any("error", err))
			continue
		}
		kept = append(kept, itemID)
	}
	watchlist.ItemIDs = kept

	if err := c.store.Watchlists.Create(ctx, watchlist); err != nil {
		if !apperrors.Is(err, store.ErrAlreadyExists) {
			return err
		}
		if err := c.store.Watchlists.Update(ctx, watchlist); err != nil {
			return err
		}
	}
	return nil
}

// restoreChatroomDoc mirrors one remote chatroom locally and starts its
// listeners.
func (c *Coordinator) restoreChatroomDoc(ctx context.Context, doc remote.Document) error {
	chatroom, err := chatroomFromDoc(doc)
	if err != nil {
		return err
	}

	if _, isItemRoom := chatroom.Type.SubjectItemKind(); isItemRoom {
		err := withRetry(ctx, func() error {
			_, err := c.ensureItem(ctx, chatroom.SubjectID)
			return err
		})
		if err != nil {
			return fmt.Errorf("subject item %s: %w", chatroom.SubjectID, err)
		}
	}

	if err := c.store.Chatrooms.Create(ctx, chatroom); err != nil {
		if !apperrors.Is(err, store.ErrAlreadyExists) {
			return err
		}
		if err := c.store.Chatrooms.Update(ctx, chatroom); err != nil {
			return err
		}
	}

	return c.listeners.WatchChatroom(ctx, chatroom.ID)
}

// restoreWatched mirrors the user's watched set. A user who never toggled
// the flag has no document, which is fine.
func (c *Coordinator) restoreWatched(ctx context.Context, userID string) error {
	doc, err := c.remote.GetDocument(ctx, remote.CollectionWatched, userID)
	if apperrors.Is(err, remote.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, itemID := range slices.Compact(watchedItems(doc)) {
		if err := c.store.SetItemWatched(ctx, userID, itemID, true); err != nil {
			return err
		}
	}
	return nil
}

// withRetry runs fn with bounded exponential backoff.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	wait := retryBaseWait
	for attempt := range retryAttempts {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts-1 {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		wait *= 2
	}
	return err
}
