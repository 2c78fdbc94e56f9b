package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/id"
	"github.com/couchclub/couchclub-sync/internal/remote"
)

type createWatchlistInput struct {
	Title string `validate:"required,min=1,max=100"`
}

// CreateWatchlist creates a typed watchlist owned by the current user.
func (c *Coordinator) CreateWatchlist(ctx context.Context, title string, kind domain.ItemKind) (*domain.Watchlist, error) {
	userID, err := c.currentUser()
	if err != nil {
		return nil, err
	}
	if err := c.validate.Validate(createWatchlistInput{Title: title}); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, apperrors.Validationf("unknown watchlist type %q", kind)
	}

	watchlist := &domain.Watchlist{
		ID:      id.NewUUID(),
		Title:   title,
		Type:    kind,
		OwnerID: userID,
		UserIDs: []string{userID},
	}

	// Placeholder first; the id is client-generated.
	if err := c.store.Watchlists.Create(ctx, watchlist); err != nil {
		return nil, fmt.Errorf("create watchlist: %w", err)
	}
	if err := c.remote.SetDocument(ctx, remote.CollectionWatchlists, watchlist.ID, watchlistFields(watchlist)); err != nil {
		if delErr := c.store.Watchlists.Delete(ctx, watchlist.ID); delErr != nil {
			c.logger.Error("compensating delete failed",
				slog.String("watchlist_id", watchlist.ID),
				slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("create watchlist: %w", err)
	}

	c.bus.Publish(bus.NewWatchlistsChangedEvent())
	c.logger.Info("watchlist created",
		slog.String("watchlist_id", watchlist.ID),
		slog.String("type", string(kind)))
	return watchlist, nil
}

// DeleteWatchlist removes a watchlist the current user owns.
func (c *Coordinator) DeleteWatchlist(ctx context.Context, watchlistID string) error {
	userID, err := c.currentUser()
	if err != nil {
		return err
	}

	watchlist, err := c.store.Watchlists.Get(ctx, watchlistID)
	if err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}
	if watchlist.OwnerID != userID {
		return apperrors.Forbidden("only the owner can delete a watchlist")
	}

	if err := c.remote.DeleteDocument(ctx, remote.CollectionWatchlists, watchlistID); err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}
	if err := c.store.DeleteWatchlist(ctx, watchlistID); err != nil {
		return c.diverged("delete watchlist", err)
	}

	c.bus.Publish(bus.NewWatchlistsChangedEvent())
	c.logger.Info("watchlist deleted", slog.String("watchlist_id", watchlistID))
	return nil
}

// AddToWatchlist adds a catalog item to a watchlist. The full record is
// fetched from the catalog when this device has not seen the item before.
func (c *Coordinator) AddToWatchlist(ctx context.Context, itemID, watchlistID string) error {
	if _, err := c.currentUser(); err != nil {
		return err
	}

	watchlist, err := c.store.Watchlists.Get(ctx, watchlistID)
	if err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	if watchlist.HasItem(itemID) {
		return nil
	}

	item, err := c.ensureItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	if item.Kind != watchlist.Type {
		return apperrors.Conflict(fmt.Sprintf("cannot add a %s to a %s watchlist", item.Kind, watchlist.Type))
	}

	err = c.remote.UpdateDocument(ctx, remote.CollectionWatchlists, watchlistID, []remote.Update{
		remote.ArrayUnion("items", itemID),
	})
	if err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	if err := c.store.AddItemToWatchlist(ctx, watchlistID, item); err != nil {
		return c.diverged("add to watchlist", err)
	}

	c.publishWatchlistChanged(ctx, watchlistID)
	return nil
}

// RemoveFromWatchlist removes an item from a watchlist. The item record is
// pruned locally once nothing references it.
func (c *Coordinator) RemoveFromWatchlist(ctx context.Context, itemID, watchlistID string) error {
	if _, err := c.currentUser(); err != nil {
		return err
	}

	watchlist, err := c.store.Watchlists.Get(ctx, watchlistID)
	if err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	if !watchlist.HasItem(itemID) {
		return nil
	}

	err = c.remote.UpdateDocument(ctx, remote.CollectionWatchlists, watchlistID, []remote.Update{
		remote.ArrayRemove("items", itemID),
	})
	if err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	if _, err := c.store.RemoveItemFromWatchlist(ctx, watchlistID, itemID); err != nil {
		return c.diverged("remove from watchlist", err)
	}

	c.publishWatchlistChanged(ctx, watchlistID)
	return nil
}

// SetWatched flips the current user's watched flag for an item.
func (c *Coordinator) SetWatched(ctx context.Context, itemID string, watched bool) error {
	userID, err := c.currentUser()
	if err != nil {
		return err
	}

	update := remote.ArrayRemove("items", itemID)
	if watched {
		update = remote.ArrayUnion("items", itemID)
	}
	err = c.remote.UpdateDocument(ctx, remote.CollectionWatched, userID, []remote.Update{update})
	if apperrors.Is(err, remote.ErrNotFound) {
		// First toggle for this user; the document does not exist yet.
		items := []string{}
		if watched {
			items = append(items, itemID)
		}
		err = c.remote.SetDocument(ctx, remote.CollectionWatched, userID, map[string]any{"items": items})
	}
	if err != nil {
		return fmt.Errorf("set watched: %w", err)
	}

	if err := c.store.SetItemWatched(ctx, userID, itemID, watched); err != nil {
		return c.diverged("set watched", err)
	}

	c.bus.Publish(bus.NewItemWatchedChangedEvent(itemID, watched))
	return nil
}

// publishWatchlistChanged publishes the watchlist's change event plus a
// change event for every chatroom scoped to it, so open room views showing
// the list refresh too.
func (c *Coordinator) publishWatchlistChanged(ctx context.Context, watchlistID string) {
	c.bus.Publish(bus.NewWatchlistChangedEvent(watchlistID))

	rooms, err := c.store.ListChatroomsBySubject(ctx, watchlistID)
	if err != nil {
		c.logger.Warn("chatroom fan-out lookup failed",
			slog.String("watchlist_id", watchlistID),
			slog.Any("error", err))
		return
	}
	for _, room := range rooms {
		c.bus.Publish(bus.NewChatroomChangedEvent(room.ID))
	}
}
