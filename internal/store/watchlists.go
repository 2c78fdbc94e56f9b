package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchclub/couchclub-sync/internal/domain"
)

// AddItemToWatchlist stores the item record (if new) and appends its id to the
// watchlist. Adding an item that is already on the list is a no-op.
func (s *Store) AddItemToWatchlist(ctx context.Context, watchlistID string, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	watchlist, err := s.Watchlists.Get(ctx, watchlistID)
	if err != nil {
		return fmt.Errorf("get watchlist: %w", err)
	}

	if err := s.Items.Create(ctx, item); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("store item: %w", err)
	}

	if watchlist.HasItem(item.ID) {
		return nil
	}
	watchlist.AddItem(item.ID)
	if err := s.Watchlists.Update(ctx, watchlist); err != nil {
		return fmt.Errorf("update watchlist: %w", err)
	}
	return nil
}

// RemoveItemFromWatchlist removes the item id from the watchlist and prunes
// the item record when nothing references it anymore. Reports whether the
// item record was deleted.
func (s *Store) RemoveItemFromWatchlist(ctx context.Context, watchlistID, itemID string) (bool, error) {
	watchlist, err := s.Watchlists.Get(ctx, watchlistID)
	if err != nil {
		return false, fmt.Errorf("get watchlist: %w", err)
	}

	watchlist.RemoveItem(itemID)
	if err := s.Watchlists.Update(ctx, watchlist); err != nil {
		return false, fmt.Errorf("update watchlist: %w", err)
	}

	return s.pruneItem(ctx, itemID)
}

// DeleteWatchlist removes the watchlist and prunes any of its items that are
// no longer referenced elsewhere. Idempotent.
func (s *Store) DeleteWatchlist(ctx context.Context, id string) error {
	watchlist, err := s.Watchlists.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get watchlist: %w", err)
	}

	if err := s.Watchlists.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}

	for _, itemID := range watchlist.ItemIDs {
		if _, err := s.pruneItem(ctx, itemID); err != nil {
			return err
		}
	}
	return nil
}

// pruneItem deletes the item record when no watchlist contains it and no
// chatroom has it as subject. Items are shared across watchlists, so the
// record must outlive any single membership.
func (s *Store) pruneItem(ctx context.Context, itemID string) (bool, error) {
	referenced, err := s.itemReferenced(ctx, itemID)
	if err != nil {
		return false, err
	}
	if referenced {
		return false, nil
	}

	if err := s.Items.Delete(ctx, itemID); err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return true, nil
}

func (s *Store) itemReferenced(ctx context.Context, itemID string) (bool, error) {
	for watchlist, err := range s.Watchlists.List(ctx) {
		if err != nil {
			return false, fmt.Errorf("list watchlists: %w", err)
		}
		if watchlist.HasItem(itemID) {
			return true, nil
		}
	}

	rooms, err := s.Chatrooms.ListByIndex(ctx, "subject", itemID)
	if err != nil {
		return false, fmt.Errorf("list chatrooms by subject: %w", err)
	}
	return len(rooms) > 0, nil
}
