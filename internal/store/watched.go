package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchclub/couchclub-sync/internal/domain"
)

// GetWatched returns the user's watched list, empty if none exists yet.
func (s *Store) GetWatched(ctx context.Context, userID string) (*domain.WatchedList, error) {
	watched, err := s.Watched.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &domain.WatchedList{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watched list: %w", err)
	}
	return watched, nil
}

// SetItemWatched updates the user's watched flag for an item, creating the
// watched list on first use.
func (s *Store) SetItemWatched(ctx context.Context, userID, itemID string, watched bool) error {
	list, err := s.GetWatched(ctx, userID)
	if err != nil {
		return err
	}
	list.SetWatched(itemID, watched)

	err = s.Watched.Update(ctx, list)
	if errors.Is(err, ErrNotFound) {
		err = s.Watched.Create(ctx, list)
	}
	if err != nil {
		return fmt.Errorf("store watched list: %w", err)
	}
	return nil
}

// IsItemWatched reports the user's watched flag for an item.
func (s *Store) IsItemWatched(ctx context.Context, userID, itemID string) (bool, error) {
	list, err := s.GetWatched(ctx, userID)
	if err != nil {
		return false, err
	}
	return list.Watched(itemID), nil
}
