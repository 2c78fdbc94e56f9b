// Package store implements the on-device local store backed by Badger.
//
// The local store is a mirror of the remote document store for the signed-in
// user: every record in it corresponds to a remote document the user can see.
// Badger serializes write transactions, which gives mutations from concurrent
// UI actions a stable one-at-a-time order without extra locking here.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/couchclub/couchclub-sync/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Users      *Entity[domain.User]
	Watchlists *Entity[domain.Watchlist]
	Items      *Entity[domain.Item]
	Chatrooms  *Entity[domain.Chatroom]
	Messages   *Entity[domain.Message]
	Watched    *Entity[domain.WatchedList]
}

// New creates a new Store instance with the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}
	store.initEntities()

	if logger != nil {
		logger.Info("local store opened", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing local store")
	}
	return s.db.Close()
}

// Reset drops all local data. Called on sign-out so that nothing from the
// previous identity survives into the next session.
func (s *Store) Reset() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop local data: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("local store reset")
	}
	return nil
}

// initEntities initializes the generic entities and their indexes.
func (s *Store) initEntities() {
	s.Users = NewEntity[domain.User](s, "user:",
		func(u *domain.User) string { return u.ID })

	s.Watchlists = NewEntity[domain.Watchlist](s, "watchlist:",
		func(w *domain.Watchlist) string { return w.ID })

	s.Items = NewEntity[domain.Item](s, "item:",
		func(i *domain.Item) string { return i.ID })

	// Invite codes are globally unique; subject ids are shared by any number
	// of chatrooms bound to the same watchlist or item.
	s.Chatrooms = NewEntity[domain.Chatroom](s, "chatroom:",
		func(c *domain.Chatroom) string { return c.ID }).
		WithUniqueIndex("invite_code", func(c *domain.Chatroom) string { return c.InviteCode }).
		WithIndex("subject", func(c *domain.Chatroom) string { return c.SubjectID })

	s.Messages = NewEntity[domain.Message](s, "message:",
		func(m *domain.Message) string { return m.ID }).
		WithIndex("chatroom", func(m *domain.Message) string { return m.ChatroomID })

	s.Watched = NewEntity[domain.WatchedList](s, "watched:",
		func(w *domain.WatchedList) string { return w.UserID })
}
