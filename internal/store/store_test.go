package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchclub/couchclub-sync/internal/domain"
	"github.com/couchclub/couchclub-sync/internal/store"
)

func movieItem(id, title string) *domain.Item {
	return &domain.Item{
		ID:    id,
		Kind:  domain.ItemKindMovie,
		Title: title,
		Movie: &domain.MovieInfo{},
	}
}

func createWatchlist(t *testing.T, s *store.Store, id, owner string) *domain.Watchlist {
	t.Helper()
	w := &domain.Watchlist{
		ID:      id,
		Title:   "Movie night",
		Type:    domain.ItemKindMovie,
		OwnerID: owner,
		UserIDs: []string{owner},
	}
	require.NoError(t, s.Watchlists.Create(context.Background(), w))
	return w
}

func TestStore_AddItemToWatchlist(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createWatchlist(t, s, "wl1", "alice")

	item := movieItem("tt001", "Blade Runner")
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", item))

	w, err := s.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.True(t, w.HasItem("tt001"))

	stored, err := s.Items.Get(ctx, "tt001")
	require.NoError(t, err)
	require.Equal(t, "Blade Runner", stored.Title)

	// Adding again is a no-op, not a duplicate.
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", item))
	w, err = s.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.Len(t, w.ItemIDs, 1)
}

func TestStore_RemoveItemFromWatchlist_PrunesOrphan(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createWatchlist(t, s, "wl1", "alice")
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", movieItem("tt001", "Blade Runner")))

	deleted, err := s.RemoveItemFromWatchlist(ctx, "wl1", "tt001")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = s.Items.Get(ctx, "tt001")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_RemoveItemFromWatchlist_KeepsSharedItem(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createWatchlist(t, s, "wl1", "alice")
	createWatchlist(t, s, "wl2", "alice")
	item := movieItem("tt001", "Blade Runner")
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", item))
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl2", item))

	deleted, err := s.RemoveItemFromWatchlist(ctx, "wl1", "tt001")
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = s.Items.Get(ctx, "tt001")
	require.NoError(t, err)
}

func TestStore_RemoveItemFromWatchlist_KeepsChatroomSubject(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createWatchlist(t, s, "wl1", "alice")
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", movieItem("tt001", "Blade Runner")))

	room := &domain.Chatroom{
		ID:         "cr1",
		InviteCode: "ABCD2345",
		Title:      "Blade Runner talk",
		Type:       domain.ChatroomTypeMovie,
		SubjectID:  "tt001",
		OwnerID:    "alice",
		UserIDs:    []string{"alice"},
	}
	require.NoError(t, s.Chatrooms.Create(ctx, room))

	deleted, err := s.RemoveItemFromWatchlist(ctx, "wl1", "tt001")
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = s.Items.Get(ctx, "tt001")
	require.NoError(t, err)
}

func TestStore_DeleteWatchlist_PrunesOrphans(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createWatchlist(t, s, "wl1", "alice")
	createWatchlist(t, s, "wl2", "alice")
	shared := movieItem("tt-shared", "Heat")
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", shared))
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl2", shared))
	require.NoError(t, s.AddItemToWatchlist(ctx, "wl1", movieItem("tt-solo", "Ronin")))

	require.NoError(t, s.DeleteWatchlist(ctx, "wl1"))

	_, err := s.Watchlists.Get(ctx, "wl1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Orphaned item goes, shared item stays.
	_, err = s.Items.Get(ctx, "tt-solo")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Items.Get(ctx, "tt-shared")
	require.NoError(t, err)

	// Deleting again is fine.
	require.NoError(t, s.DeleteWatchlist(ctx, "wl1"))
}

func TestStore_ChatroomByInviteCode(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	room := &domain.Chatroom{
		ID:         "cr1",
		InviteCode: "WXYZ7890",
		Title:      "General",
		Type:       domain.ChatroomTypeWatchlist,
		SubjectID:  "wl1",
		OwnerID:    "alice",
		UserIDs:    []string{"alice"},
	}
	require.NoError(t, s.Chatrooms.Create(ctx, room))

	found, err := s.GetChatroomByInviteCode(ctx, "WXYZ7890")
	require.NoError(t, err)
	require.Equal(t, "cr1", found.ID)

	_, err = s.GetChatroomByInviteCode(ctx, "NOPE0000")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ChatroomMembership(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	room := &domain.Chatroom{
		ID:         "cr1",
		InviteCode: "AAAA2222",
		Title:      "General",
		Type:       domain.ChatroomTypeWatchlist,
		SubjectID:  "wl1",
		OwnerID:    "alice",
		UserIDs:    []string{"alice"},
	}
	require.NoError(t, s.Chatrooms.Create(ctx, room))

	require.NoError(t, s.AddUserToChatroom(ctx, "cr1", "bob"))
	require.NoError(t, s.AddUserToChatroom(ctx, "cr1", "bob")) // no duplicate

	got, err := s.Chatrooms.Get(ctx, "cr1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, got.UserIDs)

	require.NoError(t, s.RemoveUserFromChatroom(ctx, "cr1", "bob"))
	// The owner is never removed.
	require.NoError(t, s.RemoveUserFromChatroom(ctx, "cr1", "alice"))

	got, err = s.Chatrooms.Get(ctx, "cr1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, got.UserIDs)
}

func TestStore_DeleteChatroomWithMessages(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	room := &domain.Chatroom{
		ID:         "cr1",
		InviteCode: "BBBB3333",
		Title:      "Blade Runner talk",
		Type:       domain.ChatroomTypeMovie,
		SubjectID:  "tt001",
		OwnerID:    "alice",
		UserIDs:    []string{"alice"},
	}
	require.NoError(t, s.Chatrooms.Create(ctx, room))
	require.NoError(t, s.Items.Create(ctx, movieItem("tt001", "Blade Runner")))

	now := time.Now()
	for i, text := range []string{"hi", "anyone here?", "ok"} {
		msg := &domain.Message{
			ID:         string(rune('a' + i)),
			Text:       text,
			SenderID:   "alice",
			ChatroomID: "cr1",
			Date:       now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Messages.Create(ctx, msg))
	}

	require.NoError(t, s.DeleteChatroomWithMessages(ctx, "cr1"))

	_, err := s.Chatrooms.Get(ctx, "cr1")
	require.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := s.ListMessagesByChatroom(ctx, "cr1")
	require.NoError(t, err)
	require.Empty(t, msgs)

	// The subject item had no other reference.
	_, err = s.Items.Get(ctx, "tt001")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Idempotent.
	require.NoError(t, s.DeleteChatroomWithMessages(ctx, "cr1"))
}

func TestStore_ListMessagesByChatroom_SortedByDate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// Insert out of order on purpose.
	for _, m := range []struct {
		id     string
		offset time.Duration
	}{
		{"m-c", 2 * time.Minute},
		{"m-a", 0},
		{"m-b", time.Minute},
	} {
		msg := &domain.Message{
			ID:         m.id,
			Text:       "text",
			SenderID:   "alice",
			ChatroomID: "cr1",
			Date:       base.Add(m.offset),
		}
		require.NoError(t, s.Messages.Create(ctx, msg))
	}

	msgs, err := s.ListMessagesByChatroom(ctx, "cr1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "m-a", msgs[0].ID)
	require.Equal(t, "m-b", msgs[1].ID)
	require.Equal(t, "m-c", msgs[2].ID)
}

func TestStore_UnseenAndMarkSeen(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now()
	for i, seen := range []bool{true, false, false} {
		msg := &domain.Message{
			ID:         string(rune('a' + i)),
			Text:       "text",
			SenderID:   "bob",
			ChatroomID: "cr1",
			Date:       now.Add(time.Duration(i) * time.Second),
			Seen:       seen,
		}
		require.NoError(t, s.Messages.Create(ctx, msg))
	}

	count, err := s.UnseenMessageCount(ctx, "cr1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, s.MarkChatroomSeen(ctx, "cr1"))

	count, err = s.UnseenMessageCount(ctx, "cr1")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestStore_Watched(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	watched, err := s.IsItemWatched(ctx, "alice", "tt001")
	require.NoError(t, err)
	require.False(t, watched)

	require.NoError(t, s.SetItemWatched(ctx, "alice", "tt001", true))

	watched, err = s.IsItemWatched(ctx, "alice", "tt001")
	require.NoError(t, err)
	require.True(t, watched)

	// Per-user state.
	watched, err = s.IsItemWatched(ctx, "bob", "tt001")
	require.NoError(t, err)
	require.False(t, watched)

	require.NoError(t, s.SetItemWatched(ctx, "alice", "tt001", false))
	watched, err = s.IsItemWatched(ctx, "alice", "tt001")
	require.NoError(t, err)
	require.False(t, watched)
}

func TestStore_Reset(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createWatchlist(t, s, "wl1", "alice")
	require.NoError(t, s.Users.Create(ctx, &domain.User{ID: "alice", Username: "alice"}))

	require.NoError(t, s.Reset())

	_, err := s.Watchlists.Get(ctx, "wl1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users.Get(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}
