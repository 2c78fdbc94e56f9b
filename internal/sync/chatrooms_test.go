package sync_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/store"
)

func TestCoordinator_CreateChatroom_WatchlistScoped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)

	wl, err := f.coord.CreateWatchlist(ctx, "Movie night", domain.ItemKindMovie)
	require.NoError(t, err)
	f.drainEvents()

	room, err := f.coord.CreateChatroom(ctx, "List talk", domain.ChatroomTypeWatchlist, wl.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, room.OwnerID)
	require.Len(t, room.InviteCode, 8)
	require.Equal(t, []string{user.ID}, room.UserIDs)

	doc, err := f.memory.GetDocument(ctx, "chatrooms", room.ID)
	require.NoError(t, err)
	code, _ := doc.String("inviteCode")
	require.Equal(t, room.InviteCode, code)

	require.True(t, f.registry.Watching(room.ID))

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomsChanged))
}

func TestCoordinator_CreateChatroom_ItemScoped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	require.NoError(t, f.store.Items.Create(ctx, movieItem("tt001", "Blade Runner")))

	room, err := f.coord.CreateChatroom(ctx, "Blade Runner talk", domain.ChatroomTypeMovie, "tt001")
	require.NoError(t, err)
	require.Equal(t, "tt001", room.SubjectID)

	// A show room needs a series subject.
	_, err = f.coord.CreateChatroom(ctx, "Wrong kind", domain.ChatroomTypeShow, "tt001")
	require.ErrorIs(t, err, apperrors.ErrConflict)

	// Unknown subject.
	_, err = f.coord.CreateChatroom(ctx, "Nothing", domain.ChatroomTypeMovie, "tt-missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCoordinator_CreateChatroom_RemoteFailureCompensates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	wl, err := f.coord.CreateWatchlist(ctx, "Movie night", domain.ItemKindMovie)
	require.NoError(t, err)
	f.drainEvents()

	f.remote.failNextSet = fmt.Errorf("network down")

	_, err = f.coord.CreateChatroom(ctx, "List talk", domain.ChatroomTypeWatchlist, wl.ID)
	require.Error(t, err)

	count := 0
	for range f.store.Chatrooms.List(ctx) {
		count++
	}
	require.Zero(t, count)
	require.Empty(t, f.drainEvents())
}

func TestCoordinator_DeleteChatroom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	wl, err := f.coord.CreateWatchlist(ctx, "Movie night", domain.ItemKindMovie)
	require.NoError(t, err)
	room, err := f.coord.CreateChatroom(ctx, "List talk", domain.ChatroomTypeWatchlist, wl.ID)
	require.NoError(t, err)
	_, err = f.coord.SendMessage(ctx, room.ID, "first!")
	require.NoError(t, err)
	f.drainEvents()

	require.NoError(t, f.coord.DeleteChatroom(ctx, room.ID))

	_, err = f.memory.GetDocument(ctx, "chatrooms", room.ID)
	require.Error(t, err)
	_, err = f.store.Chatrooms.Get(ctx, room.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)

	require.False(t, f.registry.Watching(room.ID))

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomDeleted))
	require.Equal(t, 1, countType(events, bus.EventChatroomsChanged))
}

func TestCoordinator_DeleteChatroom_NonOwnerForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	foreign := &domain.Chatroom{
		ID: "cr-foreign", InviteCode: "ZZZZ9999", Title: "Bob's room",
		Type: domain.ChatroomTypeWatchlist, SubjectID: "wl-x",
		OwnerID: "bob-id", UserIDs: []string{"bob-id"},
	}
	require.NoError(t, f.store.Chatrooms.Create(ctx, foreign))

	err := f.coord.DeleteChatroom(ctx, "cr-foreign")
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCoordinator_LeaveChatroom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)

	// A room owned by bob that alice is a member of, both remotely and
	// locally.
	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr1", map[string]any{
		"owner": "bob-id", "title": "Bob's room", "type": "watchlist",
		"subjectID": "wl-x", "inviteCode": "AAAA1111",
		"users": []string{"bob-id", user.ID},
	}))
	require.NoError(t, f.store.Chatrooms.Create(ctx, &domain.Chatroom{
		ID: "cr1", InviteCode: "AAAA1111", Title: "Bob's room",
		Type: domain.ChatroomTypeWatchlist, SubjectID: "wl-x",
		OwnerID: "bob-id", UserIDs: []string{"bob-id", user.ID},
	}))

	require.NoError(t, f.coord.LeaveChatroom(ctx, "cr1"))

	// Remote membership dropped; document itself stays.
	doc, err := f.memory.GetDocument(ctx, "chatrooms", "cr1")
	require.NoError(t, err)
	users, _ := doc.Strings("users")
	require.Equal(t, []string{"bob-id"}, users)

	// Local copy gone.
	_, err = f.store.Chatrooms.Get(ctx, "cr1")
	require.ErrorIs(t, err, store.ErrNotFound)

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomDeleted))
}

func TestCoordinator_LeaveChatroom_OwnerForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	wl, err := f.coord.CreateWatchlist(ctx, "Movie night", domain.ItemKindMovie)
	require.NoError(t, err)
	room, err := f.coord.CreateChatroom(ctx, "List talk", domain.ChatroomTypeWatchlist, wl.ID)
	require.NoError(t, err)

	err = f.coord.LeaveChatroom(ctx, room.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCoordinator_JoinChatroom_ItemScoped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)
	f.catalog.add(movieItem("tt001", "Blade Runner"))

	// Bob's movie room exists remotely only.
	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr1", map[string]any{
		"owner": "bob-id", "title": "Blade Runner talk", "type": "movie",
		"subjectID": "tt001", "inviteCode": "JOIN2345",
		"users": []string{"bob-id"},
	}))
	f.drainEvents()

	room, err := f.coord.JoinChatroom(ctx, "JOIN2345")
	require.NoError(t, err)
	require.Equal(t, "cr1", room.ID)
	require.Contains(t, room.UserIDs, user.ID)

	// Remote membership updated.
	doc, err := f.memory.GetDocument(ctx, "chatrooms", "cr1")
	require.NoError(t, err)
	users, _ := doc.Strings("users")
	require.Contains(t, users, user.ID)

	// Subject item restored from the catalog.
	item, err := f.store.Items.Get(ctx, "tt001")
	require.NoError(t, err)
	require.Equal(t, "Blade Runner", item.Title)

	require.True(t, f.registry.Watching("cr1"))

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomsChanged))

	// Joining again is idempotent.
	again, err := f.coord.JoinChatroom(ctx, "JOIN2345")
	require.NoError(t, err)
	require.Equal(t, "cr1", again.ID)
}

func TestCoordinator_JoinChatroom_WatchlistScoped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)
	f.catalog.add(movieItem("tt001", "Blade Runner"))

	require.NoError(t, f.memory.SetDocument(ctx, "watchlists", "wl1", map[string]any{
		"owner": "bob-id", "title": "Bob's movies", "type": "movie",
		"users": []string{"bob-id"}, "items": []string{"tt001"},
	}))
	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr1", map[string]any{
		"owner": "bob-id", "title": "List talk", "type": "watchlist",
		"subjectID": "wl1", "inviteCode": "JOIN7890",
		"users": []string{"bob-id"},
	}))
	f.drainEvents()

	room, err := f.coord.JoinChatroom(ctx, "JOIN7890")
	require.NoError(t, err)

	// Both remote member arrays updated atomically.
	for _, check := range []struct{ collection, docID string }{
		{"chatrooms", "cr1"},
		{"watchlists", "wl1"},
	} {
		doc, err := f.memory.GetDocument(ctx, check.collection, check.docID)
		require.NoError(t, err)
		users, _ := doc.Strings("users")
		require.Contains(t, users, user.ID)
	}

	// Watchlist and its items mirrored locally.
	wl, err := f.store.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.True(t, wl.HasItem("tt001"))
	_, err = f.store.Items.Get(ctx, "tt001")
	require.NoError(t, err)

	require.True(t, f.registry.Watching(room.ID))
}

func TestCoordinator_JoinChatroom_UnknownCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	_, err := f.coord.JoinChatroom(ctx, "NOPE0000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCoordinator_RemoteChatroomDeletionCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	wl, err := f.coord.CreateWatchlist(ctx, "Movie night", domain.ItemKindMovie)
	require.NoError(t, err)
	room, err := f.coord.CreateChatroom(ctx, "List talk", domain.ChatroomTypeWatchlist, wl.ID)
	require.NoError(t, err)
	_, err = f.coord.SendMessage(ctx, room.ID, "hello")
	require.NoError(t, err)
	f.drainEvents()

	// The owner deletes the room from another device: the document
	// disappears remotely and the listener cascades locally.
	require.NoError(t, f.memory.DeleteDocument(ctx, "chatrooms", room.ID))

	_, err = f.store.Chatrooms.Get(ctx, room.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	msgs, err := f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.False(t, f.registry.Watching(room.ID))

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomDeleted))
	require.Equal(t, 1, countType(events, bus.EventChatroomsChanged))
}
