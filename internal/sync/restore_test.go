package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/store"
)

// seedRemoteState populates the remote store with the data of a user who is
// a member of one watchlist, one watchlist-scoped chatroom, and one movie
// chatroom, plus a message and a watched flag.
func seedRemoteState(t *testing.T, f *fixture, userID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.memory.SetDocument(ctx, "watchlists", "wl1", map[string]any{
		"owner": userID, "title": "Movie night", "type": "movie",
		"users": []string{userID}, "items": []string{"tt001", "tt002"},
	}))
	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr1", map[string]any{
		"owner": userID, "title": "List talk", "type": "watchlist",
		"subjectID": "wl1", "inviteCode": "REST1111",
		"users": []string{userID},
	}))
	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr2", map[string]any{
		"owner": "bob-id", "title": "Blade Runner talk", "type": "movie",
		"subjectID": "tt001", "inviteCode": "REST2222",
		"users": []string{"bob-id", userID},
	}))
	require.NoError(t, f.memory.SetDocument(ctx, "messages", "msg1", map[string]any{
		"sender": "bob-id", "text": "welcome back",
		"date": time.Now().UTC(), "chatroomID": "cr2",
	}))
	require.NoError(t, f.memory.SetDocument(ctx, "watched", userID, map[string]any{
		"items": []string{"tt001"},
	}))
}

func TestCoordinator_Restore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)
	f.catalog.add(movieItem("tt001", "Blade Runner"))
	f.catalog.add(movieItem("tt002", "Alien"))

	seedRemoteState(t, f, user.ID)
	f.drainEvents()

	require.NoError(t, f.coord.Restore(ctx))

	// Watchlist mirrored with both items resolved.
	wl, err := f.store.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"tt001", "tt002"}, wl.ItemIDs)
	for _, itemID := range []string{"tt001", "tt002"} {
		_, err := f.store.Items.Get(ctx, itemID)
		require.NoError(t, err)
	}

	// Both chatrooms mirrored and watched; the message arrived through the
	// initial listener snapshot.
	for _, roomID := range []string{"cr1", "cr2"} {
		_, err := f.store.Chatrooms.Get(ctx, roomID)
		require.NoError(t, err)
		require.True(t, f.registry.Watching(roomID))
	}
	msgs, err := f.store.ListMessagesByChatroom(ctx, "cr2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "welcome back", msgs[0].Text)
	require.False(t, msgs[0].Seen)

	// Watched flags mirrored.
	watched, err := f.store.IsItemWatched(ctx, user.ID, "tt001")
	require.NoError(t, err)
	require.True(t, watched)

	// Exactly one bulk event per entity kind.
	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventWatchlistsChanged))
	require.Equal(t, 1, countType(events, bus.EventChatroomsChanged))
}

func TestCoordinator_Restore_DropsUnresolvableItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)

	// tt002 never resolves; tt001 resolves.
	f.catalog.add(movieItem("tt001", "Blade Runner"))

	require.NoError(t, f.memory.SetDocument(ctx, "watchlists", "wl1", map[string]any{
		"owner": user.ID, "title": "Movie night", "type": "movie",
		"users": []string{user.ID}, "items": []string{"tt001", "tt002"},
	}))
	f.drainEvents()

	require.NoError(t, f.coord.Restore(ctx))

	// The bad item is dropped from the local copy; the rest survives.
	wl, err := f.store.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.Equal(t, []string{"tt001"}, wl.ItemIDs)
	_, err = f.store.Items.Get(ctx, "tt002")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCoordinator_Restore_DropsChatroomWithBadSubject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)
	f.catalog.add(movieItem("tt001", "Blade Runner"))

	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr-good", map[string]any{
		"owner": user.ID, "title": "Good", "type": "movie",
		"subjectID": "tt001", "inviteCode": "GOOD1111",
		"users": []string{user.ID},
	}))
	require.NoError(t, f.memory.SetDocument(ctx, "chatrooms", "cr-bad", map[string]any{
		"owner": user.ID, "title": "Bad", "type": "movie",
		"subjectID": "tt-gone", "inviteCode": "BADD1111",
		"users": []string{user.ID},
	}))
	f.drainEvents()

	require.NoError(t, f.coord.Restore(ctx))

	_, err := f.store.Chatrooms.Get(ctx, "cr-good")
	require.NoError(t, err)
	require.True(t, f.registry.Watching("cr-good"))

	// The room with an unresolvable subject is dropped, not fatal.
	_, err = f.store.Chatrooms.Get(ctx, "cr-bad")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, f.registry.Watching("cr-bad"))
}

func TestCoordinator_Restore_RetriesTransientLookupFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)

	f.catalog.add(movieItem("tt001", "Blade Runner"))
	f.catalog.failLookups("tt001", 2) // fails twice, succeeds on the third try

	require.NoError(t, f.memory.SetDocument(ctx, "watchlists", "wl1", map[string]any{
		"owner": user.ID, "title": "Movie night", "type": "movie",
		"users": []string{user.ID}, "items": []string{"tt001"},
	}))
	f.drainEvents()

	require.NoError(t, f.coord.Restore(ctx))

	wl, err := f.store.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.Equal(t, []string{"tt001"}, wl.ItemIDs)
}

func TestCoordinator_SignIn_RestoresState(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)
	f.catalog.add(movieItem("tt001", "Blade Runner"))
	f.catalog.add(movieItem("tt002", "Alien"))
	seedRemoteState(t, f, user.ID)

	// Sign out wipes the device; sign in brings everything back.
	require.NoError(t, f.coord.SignOut(ctx))
	f.drainEvents()

	signedIn, err := f.coord.SignIn(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, signedIn.ID)

	wl, err := f.store.Watchlists.Get(ctx, "wl1")
	require.NoError(t, err)
	require.Equal(t, "Movie night", wl.Title)
	_, err = f.store.Chatrooms.Get(ctx, "cr2")
	require.NoError(t, err)
	require.True(t, f.registry.Watching("cr1"))

	// The profile backfill runs asynchronously.
	require.Eventually(t, func() bool {
		u, err := f.store.Users.Get(ctx, user.ID)
		return err == nil && u.Username == "alice"
	}, 2*time.Second, 10*time.Millisecond)
}
