package sync_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/remote"
)

// newRoom creates a watchlist-scoped chatroom owned by the fixture user and
// drains the creation events.
func newRoom(t *testing.T, f *fixture) *domain.Chatroom {
	t.Helper()
	ctx := context.Background()
	wl, err := f.coord.CreateWatchlist(ctx, "Movie night", domain.ItemKindMovie)
	require.NoError(t, err)
	room, err := f.coord.CreateChatroom(ctx, "List talk", domain.ChatroomTypeWatchlist, wl.ID)
	require.NoError(t, err)
	f.drainEvents()
	return room
}

func TestCoordinator_SendMessage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.signUp(t)
	room := newRoom(t, f)

	msg, err := f.coord.SendMessage(ctx, room.ID, "  hello there  ")
	require.NoError(t, err)
	require.Equal(t, "hello there", msg.Text)
	require.Equal(t, user.ID, msg.SenderID)
	require.True(t, msg.Seen)

	// Remote document written.
	doc, err := f.memory.GetDocument(ctx, "messages", msg.ID)
	require.NoError(t, err)
	text, _ := doc.String("text")
	require.Equal(t, "hello there", text)

	// The listener echoes the write back, but the local copy is not
	// duplicated.
	msgs, err := f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomChanged))
}

func TestCoordinator_SendMessage_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)
	room := newRoom(t, f)

	_, err := f.coord.SendMessage(ctx, room.ID, "   ")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.coord.SendMessage(ctx, room.ID, strings.Repeat("x", 2001))
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCoordinator_SendMessage_NonMemberForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	require.NoError(t, f.store.Chatrooms.Create(ctx, &domain.Chatroom{
		ID: "cr-foreign", InviteCode: "ZZZZ8888", Title: "Bob's room",
		Type: domain.ChatroomTypeWatchlist, SubjectID: "wl-x",
		OwnerID: "bob-id", UserIDs: []string{"bob-id"},
	}))

	_, err := f.coord.SendMessage(ctx, "cr-foreign", "hi")
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCoordinator_SendMessage_RemoteFailureCompensates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)
	room := newRoom(t, f)

	f.remote.failNextSet = fmt.Errorf("network down")

	_, err := f.coord.SendMessage(ctx, room.ID, "hello")
	require.Error(t, err)

	msgs, err := f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.Empty(t, f.drainEvents())
}

func TestCoordinator_IngestMessage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)
	room := newRoom(t, f)

	doc := remote.Document{ID: "msg1", Fields: map[string]any{
		"sender":     "bob-id",
		"text":       "hi from bob",
		"date":       time.Now().UTC(),
		"chatroomID": room.ID,
	}}

	require.NoError(t, f.coord.IngestMessage(ctx, doc))

	msgs, err := f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hi from bob", msgs[0].Text)
	require.False(t, msgs[0].Seen)

	// The sender gets a placeholder user record.
	sender, err := f.store.Users.Get(ctx, "bob-id")
	require.NoError(t, err)
	require.True(t, sender.Placeholder())

	events := f.drainEvents()
	require.Equal(t, 1, countType(events, bus.EventChatroomChanged))

	// Re-delivery of the same id is dropped without an event.
	require.NoError(t, f.coord.IngestMessage(ctx, doc))
	msgs, err = f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Empty(t, f.drainEvents())
}

func TestCoordinator_IngestMessage_MalformedSkipped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)

	// Missing sender and text; must not wedge the stream.
	doc := remote.Document{ID: "bad1", Fields: map[string]any{"chatroomID": "cr1"}}
	require.NoError(t, f.coord.IngestMessage(ctx, doc))

	exists, err := f.store.MessageExists(ctx, "bad1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCoordinator_MessageListenerDeliversOtherClients(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)
	room := newRoom(t, f)

	// Another client writes straight to the remote store.
	require.NoError(t, f.memory.SetDocument(ctx, "messages", "msg-bob", map[string]any{
		"sender":     "bob-id",
		"text":       "hi from bob",
		"date":       time.Now().UTC(),
		"chatroomID": room.ID,
	}))

	msgs, err := f.store.ListMessagesByChatroom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "msg-bob", msgs[0].ID)
	require.False(t, msgs[0].Seen)

	// Messages for rooms this device is not watching stay invisible.
	require.NoError(t, f.memory.SetDocument(ctx, "messages", "msg-other", map[string]any{
		"sender":     "bob-id",
		"text":       "elsewhere",
		"date":       time.Now().UTC(),
		"chatroomID": "cr-other",
	}))
	exists, err := f.store.MessageExists(ctx, "msg-other")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCoordinator_MarkSeenAndUnseenCount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signUp(t)
	room := newRoom(t, f)

	for i := range 3 {
		require.NoError(t, f.memory.SetDocument(ctx, "messages", fmt.Sprintf("msg-%d", i), map[string]any{
			"sender":     "bob-id",
			"text":       fmt.Sprintf("message %d", i),
			"date":       time.Now().UTC(),
			"chatroomID": room.ID,
		}))
	}

	unseen, err := f.store.UnseenMessageCount(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, 3, unseen)

	require.NoError(t, f.store.MarkChatroomSeen(ctx, room.ID))

	unseen, err = f.store.UnseenMessageCount(ctx, room.ID)
	require.NoError(t, err)
	require.Zero(t, unseen)
}
