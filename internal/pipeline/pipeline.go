// Package pipeline runs the server-side reactions to remote writes:
// deleting a chatroom purges its messages, and a new message fans out push
// notifications to the other members' devices. It speaks only the
// remote.Store and push.Pusher contracts, so it runs against Firestore in
// production and the in-memory store in tests.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchclub/couchclub-sync/internal/push"
	"github.com/couchclub/couchclub-sync/internal/remote"
)

const (
	// Messages are purged in query pages of this size, looping until the
	// collection has none left for the room.
	messageBatchSize = 100

	pushConcurrency = 8
)

// Pipeline reacts to chatroom and message changes in the remote store.
type Pipeline struct {
	remote remote.Store
	pusher push.Pusher
	logger *slog.Logger

	subs []remote.Subscription
}

// New creates a Pipeline. Call Start to begin processing.
func New(remoteStore remote.Store, pusher push.Pusher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		remote: remoteStore,
		pusher: pusher,
		logger: logger,
	}
}

// Start subscribes to the chatrooms and messages collections. Processing
// continues until Stop is called or ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) error {
	chatroomSub, err := p.remote.SubscribeCollection(ctx, remote.CollectionChatrooms, func(change remote.Change) {
		if change.Kind != remote.Removed {
			return
		}
		if err := p.PurgeChatroomMessages(ctx, change.Doc.ID); err != nil {
			p.logger.Error("message purge failed",
				slog.String("chatroom_id", change.Doc.ID),
				slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe chatrooms: %w", err)
	}

	messageSub, err := p.remote.SubscribeCollection(ctx, remote.CollectionMessages, func(change remote.Change) {
		if change.Kind != remote.Added {
			return
		}
		p.notifyRecipients(ctx, change.Doc)
	})
	if err != nil {
		chatroomSub.Cancel()
		return fmt.Errorf("subscribe messages: %w", err)
	}

	p.subs = []remote.Subscription{chatroomSub, messageSub}
	p.logger.Info("pipeline started")
	return nil
}

// Stop cancels the subscriptions.
func (p *Pipeline) Stop() {
	for _, sub := range p.subs {
		sub.Cancel()
	}
	p.subs = nil
	p.logger.Info("pipeline stopped")
}

// Run starts the pipeline and blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	p.Stop()
	return nil
}

// PurgeChatroomMessages deletes every message belonging to the chatroom, in
// batches. Safe to re-run: a purge that died halfway picks up where it
// left off.
func (p *Pipeline) PurgeChatroomMessages(ctx context.Context, chatroomID string) error {
	deleted := 0
	for {
		docs, err := p.remote.QueryLimit(ctx, remote.CollectionMessages,
			"chatroomID", remote.OpEqual, chatroomID, messageBatchSize)
		if err != nil {
			return fmt.Errorf("purge chatroom %s: %w", chatroomID, err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			if err := p.remote.DeleteDocument(ctx, remote.CollectionMessages, doc.ID); err != nil {
				return fmt.Errorf("purge chatroom %s: %w", chatroomID, err)
			}
			deleted++
		}
		if len(docs) < messageBatchSize {
			break
		}
	}

	p.logger.Info("chatroom messages purged",
		slog.String("chatroom_id", chatroomID),
		slog.Int("deleted", deleted))
	return nil
}

// notifyRecipients pushes a new message to every room member except the
// sender. Per-recipient and per-token failures are logged and skipped; a
// stale device token must never block the others.
func (p *Pipeline) notifyRecipients(ctx context.Context, doc remote.Document) {
	senderID, _ := doc.String("sender")
	text, _ := doc.String("text")
	chatroomID, ok := doc.String("chatroomID")
	if !ok || senderID == "" {
		p.logger.Warn("skipping malformed message document", slog.String("message_id", doc.ID))
		return
	}

	room, err := p.remote.GetDocument(ctx, remote.CollectionChatrooms, chatroomID)
	if err != nil {
		p.logger.Warn("chatroom lookup failed, no pushes sent",
			slog.String("chatroom_id", chatroomID),
			slog.Any("error", err))
		return
	}
	title, _ := room.String("title")
	members, _ := room.Strings("users")

	senderName := senderID
	if sender, err := p.remote.GetDocument(ctx, remote.CollectionUsers, senderID); err == nil {
		if username, ok := sender.String("username"); ok && username != "" {
			senderName = username
		}
	}
	body := fmt.Sprintf("%s: %s", senderName, text)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)
	for _, memberID := range members {
		if memberID == senderID {
			continue
		}
		g.Go(func() error {
			p.pushToUser(gctx, memberID, title, body, chatroomID)
			return nil
		})
	}
	_ = g.Wait()
}

// pushToUser sends one notification per registered device token.
func (p *Pipeline) pushToUser(ctx context.Context, userID, title, body, chatroomID string) {
	user, err := p.remote.GetDocument(ctx, remote.CollectionUsers, userID)
	if err != nil {
		p.logger.Warn("recipient lookup failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}

	tokens, _ := user.Strings("devices")
	for _, token := range tokens {
		err := p.pusher.Send(ctx, push.Payload{
			Token:      token,
			Title:      title,
			Body:       body,
			ChatroomID: chatroomID,
		})
		if err != nil {
			p.logger.Warn("push delivery failed",
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
	}
}
