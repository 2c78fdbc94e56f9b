// Package listener manages the realtime subscriptions a device keeps on the
// remote store: one document listener per joined chatroom (to observe
// deletion) and one message query listener per joined chatroom (to observe
// new messages).
package listener

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchclub/couchclub-sync/internal/remote"
)

type listenerKind string

const (
	kindChatroomDoc      listenerKind = "chatroom_doc"
	kindChatroomMessages listenerKind = "chatroom_messages"
)

type listenerKey struct {
	kind listenerKind
	id   string
}

// Registry tracks active subscriptions, at most one per (kind, entity id).
// Safe for concurrent use.
type Registry struct {
	remote remote.Store
	logger *slog.Logger

	onChatroomRemoved func(chatroomID string)
	onMessageAdded    func(doc remote.Document)

	mu   sync.Mutex
	subs map[listenerKey]remote.Subscription
}

// New creates an empty Registry. Bind must be called before WatchChatroom.
func New(remoteStore remote.Store, logger *slog.Logger) *Registry {
	return &Registry{
		remote: remoteStore,
		logger: logger,
		subs:   make(map[listenerKey]remote.Subscription),
	}
}

// Bind installs the change handlers. Called once during wiring; the sync
// layer owns both callbacks.
func (r *Registry) Bind(onChatroomRemoved func(chatroomID string), onMessageAdded func(doc remote.Document)) {
	r.onChatroomRemoved = onChatroomRemoved
	r.onMessageAdded = onMessageAdded
}

// WatchChatroom starts the chatroom's document and message listeners.
// Watching an already-watched chatroom is a no-op, so re-join and restore
// paths can call this freely.
func (r *Registry) WatchChatroom(ctx context.Context, chatroomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docKey := listenerKey{kind: kindChatroomDoc, id: chatroomID}
	if _, watching := r.subs[docKey]; watching {
		return nil
	}

	docSub, err := r.remote.SubscribeDocument(ctx, remote.CollectionChatrooms, chatroomID,
		func(change remote.Change) {
			if change.Kind != remote.Removed {
				return
			}
			r.logger.Info("chatroom removed remotely", slog.String("chatroom_id", chatroomID))
			r.onChatroomRemoved(chatroomID)
		})
	if err != nil {
		return err
	}

	msgSub, err := r.remote.SubscribeQuery(ctx, remote.CollectionMessages, "chatroomID", remote.OpEqual, chatroomID,
		func(change remote.Change) {
			// Messages are immutable; only additions matter.
			if change.Kind != remote.Added {
				r.logger.Debug("ignoring message change",
					slog.String("kind", change.Kind.String()),
					slog.String("message_id", change.Doc.ID))
				return
			}
			r.onMessageAdded(change.Doc)
		})
	if err != nil {
		docSub.Cancel()
		return err
	}

	r.subs[docKey] = docSub
	r.subs[listenerKey{kind: kindChatroomMessages, id: chatroomID}] = msgSub

	r.logger.Debug("watching chatroom", slog.String("chatroom_id", chatroomID))
	return nil
}

// Unwatch cancels the chatroom's listeners. Unknown ids are a no-op.
func (r *Registry) Unwatch(chatroomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range []listenerKind{kindChatroomDoc, kindChatroomMessages} {
		key := listenerKey{kind: kind, id: chatroomID}
		if sub, ok := r.subs[key]; ok {
			sub.Cancel()
			delete(r.subs, key)
		}
	}
}

// Watching reports whether the chatroom has active listeners.
func (r *Registry) Watching(chatroomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[listenerKey{kind: kindChatroomDoc, id: chatroomID}]
	return ok
}

// Reset cancels every subscription. Called on sign-out.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, sub := range r.subs {
		sub.Cancel()
		delete(r.subs, key)
	}
	r.logger.Debug("all listeners cancelled")
}
