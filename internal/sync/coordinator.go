// Package sync implements the coordinator that keeps the device's local
// store, the remote document store, and the UI (via the notification bus)
// in agreement.
//
// Every state-changing operation is a two-phase commit with the remote
// store as the source of truth: the remote write happens first, the local
// mirror second, and the bus event last. A failed remote write aborts with
// no local effect. A failed local mirror after a successful remote write is
// an integrity divergence and surfaces as an error with code DIVERGED.
// Creation flows run in the opposite order because ids are generated on the
// client: the local placeholder is written first and compensated away if
// the remote write fails.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchclub/couchclub-sync/internal/auth"
	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/listener"
	"github.com/couchclub/couchclub-sync/internal/remote"
	"github.com/couchclub/couchclub-sync/internal/store"
	"github.com/couchclub/couchclub-sync/internal/validation"
)

// Catalog resolves catalog ids to full item records. Satisfied by
// catalog.Client.
type Catalog interface {
	Lookup(ctx context.Context, catalogID string) (*domain.Item, error)
}

// Coordinator orchestrates all mutations of user data.
type Coordinator struct {
	store     *store.Store
	remote    remote.Store
	bus       *bus.Bus
	identity  auth.Identity
	catalog   Catalog
	listeners *listener.Registry
	validate  *validation.Validator
	logger    *slog.Logger
}

// New creates a Coordinator and binds it as the handler of the listener
// registry's change callbacks.
func New(
	localStore *store.Store,
	remoteStore remote.Store,
	eventBus *bus.Bus,
	identity auth.Identity,
	catalogClient Catalog,
	listeners *listener.Registry,
	logger *slog.Logger,
) *Coordinator {
	c := &Coordinator{
		store:     localStore,
		remote:    remoteStore,
		bus:       eventBus,
		identity:  identity,
		catalog:   catalogClient,
		listeners: listeners,
		validate:  validation.New(),
		logger:    logger,
	}
	listeners.Bind(c.handleChatroomRemoved, c.handleMessageAdded)
	return c
}

// currentUser returns the signed-in user id.
func (c *Coordinator) currentUser() (string, error) {
	userID, ok := c.identity.CurrentUserID()
	if !ok {
		return "", apperrors.Unauthorized("no user is signed in")
	}
	return userID, nil
}

// diverged wraps a local mirror failure that happened after the remote
// write already succeeded.
func (c *Coordinator) diverged(op string, err error) error {
	c.logger.Error("local mirror failed after remote write",
		slog.String("op", op),
		slog.Any("error", err))
	return apperrors.Diverged(fmt.Sprintf("%s: local mirror failed", op), err)
}

// handleChatroomRemoved reacts to a chatroom document disappearing
// remotely: the owner deleted the room on another device. The local cascade
// mirrors the server-side one.
func (c *Coordinator) handleChatroomRemoved(chatroomID string) {
	ctx := context.Background()

	if err := c.store.DeleteChatroomWithMessages(ctx, chatroomID); err != nil {
		c.logger.Error("local cascade after remote chatroom delete failed",
			slog.String("chatroom_id", chatroomID),
			slog.Any("error", err))
		return
	}
	c.listeners.Unwatch(chatroomID)

	c.bus.Publish(bus.NewChatroomDeletedEvent(chatroomID))
	c.bus.Publish(bus.NewChatroomsChangedEvent())
}

// handleMessageAdded routes message listener events into ingestion.
func (c *Coordinator) handleMessageAdded(doc remote.Document) {
	if err := c.IngestMessage(context.Background(), doc); err != nil {
		c.logger.Error("message ingestion failed",
			slog.String("message_id", doc.ID),
			slog.Any("error", err))
	}
}

// ensureItem returns the item, fetching it from the catalog and storing it
// locally on first sight.
func (c *Coordinator) ensureItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := c.store.Items.Get(ctx, itemID)
	if err == nil {
		return item, nil
	}
	if !apperrors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	item, err = c.catalog.Lookup(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("lookup item %s: %w", itemID, err)
	}
	if err := c.store.Items.Create(ctx, item); err != nil && !apperrors.Is(err, store.ErrAlreadyExists) {
		return nil, fmt.Errorf("store item %s: %w", itemID, err)
	}
	return item, nil
}
