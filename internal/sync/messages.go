package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/id"
	"github.com/couchclub/couchclub-sync/internal/remote"
	"github.com/couchclub/couchclub-sync/internal/store"
)

const maxMessageLength = 2000

// SendMessage posts a message to a chatroom. The message is inserted
// locally first, marked seen (it is self-authored), and compensated away if
// the remote write fails. The remote echo through the message listener is
// deduplicated by id.
func (c *Coordinator) SendMessage(ctx context.Context, chatroomID, text string) (*domain.Message, error) {
	userID, err := c.currentUser()
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message text cannot be empty")
	}
	if len(text) > maxMessageLength {
		return nil, apperrors.Validationf("message text exceeds %d characters", maxMessageLength)
	}

	chatroom, err := c.store.Chatrooms.Get(ctx, chatroomID)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if !chatroom.HasUser(userID) {
		return nil, apperrors.Forbidden("not a member of this chatroom")
	}

	message := &domain.Message{
		ID:         id.NewUUID(),
		Text:       text,
		SenderID:   userID,
		ChatroomID: chatroomID,
		Date:       time.Now().UTC(),
		Seen:       true,
	}

	if err := c.store.Messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if err := c.remote.SetDocument(ctx, remote.CollectionMessages, message.ID, messageFields(message)); err != nil {
		if delErr := c.store.Messages.Delete(ctx, message.ID); delErr != nil {
			c.logger.Error("compensating delete failed",
				slog.String("message_id", message.ID),
				slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("send message: %w", err)
	}

	c.bus.Publish(bus.NewChatroomChangedEvent(chatroomID))
	return message, nil
}

// IngestMessage stores a message that arrived through a message listener.
// Self-echoes (ids already present locally) are dropped. Malformed
// documents are logged and skipped; a bad document from another client must
// never wedge the stream.
func (c *Coordinator) IngestMessage(ctx context.Context, doc remote.Document) error {
	message, err := messageFromDoc(doc)
	if err != nil {
		c.logger.Warn("skipping malformed message document", slog.Any("error", err))
		return nil
	}

	exists, err := c.store.MessageExists(ctx, message.ID)
	if err != nil {
		return fmt.Errorf("ingest message: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := c.EnsureUser(ctx, message.SenderID); err != nil {
		return fmt.Errorf("ingest message: %w", err)
	}

	if userID, ok := c.identity.CurrentUserID(); ok && userID == message.SenderID {
		message.Seen = true
	}

	if err := c.store.Messages.Create(ctx, message); err != nil {
		if apperrors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("ingest message: %w", err)
	}

	c.bus.Publish(bus.NewChatroomChangedEvent(message.ChatroomID))
	return nil
}
