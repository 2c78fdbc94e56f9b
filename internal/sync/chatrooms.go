package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchclub/couchclub-sync/internal/bus"
	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/id"
	"github.com/couchclub/couchclub-sync/internal/remote"
	"github.com/couchclub/couchclub-sync/internal/store"
)

type createChatroomInput struct {
	Title     string `validate:"required,min=1,max=100"`
	SubjectID string `validate:"required"`
}

// CreateChatroom creates a chatroom scoped to a watchlist or a single item.
// The creator is the owner and sole initial member; an invite code is
// generated for others to join with.
func (c *Coordinator) CreateChatroom(ctx context.Context, title string, roomType domain.ChatroomType, subjectID string) (*domain.Chatroom, error) {
	userID, err := c.currentUser()
	if err != nil {
		return nil, err
	}
	if err := c.validate.Validate(createChatroomInput{Title: title, SubjectID: subjectID}); err != nil {
		return nil, err
	}
	if !roomType.Valid() {
		return nil, apperrors.Validationf("unknown chatroom type %q", roomType)
	}
	if err := c.checkSubject(ctx, roomType, subjectID); err != nil {
		return nil, err
	}

	chatroom := &domain.Chatroom{
		ID:         id.NewUUID(),
		InviteCode: id.NewInviteCode(),
		Title:      title,
		Type:       roomType,
		SubjectID:  subjectID,
		OwnerID:    userID,
		UserIDs:    []string{userID},
	}

	if err := c.store.Chatrooms.Create(ctx, chatroom); err != nil {
		return nil, fmt.Errorf("create chatroom: %w", err)
	}
	if err := c.remote.SetDocument(ctx, remote.CollectionChatrooms, chatroom.ID, chatroomFields(chatroom)); err != nil {
		if delErr := c.store.Chatrooms.Delete(ctx, chatroom.ID); delErr != nil {
			c.logger.Error("compensating delete failed",
				slog.String("chatroom_id", chatroom.ID),
				slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("create chatroom: %w", err)
	}

	if err := c.listeners.WatchChatroom(ctx, chatroom.ID); err != nil {
		c.logger.Error("failed to watch chatroom",
			slog.String("chatroom_id", chatroom.ID),
			slog.Any("error", err))
	}

	c.bus.Publish(bus.NewChatroomsChangedEvent())
	c.logger.Info("chatroom created",
		slog.String("chatroom_id", chatroom.ID),
		slog.String("type", string(roomType)))
	return chatroom, nil
}

// checkSubject verifies that the chatroom's subject exists locally and is
// of the right kind for the room type.
func (c *Coordinator) checkSubject(ctx context.Context, roomType domain.ChatroomType, subjectID string) error {
	if itemKind, ok := roomType.SubjectItemKind(); ok {
		item, err := c.store.Items.Get(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("chatroom subject: %w", err)
		}
		if item.Kind != itemKind {
			return apperrors.Conflict(fmt.Sprintf("a %s chatroom needs a %s subject, got %s", roomType, itemKind, item.Kind))
		}
		return nil
	}

	if _, err := c.store.Watchlists.Get(ctx, subjectID); err != nil {
		return fmt.Errorf("chatroom subject: %w", err)
	}
	return nil
}

// DeleteChatroom removes a chatroom the current user owns. The server event
// pipeline cleans up the remote messages; members' devices observe the
// document deletion and cascade locally.
func (c *Coordinator) DeleteChatroom(ctx context.Context, chatroomID string) error {
	userID, err := c.currentUser()
	if err != nil {
		return err
	}

	chatroom, err := c.store.Chatrooms.Get(ctx, chatroomID)
	if err != nil {
		return fmt.Errorf("delete chatroom: %w", err)
	}
	if chatroom.OwnerID != userID {
		return apperrors.Forbidden("only the owner can delete a chatroom")
	}

	// Stop listening first so this device's own delete does not also
	// arrive through the document listener.
	c.listeners.Unwatch(chatroomID)

	if err := c.remote.DeleteDocument(ctx, remote.CollectionChatrooms, chatroomID); err != nil {
		if watchErr := c.listeners.WatchChatroom(ctx, chatroomID); watchErr != nil {
			c.logger.Error("failed to re-watch chatroom",
				slog.String("chatroom_id", chatroomID),
				slog.Any("error", watchErr))
		}
		return fmt.Errorf("delete chatroom: %w", err)
	}
	if err := c.store.DeleteChatroomWithMessages(ctx, chatroomID); err != nil {
		return c.diverged("delete chatroom", err)
	}

	c.bus.Publish(bus.NewChatroomDeletedEvent(chatroomID))
	c.bus.Publish(bus.NewChatroomsChangedEvent())
	c.logger.Info("chatroom deleted", slog.String("chatroom_id", chatroomID))
	return nil
}

// LeaveChatroom removes the current user from a chatroom someone else
// owns. The room and its messages disappear from this device only.
func (c *Coordinator) LeaveChatroom(ctx context.Context, chatroomID string) error {
	userID, err := c.currentUser()
	if err != nil {
		return err
	}

	chatroom, err := c.store.Chatrooms.Get(ctx, chatroomID)
	if err != nil {
		return fmt.Errorf("leave chatroom: %w", err)
	}
	if chatroom.OwnerID == userID {
		return apperrors.Forbidden("the owner cannot leave a chatroom, delete it instead")
	}

	c.listeners.Unwatch(chatroomID)

	err = c.remote.UpdateDocument(ctx, remote.CollectionChatrooms, chatroomID, []remote.Update{
		remote.ArrayRemove("users", userID),
	})
	if err != nil {
		if watchErr := c.listeners.WatchChatroom(ctx, chatroomID); watchErr != nil {
			c.logger.Error("failed to re-watch chatroom",
				slog.String("chatroom_id", chatroomID),
				slog.Any("error", watchErr))
		}
		return fmt.Errorf("leave chatroom: %w", err)
	}
	if err := c.store.DeleteChatroomWithMessages(ctx, chatroomID); err != nil {
		return c.diverged("leave chatroom", err)
	}

	c.bus.Publish(bus.NewChatroomDeletedEvent(chatroomID))
	c.bus.Publish(bus.NewChatroomsChangedEvent())
	c.logger.Info("chatroom left", slog.String("chatroom_id", chatroomID))
	return nil
}

// JoinChatroom adds the current user to the chatroom matching the invite
// code and restores the room's subject on this device. Joining a
// watchlist-scoped room also joins the watchlist itself, atomically.
func (c *Coordinator) JoinChatroom(ctx context.Context, inviteCode string) (*domain.Chatroom, error) {
	userID, err := c.currentUser()
	if err != nil {
		return nil, err
	}

	docs, err := c.remote.Query(ctx, remote.CollectionChatrooms, "inviteCode", remote.OpEqual, inviteCode)
	if err != nil {
		return nil, fmt.Errorf("join chatroom: %w", err)
	}
	if len(docs) == 0 {
		return nil, apperrors.NotFound("no chatroom with this invite code")
	}
	chatroom, err := chatroomFromDoc(docs[0])
	if err != nil {
		return nil, fmt.Errorf("join chatroom: %w", err)
	}

	// Already a member on this device; joining twice is harmless.
	if existing, err := c.store.Chatrooms.Get(ctx, chatroom.ID); err == nil {
		return existing, nil
	} else if !apperrors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("join chatroom: %w", err)
	}

	if chatroom.Type == domain.ChatroomTypeWatchlist {
		if err := c.joinWatchlistRoom(ctx, chatroom, userID); err != nil {
			return nil, err
		}
	} else {
		err = c.remote.UpdateDocument(ctx, remote.CollectionChatrooms, chatroom.ID, []remote.Update{
			remote.ArrayUnion("users", userID),
		})
		if err != nil {
			return nil, fmt.Errorf("join chatroom: %w", err)
		}
		if _, err := c.ensureItem(ctx, chatroom.SubjectID); err != nil {
			return nil, c.diverged("join chatroom", err)
		}
	}

	chatroom.AddUser(userID)
	if err := c.store.Chatrooms.Create(ctx, chatroom); err != nil && !apperrors.Is(err, store.ErrAlreadyExists) {
		return nil, c.diverged("join chatroom", err)
	}

	if err := c.listeners.WatchChatroom(ctx, chatroom.ID); err != nil {
		c.logger.Error("failed to watch chatroom",
			slog.String("chatroom_id", chatroom.ID),
			slog.Any("error", err))
	}

	c.bus.Publish(bus.NewChatroomsChangedEvent())
	c.logger.Info("chatroom joined", slog.String("chatroom_id", chatroom.ID))
	return chatroom, nil
}

// joinWatchlistRoom adds the user to both the chatroom's and the subject
// watchlist's member arrays in one transaction, then mirrors the watchlist
// locally. Membership of the two must never disagree.
func (c *Coordinator) joinWatchlistRoom(ctx context.Context, chatroom *domain.Chatroom, userID string) error {
	err := c.remote.RunTransaction(ctx, func(tx remote.Tx) error {
		if _, err := tx.Get(remote.CollectionChatrooms, chatroom.ID); err != nil {
			return err
		}
		if _, err := tx.Get(remote.CollectionWatchlists, chatroom.SubjectID); err != nil {
			return err
		}
		tx.Update(remote.CollectionChatrooms, chatroom.ID, []remote.Update{
			remote.ArrayUnion("users", userID),
		})
		tx.Update(remote.CollectionWatchlists, chatroom.SubjectID, []remote.Update{
			remote.ArrayUnion("users", userID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("join chatroom: %w", err)
	}

	doc, err := c.remote.GetDocument(ctx, remote.CollectionWatchlists, chatroom.SubjectID)
	if err != nil {
		return c.diverged("join chatroom", err)
	}
	if err := c.restoreWatchlistDoc(ctx, doc); err != nil {
		return c.diverged("join chatroom", err)
	}

	c.bus.Publish(bus.NewWatchlistsChangedEvent())
	return nil
}
