package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchclub/couchclub-sync/internal/domain"
)

// GetChatroomByInviteCode looks up a chatroom by its invite code.
func (s *Store) GetChatroomByInviteCode(ctx context.Context, code string) (*domain.Chatroom, error) {
	return s.Chatrooms.GetByIndex(ctx, "invite_code", code)
}

// ListChatroomsBySubject returns all chatrooms scoped to the given watchlist
// or item id.
func (s *Store) ListChatroomsBySubject(ctx context.Context, subjectID string) ([]*domain.Chatroom, error) {
	return s.Chatrooms.ListByIndex(ctx, "subject", subjectID)
}

// AddUserToChatroom appends the user to the chatroom's member set.
func (s *Store) AddUserToChatroom(ctx context.Context, chatroomID, userID string) error {
	chatroom, err := s.Chatrooms.Get(ctx, chatroomID)
	if err != nil {
		return fmt.Errorf("get chatroom: %w", err)
	}
	if chatroom.HasUser(userID) {
		return nil
	}
	chatroom.AddUser(userID)
	if err := s.Chatrooms.Update(ctx, chatroom); err != nil {
		return fmt.Errorf("update chatroom: %w", err)
	}
	return nil
}

// RemoveUserFromChatroom drops the user from the chatroom's member set. The
// owner cannot be removed.
func (s *Store) RemoveUserFromChatroom(ctx context.Context, chatroomID, userID string) error {
	chatroom, err := s.Chatrooms.Get(ctx, chatroomID)
	if err != nil {
		return fmt.Errorf("get chatroom: %w", err)
	}
	if !chatroom.HasUser(userID) {
		return nil
	}
	chatroom.RemoveUser(userID)
	if err := s.Chatrooms.Update(ctx, chatroom); err != nil {
		return fmt.Errorf("update chatroom: %w", err)
	}
	return nil
}

// DeleteChatroomWithMessages removes the chatroom, all of its messages, and
// prunes its subject item when nothing else references it. Idempotent.
func (s *Store) DeleteChatroomWithMessages(ctx context.Context, id string) error {
	chatroom, err := s.Chatrooms.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get chatroom: %w", err)
	}

	if err := s.DeleteChatroomMessages(ctx, id); err != nil {
		return err
	}
	if err := s.Chatrooms.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete chatroom: %w", err)
	}

	// Item-scoped rooms hold a reference on their subject item.
	if _, ok := chatroom.Type.SubjectItemKind(); ok {
		if _, err := s.pruneItem(ctx, chatroom.SubjectID); err != nil {
			return err
		}
	}
	return nil
}
