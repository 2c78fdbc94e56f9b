package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/couchclub/couchclub-sync/internal/domain"
)

// ListMessagesByChatroom returns the chatroom's messages ordered by date,
// oldest first.
func (s *Store) ListMessagesByChatroom(ctx context.Context, chatroomID string) ([]*domain.Message, error) {
	messages, err := s.Messages.ListByIndex(ctx, "chatroom", chatroomID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	sortMessagesByDate(messages)
	return messages, nil
}

// MessageExists reports whether a message with this id is already stored.
// Used to drop the remote echo of self-authored messages.
func (s *Store) MessageExists(ctx context.Context, id string) (bool, error) {
	return s.Messages.Exists(ctx, id)
}

// DeleteChatroomMessages removes every message belonging to the chatroom.
func (s *Store) DeleteChatroomMessages(ctx context.Context, chatroomID string) error {
	messages, err := s.Messages.ListByIndex(ctx, "chatroom", chatroomID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, message := range messages {
		if err := s.Messages.Delete(ctx, message.ID); err != nil {
			return fmt.Errorf("delete message %s: %w", message.ID, err)
		}
	}
	return nil
}

// UnseenMessageCount returns the number of unseen messages in the chatroom.
func (s *Store) UnseenMessageCount(ctx context.Context, chatroomID string) (int, error) {
	messages, err := s.Messages.ListByIndex(ctx, "chatroom", chatroomID)
	if err != nil {
		return 0, fmt.Errorf("list messages: %w", err)
	}
	count := 0
	for _, message := range messages {
		if !message.Seen {
			count++
		}
	}
	return count, nil
}

// MarkChatroomSeen flags every message in the chatroom as seen.
func (s *Store) MarkChatroomSeen(ctx context.Context, chatroomID string) error {
	messages, err := s.Messages.ListByIndex(ctx, "chatroom", chatroomID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, message := range messages {
		if message.Seen {
			continue
		}
		message.Seen = true
		if err := s.Messages.Update(ctx, message); err != nil {
			return fmt.Errorf("update message %s: %w", message.ID, err)
		}
	}
	return nil
}

// Index order is by message id, not time.
func sortMessagesByDate(messages []*domain.Message) {
	slices.SortStableFunc(messages, func(a, b *domain.Message) int {
		return a.Date.Compare(b.Date)
	})
}
