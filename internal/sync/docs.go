package sync

import (
	"fmt"

	"github.com/couchclub/couchclub-sync/internal/domain"
	"github.com/couchclub/couchclub-sync/internal/remote"
)

// Wire shapes of the remote collections. Field names match what the mobile
// clients and the server functions already read, so they are part of the
// protocol and never renamed.

func watchlistFields(w *domain.Watchlist) map[string]any {
	return map[string]any{
		"owner": w.OwnerID,
		"title": w.Title,
		"type":  string(w.Type),
		"users": w.UserIDs,
		"items": w.ItemIDs,
	}
}

func watchlistFromDoc(doc remote.Document) (*domain.Watchlist, error) {
	owner, ok := doc.String("owner")
	if !ok {
		return nil, fmt.Errorf("watchlist %s: missing owner", doc.ID)
	}
	title, ok := doc.String("title")
	if !ok {
		return nil, fmt.Errorf("watchlist %s: missing title", doc.ID)
	}
	kindStr, ok := doc.String("type")
	if !ok {
		return nil, fmt.Errorf("watchlist %s: missing type", doc.ID)
	}
	kind := domain.ItemKind(kindStr)
	if !kind.Valid() {
		return nil, fmt.Errorf("watchlist %s: unknown type %q", doc.ID, kindStr)
	}

	users, _ := doc.Strings("users")
	items, _ := doc.Strings("items")
	return &domain.Watchlist{
		ID:      doc.ID,
		Title:   title,
		Type:    kind,
		OwnerID: owner,
		UserIDs: users,
		ItemIDs: items,
	}, nil
}

func chatroomFields(c *domain.Chatroom) map[string]any {
	return map[string]any{
		"owner":      c.OwnerID,
		"title":      c.Title,
		"type":       string(c.Type),
		"subjectID":  c.SubjectID,
		"inviteCode": c.InviteCode,
		"users":      c.UserIDs,
	}
}

func chatroomFromDoc(doc remote.Document) (*domain.Chatroom, error) {
	owner, ok := doc.String("owner")
	if !ok {
		return nil, fmt.Errorf("chatroom %s: missing owner", doc.ID)
	}
	title, ok := doc.String("title")
	if !ok {
		return nil, fmt.Errorf("chatroom %s: missing title", doc.ID)
	}
	typeStr, ok := doc.String("type")
	if !ok {
		return nil, fmt.Errorf("chatroom %s: missing type", doc.ID)
	}
	roomType := domain.ChatroomType(typeStr)
	if !roomType.Valid() {
		return nil, fmt.Errorf("chatroom %s: unknown type %q", doc.ID, typeStr)
	}
	subjectID, ok := doc.String("subjectID")
	if !ok {
		return nil, fmt.Errorf("chatroom %s: missing subjectID", doc.ID)
	}
	inviteCode, ok := doc.String("inviteCode")
	if !ok {
		return nil, fmt.Errorf("chatroom %s: missing inviteCode", doc.ID)
	}

	users, _ := doc.Strings("users")
	return &domain.Chatroom{
		ID:         doc.ID,
		InviteCode: inviteCode,
		Title:      title,
		Type:       roomType,
		SubjectID:  subjectID,
		OwnerID:    owner,
		UserIDs:    users,
	}, nil
}

func messageFields(m *domain.Message) map[string]any {
	return map[string]any{
		"sender":     m.SenderID,
		"text":       m.Text,
		"date":       m.Date,
		"chatroomID": m.ChatroomID,
	}
}

func messageFromDoc(doc remote.Document) (*domain.Message, error) {
	sender, ok := doc.String("sender")
	if !ok {
		return nil, fmt.Errorf("message %s: missing sender", doc.ID)
	}
	text, ok := doc.String("text")
	if !ok {
		return nil, fmt.Errorf("message %s: missing text", doc.ID)
	}
	chatroomID, ok := doc.String("chatroomID")
	if !ok {
		return nil, fmt.Errorf("message %s: missing chatroomID", doc.ID)
	}
	date, ok := doc.Time("date")
	if !ok {
		return nil, fmt.Errorf("message %s: missing date", doc.ID)
	}

	return &domain.Message{
		ID:         doc.ID,
		Text:       text,
		SenderID:   sender,
		ChatroomID: chatroomID,
		Date:       date,
	}, nil
}

// watchedItems reads a watched document's item set.
func watchedItems(doc remote.Document) []string {
	items, _ := doc.Strings("items")
	return items
}
