package domain

import "time"

// Message is a single chat message. Messages are immutable once sent; only
// the local Seen flag changes afterwards.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"sender_id"`
	ChatroomID string    `json:"chatroom_id"`
	Date       time.Time `json:"date"`
	Seen       bool      `json:"seen"`
}

// DateSection returns the message date truncated to its day, used to group
// messages under day headers.
func (m *Message) DateSection() time.Time {
	y, mo, d := m.Date.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.Date.Location())
}
