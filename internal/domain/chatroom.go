package domain

import "slices"

// ChatroomType describes what a chatroom is about.
type ChatroomType string

const (
	// ChatroomTypeWatchlist scopes the room to a shared watchlist.
	ChatroomTypeWatchlist ChatroomType = "watchlist"
	// ChatroomTypeMovie scopes the room to a single movie.
	ChatroomTypeMovie ChatroomType = "movie"
	// ChatroomTypeShow scopes the room to a single series.
	ChatroomTypeShow ChatroomType = "show"
)

// Valid reports whether t is a known chatroom type.
func (t ChatroomType) Valid() bool {
	switch t {
	case ChatroomTypeWatchlist, ChatroomTypeMovie, ChatroomTypeShow:
		return true
	default:
		return false
	}
}

// SubjectItemKind maps an item-scoped chatroom type to the catalog kind of
// its subject. Returns false for watchlist-scoped rooms.
func (t ChatroomType) SubjectItemKind() (ItemKind, bool) {
	switch t {
	case ChatroomTypeMovie:
		return ItemKindMovie, true
	case ChatroomTypeShow:
		return ItemKindSeries, true
	default:
		return "", false
	}
}

// Chatroom is a messaging channel scoped to a watchlist or a single item,
// joinable via invite code.
type Chatroom struct {
	ID         string       `json:"id"`
	InviteCode string       `json:"invite_code"`
	Title      string       `json:"title"`
	Type       ChatroomType `json:"type"`
	SubjectID  string       `json:"subject_id"`
	OwnerID    string       `json:"owner_id"`
	UserIDs    []string     `json:"user_ids"`
}

// HasUser reports whether the given user is a member.
func (c *Chatroom) HasUser(userID string) bool {
	return slices.Contains(c.UserIDs, userID)
}

// AddUser appends userID if not already present.
func (c *Chatroom) AddUser(userID string) {
	if !c.HasUser(userID) {
		c.UserIDs = append(c.UserIDs, userID)
	}
}

// RemoveUser removes userID if present. The owner is never removed this way;
// ownership transfer does not exist, owners delete the room instead.
func (c *Chatroom) RemoveUser(userID string) {
	if userID == c.OwnerID {
		return
	}
	c.UserIDs = slices.DeleteFunc(c.UserIDs, func(id string) bool { return id == userID })
}
