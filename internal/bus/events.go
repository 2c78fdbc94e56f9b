// Package bus implements the typed in-process notification bus that carries
// data-change events from the sync layer to interested observers (UI view
// models, badge counters).
package bus

import "time"

// EventType represents the type of a bus event.
type EventType string

const (
	// EventWatchlistsChanged signals a bulk change to the watchlist set
	// (creation, deletion, restore).
	EventWatchlistsChanged EventType = "watchlists.changed"
	// EventWatchlistChanged signals a change inside a single watchlist.
	EventWatchlistChanged EventType = "watchlist.changed"

	// EventChatroomsChanged signals a bulk change to the chatroom set.
	EventChatroomsChanged EventType = "chatrooms.changed"
	// EventChatroomChanged signals a change inside a single chatroom
	// (membership, new message).
	EventChatroomChanged EventType = "chatroom.changed"
	// EventChatroomDeleted signals that a chatroom no longer exists, so
	// any view of it must be torn down.
	EventChatroomDeleted EventType = "chatroom.deleted"

	// EventItemWatchedChanged signals that the current user toggled the
	// watched flag on an item.
	EventItemWatchedChanged EventType = "item.watched_changed"
)

// Event is a bus notification. Payload fields carry entity identity only;
// observers re-read the local store for the data itself.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	WatchlistID string    `json:"watchlist_id,omitempty"`
	ChatroomID  string    `json:"chatroom_id,omitempty"`
	ItemID      string    `json:"item_id,omitempty"`
	Watched     bool      `json:"watched,omitempty"`
}

// NewWatchlistsChangedEvent creates a watchlists.changed event.
func NewWatchlistsChangedEvent() Event {
	return Event{
		Type:      EventWatchlistsChanged,
		Timestamp: time.Now(),
	}
}

// NewWatchlistChangedEvent creates a watchlist.changed event.
func NewWatchlistChangedEvent(watchlistID string) Event {
	return Event{
		Type:        EventWatchlistChanged,
		WatchlistID: watchlistID,
		Timestamp:   time.Now(),
	}
}

// NewChatroomsChangedEvent creates a chatrooms.changed event.
func NewChatroomsChangedEvent() Event {
	return Event{
		Type:      EventChatroomsChanged,
		Timestamp: time.Now(),
	}
}

// NewChatroomChangedEvent creates a chatroom.changed event.
func NewChatroomChangedEvent(chatroomID string) Event {
	return Event{
		Type:       EventChatroomChanged,
		ChatroomID: chatroomID,
		Timestamp:  time.Now(),
	}
}

// NewChatroomDeletedEvent creates a chatroom.deleted event.
func NewChatroomDeletedEvent(chatroomID string) Event {
	return Event{
		Type:       EventChatroomDeleted,
		ChatroomID: chatroomID,
		Timestamp:  time.Now(),
	}
}

// NewItemWatchedChangedEvent creates an item.watched_changed event.
func NewItemWatchedChangedEvent(itemID string, watched bool) Event {
	return Event{
		Type:      EventItemWatchedChanged,
		ItemID:    itemID,
		Watched:   watched,
		Timestamp: time.Now(),
	}
}
