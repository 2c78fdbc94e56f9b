package domain

import "slices"

// WatchedList tracks which catalog items a user has marked watched. The
// watched flag is per-user, not per-item: two members of the same watchlist
// keep independent watched state.
type WatchedList struct {
	UserID  string   `json:"user_id"`
	ItemIDs []string `json:"item_ids"`
}

// Watched reports whether the item is marked watched.
func (w *WatchedList) Watched(itemID string) bool {
	return slices.Contains(w.ItemIDs, itemID)
}

// SetWatched adds or removes the item from the watched set.
func (w *WatchedList) SetWatched(itemID string, watched bool) {
	if watched {
		if !w.Watched(itemID) {
			w.ItemIDs = append(w.ItemIDs, itemID)
		}
		return
	}
	w.ItemIDs = slices.DeleteFunc(w.ItemIDs, func(id string) bool { return id == itemID })
}
