package domain

import "slices"

// Watchlist is a named, typed collection of catalog items shared among its
// member users. The item and member sets are mutated only through the sync
// coordinator so that both stores stay in agreement.
type Watchlist struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Type    ItemKind `json:"type"`
	OwnerID string   `json:"owner_id"`
	ItemIDs []string `json:"item_ids"`
	UserIDs []string `json:"user_ids"`
}

// HasItem reports whether the watchlist references the given item.
func (w *Watchlist) HasItem(itemID string) bool {
	return slices.Contains(w.ItemIDs, itemID)
}

// HasUser reports whether the given user is a member.
func (w *Watchlist) HasUser(userID string) bool {
	return slices.Contains(w.UserIDs, userID)
}

// AddItem appends itemID if not already present.
func (w *Watchlist) AddItem(itemID string) {
	if !w.HasItem(itemID) {
		w.ItemIDs = append(w.ItemIDs, itemID)
	}
}

// RemoveItem removes itemID if present.
func (w *Watchlist) RemoveItem(itemID string) {
	w.ItemIDs = slices.DeleteFunc(w.ItemIDs, func(id string) bool { return id == itemID })
}

// AddUser appends userID if not already present.
func (w *Watchlist) AddUser(userID string) {
	if !w.HasUser(userID) {
		w.UserIDs = append(w.UserIDs, userID)
	}
}
