// Package domain defines the entities shared by the local store, the sync
// coordinator and the server event pipeline.
package domain

// User is a person known to the app. The ID is the identity provider's
// subject and is stable across devices.
//
// Users referenced by chatrooms or watchlists may exist locally before their
// profile has been fetched; Username is empty until the backfill completes.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Placeholder reports whether this user record is still awaiting its
// profile backfill.
func (u *User) Placeholder() bool {
	return u.Username == ""
}
