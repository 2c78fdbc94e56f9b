// Package remote defines the contract the sync layer and the server event
// pipeline consume from the hosted document store. Two implementations
// exist: remote/firestore for production and remote/memory for tests and
// local development.
package remote

import (
	"context"
	"time"

	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = apperrors.NotFound("document not found")

// Collection names.
const (
	CollectionUsers      = "users"
	CollectionWatched    = "watched"
	CollectionWatchlists = "watchlists"
	CollectionChatrooms  = "chatrooms"
	CollectionMessages   = "messages"
)

// Query operators.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

// Document is a remote document snapshot.
type Document struct {
	ID     string
	Fields map[string]any
}

// String returns the named field as a string.
func (d Document) String(field string) (string, bool) {
	v, ok := d.Fields[field].(string)
	return v, ok
}

// Strings returns the named field as a string slice. Providers hand array
// fields back as []any, so both layouts are accepted.
func (d Document) Strings(field string) ([]string, bool) {
	switch v := d.Fields[field].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Time returns the named field as a time.Time.
func (d Document) Time(field string) (time.Time, bool) {
	v, ok := d.Fields[field].(time.Time)
	return v, ok
}

// UpdateOp selects how an Update is applied to a field.
type UpdateOp int

const (
	// UpdateSet replaces the field value.
	UpdateSet UpdateOp = iota
	// UpdateArrayUnion adds elements to an array field, skipping ones
	// already present. Commutative with other unions.
	UpdateArrayUnion
	// UpdateArrayRemove removes elements from an array field.
	UpdateArrayRemove
)

// Update is a single field mutation within UpdateDocument.
type Update struct {
	Field string
	Op    UpdateOp
	Value any
}

// Set replaces field with value.
func Set(field string, value any) Update {
	return Update{Field: field, Op: UpdateSet, Value: value}
}

// ArrayUnion adds elements to an array field.
func ArrayUnion(field string, elements ...any) Update {
	return Update{Field: field, Op: UpdateArrayUnion, Value: elements}
}

// ArrayRemove removes elements from an array field.
func ArrayRemove(field string, elements ...any) Update {
	return Update{Field: field, Op: UpdateArrayRemove, Value: elements}
}

// ChangeKind classifies a subscription event.
type ChangeKind int

const (
	// Added means the document entered the watched set.
	Added ChangeKind = iota
	// Modified means the document changed while in the watched set.
	Modified
	// Removed means the document left the watched set (deleted, or no
	// longer matching the query).
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one subscription event.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Handler consumes subscription events. Handlers run on the provider's
// delivery goroutine and must not block.
type Handler func(Change)

// Subscription is a handle on an active document or query subscription.
type Subscription interface {
	// Cancel stops delivery. Safe to call more than once.
	Cancel()
}

// Tx is the operation set available inside RunTransaction. Reads must happen
// before writes, mirroring provider transaction rules.
type Tx interface {
	Get(collection, id string) (Document, error)
	Set(collection, id string, fields map[string]any)
	Update(collection, id string, updates []Update)
	Delete(collection, id string)
}

// Store is the remote document store contract.
//
// Writes are atomic per document: a failed call leaves the document
// untouched, never partially updated.
type Store interface {
	SetDocument(ctx context.Context, collection, id string, fields map[string]any) error
	UpdateDocument(ctx context.Context, collection, id string, updates []Update) error
	DeleteDocument(ctx context.Context, collection, id string) error
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection, field, op string, value any) ([]Document, error)
	QueryLimit(ctx context.Context, collection, field, op string, value any, limit int) ([]Document, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	SubscribeDocument(ctx context.Context, collection, id string, handler Handler) (Subscription, error)
	SubscribeQuery(ctx context.Context, collection, field, op string, value any, handler Handler) (Subscription, error)

	// SubscribeCollection streams changes made to any document in the
	// collection from this call onward. Unlike the other subscriptions,
	// the current contents are not replayed as an initial snapshot.
	SubscribeCollection(ctx context.Context, collection string, handler Handler) (Subscription, error)
}
