// Package firestore adapts Cloud Firestore to the remote.Store contract.
package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/couchclub/couchclub-sync/internal/remote"
)

// Store wraps a Firestore client.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

// New creates a Store around an existing Firestore client. The caller owns
// the client's lifecycle.
func New(client *firestore.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// SetDocument creates or replaces a document.
func (s *Store) SetDocument(ctx context.Context, collection, docID string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(docID).Set(ctx, fields)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, docID, err)
	}
	return nil
}

// UpdateDocument applies field updates to an existing document.
func (s *Store) UpdateDocument(ctx context.Context, collection, docID string, updates []remote.Update) error {
	_, err := s.client.Collection(collection).Doc(docID).Update(ctx, toFirestoreUpdates(updates))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, docID, mapNotFound(err))
	}
	return nil
}

// DeleteDocument removes a document. Missing documents are not an error.
func (s *Store) DeleteDocument(ctx context.Context, collection, docID string) error {
	_, err := s.client.Collection(collection).Doc(docID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, docID, err)
	}
	return nil
}

// GetDocument fetches one document.
func (s *Store) GetDocument(ctx context.Context, collection, docID string) (remote.Document, error) {
	snap, err := s.client.Collection(collection).Doc(docID).Get(ctx)
	if err != nil {
		return remote.Document{}, fmt.Errorf("get %s/%s: %w", collection, docID, mapNotFound(err))
	}
	return toDocument(snap), nil
}

// Query returns all documents matching field op value.
func (s *Store) Query(ctx context.Context, collection, field, op string, value any) ([]remote.Document, error) {
	snaps, err := s.client.Collection(collection).Where(field, op, value).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s where %s %s: %w", collection, field, op, err)
	}
	docs := make([]remote.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

// QueryLimit is Query capped at limit documents.
func (s *Store) QueryLimit(ctx context.Context, collection, field, op string, value any, limit int) ([]remote.Document, error) {
	snaps, err := s.client.Collection(collection).Where(field, op, value).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s where %s %s: %w", collection, field, op, err)
	}
	docs := make([]remote.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

type fsTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
	errs   []error
}

func (t *fsTx) Get(collection, docID string) (remote.Document, error) {
	snap, err := t.tx.Get(t.client.Collection(collection).Doc(docID))
	if err != nil {
		return remote.Document{}, fmt.Errorf("tx get %s/%s: %w", collection, docID, mapNotFound(err))
	}
	return toDocument(snap), nil
}

func (t *fsTx) Set(collection, docID string, fields map[string]any) {
	if err := t.tx.Set(t.client.Collection(collection).Doc(docID), fields); err != nil {
		t.errs = append(t.errs, err)
	}
}

func (t *fsTx) Update(collection, docID string, updates []remote.Update) {
	if err := t.tx.Update(t.client.Collection(collection).Doc(docID), toFirestoreUpdates(updates)); err != nil {
		t.errs = append(t.errs, err)
	}
}

func (t *fsTx) Delete(collection, docID string) {
	if err := t.tx.Delete(t.client.Collection(collection).Doc(docID)); err != nil {
		t.errs = append(t.errs, err)
	}
}

// RunTransaction runs fn transactionally; Firestore retries on contention.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx remote.Tx) error) error {
	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		wrapped := &fsTx{client: s.client, tx: tx}
		if err := fn(wrapped); err != nil {
			return err
		}
		if len(wrapped.errs) > 0 {
			return wrapped.errs[0]
		}
		return nil
	})
}

type snapshotSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (s *snapshotSubscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// SubscribeDocument streams snapshots of a single document. Deletion (or a
// document that never existed) surfaces as a Removed change.
func (s *Store) SubscribeDocument(ctx context.Context, collection, docID string, handler remote.Handler) (remote.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &snapshotSubscription{cancel: cancel, done: make(chan struct{})}
	snaps := s.client.Collection(collection).Doc(docID).Snapshots(subCtx)

	go func() {
		defer close(sub.done)
		defer snaps.Stop()

		seen := false
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					s.logger.Error("document snapshot stream failed",
						slog.String("collection", collection),
						slog.String("doc_id", docID),
						slog.Any("error", err))
				}
				return
			}

			if !snap.Exists() {
				if seen {
					handler(remote.Change{Kind: remote.Removed, Doc: remote.Document{ID: docID}})
				}
				continue
			}

			kind := remote.Modified
			if !seen {
				kind = remote.Added
			}
			seen = true
			handler(remote.Change{Kind: kind, Doc: toDocument(snap)})
		}
	}()

	return sub, nil
}

// SubscribeQuery streams snapshot changes for all documents matching
// field op value.
func (s *Store) SubscribeQuery(ctx context.Context, collection, field, op string, value any, handler remote.Handler) (remote.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &snapshotSubscription{cancel: cancel, done: make(chan struct{})}
	snaps := s.client.Collection(collection).Where(field, op, value).Snapshots(subCtx)

	go func() {
		defer close(sub.done)
		defer snaps.Stop()

		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					s.logger.Error("query snapshot stream failed",
						slog.String("collection", collection),
						slog.String("field", field),
						slog.Any("error", err))
				}
				return
			}

			for _, change := range snap.Changes {
				handler(remote.Change{
					Kind: toChangeKind(change.Kind),
					Doc:  toDocument(change.Doc),
				})
			}
		}
	}()

	return sub, nil
}

// SubscribeCollection streams changes to any document in the collection.
// The first snapshot carries the pre-existing contents and is skipped, so
// only changes made after the call are delivered.
func (s *Store) SubscribeCollection(ctx context.Context, collection string, handler remote.Handler) (remote.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &snapshotSubscription{cancel: cancel, done: make(chan struct{})}
	snaps := s.client.Collection(collection).Snapshots(subCtx)

	go func() {
		defer close(sub.done)
		defer snaps.Stop()

		first := true
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					s.logger.Error("collection snapshot stream failed",
						slog.String("collection", collection),
						slog.Any("error", err))
				}
				return
			}

			if first {
				first = false
				continue
			}
			for _, change := range snap.Changes {
				handler(remote.Change{
					Kind: toChangeKind(change.Kind),
					Doc:  toDocument(change.Doc),
				})
			}
		}
	}()

	return sub, nil
}

func toDocument(snap *firestore.DocumentSnapshot) remote.Document {
	return remote.Document{ID: snap.Ref.ID, Fields: snap.Data()}
}

func toChangeKind(kind firestore.DocumentChangeKind) remote.ChangeKind {
	switch kind {
	case firestore.DocumentAdded:
		return remote.Added
	case firestore.DocumentRemoved:
		return remote.Removed
	default:
		return remote.Modified
	}
}

func toFirestoreUpdates(updates []remote.Update) []firestore.Update {
	out := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		fu := firestore.Update{Path: u.Field}
		switch u.Op {
		case remote.UpdateArrayUnion:
			fu.Value = firestore.ArrayUnion(toElems(u.Value)...)
		case remote.UpdateArrayRemove:
			fu.Value = firestore.ArrayRemove(toElems(u.Value)...)
		case remote.UpdateSet:
			fu.Value = u.Value
		}
		out = append(out, fu)
	}
	return out
}

func toElems(v any) []any {
	if elems, ok := v.([]any); ok {
		return elems
	}
	return []any{v}
}

func mapNotFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return remote.ErrNotFound
	}
	return err
}
