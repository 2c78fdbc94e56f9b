// Package memory provides an in-process remote.Store used by tests and
// local development. It reproduces the hosted provider's observable
// behavior: snapshot fan-out to subscribers including the echo of a
// client's own writes, initial snapshots on subscribe, and atomic
// per-document updates.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/couchclub/couchclub-sync/internal/id"
	"github.com/couchclub/couchclub-sync/internal/remote"
)

// Store is an in-memory remote.Store. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[string]*subscription
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[string]*subscription),
	}
}

type subscription struct {
	id         string
	collection string
	handler    remote.Handler

	// Document subscriptions watch a single id; query subscriptions
	// watch a predicate; collection subscriptions watch everything.
	docID string
	query bool
	all   bool
	field string
	op    string
	value any

	store *Store
}

func (s *subscription) matchesFields(fields map[string]any) bool {
	if s.all {
		return true
	}
	return matches(fields, s.field, s.op, s.value)
}

func (s *subscription) Cancel() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.subs, s.id)
}

type notification struct {
	handler remote.Handler
	change  remote.Change
}

// SetDocument creates or replaces a document.
func (s *Store) SetDocument(ctx context.Context, collection, docID string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	old, existed := s.getLocked(collection, docID)
	s.putLocked(collection, docID, cloneFields(fields))
	updated, _ := s.getLocked(collection, docID)
	notes := s.collectLocked(collection, docID, old, existed, updated, true)
	s.mu.Unlock()

	deliver(notes)
	return nil
}

// UpdateDocument applies field updates to an existing document. All updates
// apply or none do.
func (s *Store) UpdateDocument(ctx context.Context, collection, docID string, updates []remote.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	old, existed := s.getLocked(collection, docID)
	if !existed {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, docID, remote.ErrNotFound)
	}

	next := cloneFields(old)
	applyUpdates(next, updates)
	s.putLocked(collection, docID, next)
	updated, _ := s.getLocked(collection, docID)
	notes := s.collectLocked(collection, docID, old, true, updated, true)
	s.mu.Unlock()

	deliver(notes)
	return nil
}

// DeleteDocument removes a document. Deleting a missing document is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, collection, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	old, existed := s.getLocked(collection, docID)
	if existed {
		delete(s.collections[collection], docID)
	}
	notes := s.collectLocked(collection, docID, old, existed, nil, false)
	s.mu.Unlock()

	deliver(notes)
	return nil
}

// GetDocument fetches one document.
func (s *Store) GetDocument(ctx context.Context, collection, docID string) (remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return remote.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.getLocked(collection, docID)
	if !ok {
		return remote.Document{}, fmt.Errorf("get %s/%s: %w", collection, docID, remote.ErrNotFound)
	}
	return remote.Document{ID: docID, Fields: cloneFields(fields)}, nil
}

// Query returns all documents in the collection matching field op value.
func (s *Store) Query(ctx context.Context, collection, field, op string, value any) ([]remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []remote.Document
	for docID, fields := range s.collections[collection] {
		if matches(fields, field, op, value) {
			docs = append(docs, remote.Document{ID: docID, Fields: cloneFields(fields)})
		}
	}
	return docs, nil
}

// QueryLimit is Query capped at limit documents. Order is unspecified,
// matching the provider's behavior for unordered queries.
func (s *Store) QueryLimit(ctx context.Context, collection, field, op string, value any, limit int) ([]remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []remote.Document
	for docID, fields := range s.collections[collection] {
		if len(docs) == limit {
			break
		}
		if matches(fields, field, op, value) {
			docs = append(docs, remote.Document{ID: docID, Fields: cloneFields(fields)})
		}
	}
	return docs, nil
}

type memTx struct {
	store *Store
	ops   []func()
	notes *[]notification
}

func (t *memTx) Get(collection, docID string) (remote.Document, error) {
	fields, ok := t.store.getLocked(collection, docID)
	if !ok {
		return remote.Document{}, fmt.Errorf("tx get %s/%s: %w", collection, docID, remote.ErrNotFound)
	}
	return remote.Document{ID: docID, Fields: cloneFields(fields)}, nil
}

func (t *memTx) Set(collection, docID string, fields map[string]any) {
	cloned := cloneFields(fields)
	t.ops = append(t.ops, func() {
		old, existed := t.store.getLocked(collection, docID)
		t.store.putLocked(collection, docID, cloned)
		updated, _ := t.store.getLocked(collection, docID)
		*t.notes = append(*t.notes, t.store.collectLocked(collection, docID, old, existed, updated, true)...)
	})
}

func (t *memTx) Update(collection, docID string, updates []remote.Update) {
	t.ops = append(t.ops, func() {
		old, existed := t.store.getLocked(collection, docID)
		if !existed {
			return
		}
		next := cloneFields(old)
		applyUpdates(next, updates)
		t.store.putLocked(collection, docID, next)
		updated, _ := t.store.getLocked(collection, docID)
		*t.notes = append(*t.notes, t.store.collectLocked(collection, docID, old, true, updated, true)...)
	})
}

func (t *memTx) Delete(collection, docID string) {
	t.ops = append(t.ops, func() {
		old, existed := t.store.getLocked(collection, docID)
		if existed {
			delete(t.store.collections[collection], docID)
		}
		*t.notes = append(*t.notes, t.store.collectLocked(collection, docID, old, existed, nil, false)...)
	})
}

// RunTransaction runs fn against a transaction. Buffered writes apply only
// when fn returns nil; an error discards them all.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx remote.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	var notes []notification
	tx := &memTx{store: s, notes: &notes}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, op := range tx.ops {
		op()
	}
	s.mu.Unlock()

	deliver(notes)
	return nil
}

// SubscribeDocument watches a single document. The current snapshot, if the
// document exists, is delivered as an Added change before this returns.
func (s *Store) SubscribeDocument(ctx context.Context, collection, docID string, handler remote.Handler) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		id:         id.MustGenerate("memsub"),
		collection: collection,
		docID:      docID,
		handler:    handler,
		store:      s,
	}

	s.mu.Lock()
	s.subs[sub.id] = sub
	var notes []notification
	if fields, ok := s.getLocked(collection, docID); ok {
		notes = append(notes, notification{
			handler: handler,
			change: remote.Change{
				Kind: remote.Added,
				Doc:  remote.Document{ID: docID, Fields: cloneFields(fields)},
			},
		})
	}
	s.mu.Unlock()

	deliver(notes)
	return sub, nil
}

// SubscribeQuery watches all documents matching field op value. Current
// matches are delivered as Added changes before this returns.
func (s *Store) SubscribeQuery(ctx context.Context, collection, field, op string, value any, handler remote.Handler) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		id:         id.MustGenerate("memsub"),
		collection: collection,
		query:      true,
		field:      field,
		op:         op,
		value:      value,
		handler:    handler,
		store:      s,
	}

	s.mu.Lock()
	s.subs[sub.id] = sub
	var notes []notification
	for docID, fields := range s.collections[collection] {
		if matches(fields, field, op, value) {
			notes = append(notes, notification{
				handler: handler,
				change: remote.Change{
					Kind: remote.Added,
					Doc:  remote.Document{ID: docID, Fields: cloneFields(fields)},
				},
			})
		}
	}
	s.mu.Unlock()

	deliver(notes)
	return sub, nil
}

// SubscribeCollection watches every document in the collection. No initial
// snapshot is delivered; only changes from this call onward.
func (s *Store) SubscribeCollection(ctx context.Context, collection string, handler remote.Handler) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		id:         id.MustGenerate("memsub"),
		collection: collection,
		query:      true,
		all:        true,
		handler:    handler,
		store:      s,
	}

	s.mu.Lock()
	s.subs[sub.id] = sub
	s.mu.Unlock()

	return sub, nil
}

func (s *Store) getLocked(collection, docID string) (map[string]any, bool) {
	fields, ok := s.collections[collection][docID]
	return fields, ok
}

func (s *Store) putLocked(collection, docID string, fields map[string]any) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]any)
	}
	s.collections[collection][docID] = fields
}

// collectLocked computes the subscriber notifications for one document
// transition. Handlers run after the lock is released.
func (s *Store) collectLocked(collection, docID string, old map[string]any, hadOld bool, next map[string]any, hasNext bool) []notification {
	var notes []notification
	for _, sub := range s.subs {
		if sub.collection != collection {
			continue
		}

		if !sub.query {
			if sub.docID != docID {
				continue
			}
			switch {
			case hasNext && !hadOld:
				notes = append(notes, note(sub, remote.Added, docID, next))
			case hasNext && hadOld:
				notes = append(notes, note(sub, remote.Modified, docID, next))
			case !hasNext && hadOld:
				notes = append(notes, note(sub, remote.Removed, docID, old))
			}
			continue
		}

		oldMatch := hadOld && sub.matchesFields(old)
		newMatch := hasNext && sub.matchesFields(next)
		switch {
		case newMatch && !oldMatch:
			notes = append(notes, note(sub, remote.Added, docID, next))
		case newMatch && oldMatch:
			notes = append(notes, note(sub, remote.Modified, docID, next))
		case !newMatch && oldMatch:
			notes = append(notes, note(sub, remote.Removed, docID, old))
		}
	}
	return notes
}

func note(sub *subscription, kind remote.ChangeKind, docID string, fields map[string]any) notification {
	return notification{
		handler: sub.handler,
		change: remote.Change{
			Kind: kind,
			Doc:  remote.Document{ID: docID, Fields: cloneFields(fields)},
		},
	}
}

func deliver(notes []notification) {
	for _, n := range notes {
		n.handler(n.change)
	}
}

func matches(fields map[string]any, field, op string, value any) bool {
	switch op {
	case remote.OpEqual:
		return reflect.DeepEqual(fields[field], value)
	case remote.OpArrayContains:
		elems, ok := asSlice(fields[field])
		if !ok {
			return false
		}
		for _, e := range elems {
			if reflect.DeepEqual(e, value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func applyUpdates(fields map[string]any, updates []remote.Update) {
	for _, u := range updates {
		switch u.Op {
		case remote.UpdateSet:
			fields[u.Field] = u.Value
		case remote.UpdateArrayUnion:
			existing, _ := asSlice(fields[u.Field])
			additions, _ := asSlice(u.Value)
			for _, add := range additions {
				if !containsElem(existing, add) {
					existing = append(existing, add)
				}
			}
			fields[u.Field] = existing
		case remote.UpdateArrayRemove:
			existing, _ := asSlice(fields[u.Field])
			removals, _ := asSlice(u.Value)
			kept := existing[:0:0]
			for _, e := range existing {
				if !containsElem(removals, e) {
					kept = append(kept, e)
				}
			}
			fields[u.Field] = kept
		}
	}
}

func containsElem(elems []any, target any) bool {
	for _, e := range elems {
		if reflect.DeepEqual(e, target) {
			return true
		}
	}
	return false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case nil:
		return nil, true
	default:
		return nil, false
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := asSlice(v); ok && v != nil {
			cloned := make([]any, len(s))
			copy(cloned, s)
			out[k] = cloned
			continue
		}
		out[k] = v
	}
	return out
}
