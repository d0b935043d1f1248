// Package docstore defines the document store boundary used by live
// bindings, plus an in-memory store.
package docstore

import (
	"context"

	"github.com/monsters-club/lounge/internal/types"
)

// Store holds named collections of documents and pushes full snapshots of
// a query's projection to its subscribers.
type Store interface {
	// Subscribe opens a snapshot stream for q. The first event carries the
	// current projection.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	// Insert creates a document and returns its store-assigned id.
	Insert(ctx context.Context, collection string, fields types.Fields) (string, error)
	// Update merges fields into the top level of an existing document.
	Update(ctx context.Context, collection, id string, fields types.Fields) error
	// Delete permanently removes a document.
	Delete(ctx context.Context, collection, id string) error
	// Get reads a single document.
	Get(ctx context.Context, collection, id string) (types.Document, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, fields types.Fields) error
	// Create stores the document only if id is free, otherwise it
	// returns ErrExists.
	Create(ctx context.Context, collection, id string, fields types.Fields) error
	Close() error
}

// SetToggler is implemented by stores that can toggle one member of a set
// field atomically. The set lives at fields[field][key] as a list of
// strings; member is added when absent and removed when present.
type SetToggler interface {
	ToggleMember(ctx context.Context, collection, id, field, key, member string) error
}

// Backend names a store implementation in metrics and logs.
type Backend interface {
	BackendName() string
}

// BackendName returns the backend label for s.
func BackendName(s Store) string {
	if b, ok := s.(Backend); ok {
		return b.BackendName()
	}
	return "unknown"
}

// TogglerOf returns store's SetToggler when it can toggle atomically.
// Wrappers that always expose ToggleMember report the wrapped store's
// capability through SupportsToggle.
func TogglerOf(store Store) (SetToggler, bool) {
	if w, ok := store.(interface{ SupportsToggle() bool }); ok && !w.SupportsToggle() {
		return nil, false
	}
	t, ok := store.(SetToggler)
	return t, ok
}
