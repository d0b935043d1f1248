// Package cms manages the club's public content collections. Reads come
// from a live binding; writes need an admin identity.
package cms

import (
	"context"
	"errors"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/lounge"
)

// ErrNotAdmin rejects a content change by a non-admin.
var ErrNotAdmin = errors.New("admin role required")

// Manager edits one content collection.
type Manager[T any] struct {
	kind     Kind[T]
	binding  *live.Binding[T]
	identity lounge.IdentitySource
}

// Open binds to kind's collection in store.
func Open[T any](ctx context.Context, store docstore.Store, kind Kind[T], identity lounge.IdentitySource, opts ...live.Option) (*Manager[T], error) {
	binding, err := live.Open(ctx, store, kind.Query(), kind.Codec, opts...)
	if err != nil {
		return nil, err
	}
	return &Manager[T]{kind: kind, binding: binding, identity: identity}, nil
}

func (m *Manager[T]) requireAdmin(ctx context.Context) error {
	if m.identity == nil {
		return lounge.ErrSignedOut
	}
	who, err := m.identity.Current(ctx)
	if err != nil {
		return err
	}
	if who == nil {
		return lounge.ErrSignedOut
	}
	if !who.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

func (m *Manager[T]) validate(value T) error {
	if m.kind.Validate == nil {
		return nil
	}
	return m.kind.Validate(value)
}

// Add creates a record and returns its id.
func (m *Manager[T]) Add(ctx context.Context, value T) (string, error) {
	if err := m.requireAdmin(ctx); err != nil {
		return "", err
	}
	if err := m.validate(value); err != nil {
		return "", err
	}
	return m.binding.Insert(ctx, value)
}

// Update writes every form field of value over the record with id.
func (m *Manager[T]) Update(ctx context.Context, id string, value T) error {
	if err := m.requireAdmin(ctx); err != nil {
		return err
	}
	if err := m.validate(value); err != nil {
		return err
	}
	fields, err := m.kind.Codec.Encode(value)
	if err != nil {
		return err
	}
	return m.binding.Update(ctx, id, fields)
}

// Remove deletes the record with id.
func (m *Manager[T]) Remove(ctx context.Context, id string) error {
	if err := m.requireAdmin(ctx); err != nil {
		return err
	}
	return m.binding.Remove(ctx, id)
}

// Collection returns the managed collection name.
func (m *Manager[T]) Collection() string { return m.kind.Collection }

// List returns the mirrored records.
func (m *Manager[T]) List() []T { return m.binding.List() }

// Find returns the mirrored record with id.
func (m *Manager[T]) Find(id string) (T, bool) { return m.binding.Find(id) }

// Status returns the binding status.
func (m *Manager[T]) Status() live.Status { return m.binding.Status() }

// Err returns the subscription error while errored.
func (m *Manager[T]) Err() error { return m.binding.Err() }

// Wait blocks until pred holds for the mirrored records.
func (m *Manager[T]) Wait(ctx context.Context, pred func([]T) bool) error {
	return m.binding.Wait(ctx, pred)
}

// Close releases the binding.
func (m *Manager[T]) Close() error { return m.binding.Close() }
