package metrics

import (
	"context"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
)

// InstrumentedStore counts the operations of the store it wraps.
type InstrumentedStore struct {
	docstore.Store
	backend string
}

// InstrumentStore wraps store so every call is counted in StoreOpsTotal.
func InstrumentStore(store docstore.Store) *InstrumentedStore {
	return &InstrumentedStore{Store: store, backend: docstore.BackendName(store)}
}

func (s *InstrumentedStore) BackendName() string { return s.backend }

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() docstore.Store { return s.Store }

func (s *InstrumentedStore) observe(op string, err error) {
	StoreOpsTotal.WithLabelValues(s.backend, op, Result(err)).Inc()
}

func (s *InstrumentedStore) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	sub, err := s.Store.Subscribe(ctx, q)
	s.observe("subscribe", err)
	return sub, err
}

func (s *InstrumentedStore) Insert(ctx context.Context, collection string, fields types.Fields) (string, error) {
	id, err := s.Store.Insert(ctx, collection, fields)
	s.observe(string(docstore.OpInsert), err)
	return id, err
}

func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, fields types.Fields) error {
	err := s.Store.Update(ctx, collection, id, fields)
	s.observe(string(docstore.OpUpdate), err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) error {
	err := s.Store.Delete(ctx, collection, id)
	s.observe(string(docstore.OpDelete), err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (types.Document, error) {
	doc, err := s.Store.Get(ctx, collection, id)
	s.observe("get", err)
	return doc, err
}

func (s *InstrumentedStore) Set(ctx context.Context, collection, id string, fields types.Fields) error {
	err := s.Store.Set(ctx, collection, id, fields)
	s.observe(string(docstore.OpSet), err)
	return err
}

func (s *InstrumentedStore) Create(ctx context.Context, collection, id string, fields types.Fields) error {
	err := s.Store.Create(ctx, collection, id, fields)
	s.observe(string(docstore.OpCreate), err)
	return err
}

// ToggleMember forwards to the wrapped store. Callers should check
// SupportsToggle first; the wrapper always satisfies docstore.SetToggler.
func (s *InstrumentedStore) ToggleMember(ctx context.Context, collection, id, field, key, member string) error {
	toggler, ok := s.Store.(docstore.SetToggler)
	if !ok {
		err := docstore.ErrToggleUnsupported
		s.observe(string(docstore.OpToggle), err)
		return err
	}
	err := toggler.ToggleMember(ctx, collection, id, field, key, member)
	s.observe(string(docstore.OpToggle), err)
	return err
}

// SupportsToggle reports whether the wrapped store can toggle atomically.
func (s *InstrumentedStore) SupportsToggle() bool {
	_, ok := s.Store.(docstore.SetToggler)
	return ok
}
