package docstore

import (
	"context"
	"sync"

	"github.com/monsters-club/lounge/internal/types"
	"github.com/oklog/ulid/v2"
)

// Memory is an in-process Store. Documents keep their insertion order,
// which is the store order used to break ordering ties.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	subs        map[string]map[*Subscription]*Projection
	closed      bool
	newID       func() string
}

type memCollection struct {
	order []string
	docs  map[string]types.Fields
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithIDGenerator overrides the document id generator.
func WithIDGenerator(fn func() string) MemoryOption {
	return func(m *Memory) {
		m.newID = fn
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		collections: make(map[string]*memCollection),
		subs:        make(map[string]map[*Subscription]*Projection),
		newID:       func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) BackendName() string { return "memory" }

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]types.Fields)}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := Compile(q)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = NewSubscription(q, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[q.Collection], sub)
	})
	if m.subs[q.Collection] == nil {
		m.subs[q.Collection] = make(map[*Subscription]*Projection)
	}
	m.subs[q.Collection][sub] = p
	sub.Publish(p.Apply(m.snapshotLocked(q.Collection)))
	return sub, nil
}

func (m *Memory) Insert(ctx context.Context, collection string, fields types.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized, err := Normalize(fields)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	c := m.collection(collection)
	id := m.newID()
	c.order = append(c.order, id)
	c.docs[id] = normalized
	m.notifyLocked(collection)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields types.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := Normalize(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	c := m.collection(collection)
	current, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	c.docs[id] = Merge(current, normalized)
	m.notifyLocked(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	c := m.collection(collection)
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	m.notifyLocked(collection)
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (types.Document, error) {
	if err := ctx.Err(); err != nil {
		return types.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return types.Document{}, ErrClosed
	}
	fields, ok := m.collection(collection).docs[id]
	if !ok {
		return types.Document{}, ErrNotFound
	}
	copied, err := Normalize(fields)
	if err != nil {
		return types.Document{}, err
	}
	return types.Document{ID: id, Fields: copied}, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields types.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := Normalize(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	c := m.collection(collection)
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = normalized
	m.notifyLocked(collection)
	return nil
}

func (m *Memory) Create(ctx context.Context, collection, id string, fields types.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := Normalize(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	c := m.collection(collection)
	if _, ok := c.docs[id]; ok {
		return ErrExists
	}
	c.order = append(c.order, id)
	c.docs[id] = normalized
	m.notifyLocked(collection)
	return nil
}

// ToggleMember implements SetToggler under the store lock.
func (m *Memory) ToggleMember(ctx context.Context, collection, id, field, key, member string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	c := m.collection(collection)
	current, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	next, err := ToggleMember(current, field, key, member)
	if err != nil {
		return err
	}
	c.docs[id] = next
	m.notifyLocked(collection)
	return nil
}

// DropSubscriptions ends every open subscription with err, as a lost
// connection would.
func (m *Memory) DropSubscriptions(err error) {
	m.mu.Lock()
	var dropped []*Subscription
	for _, subs := range m.subs {
		for sub := range subs {
			dropped = append(dropped, sub)
		}
	}
	m.mu.Unlock()
	for _, sub := range dropped {
		sub.Fail(err)
	}
}

// Close fails all subscriptions with ErrClosed and rejects further calls.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.DropSubscriptions(ErrClosed)
	return nil
}

func (m *Memory) snapshotLocked(collection string) []types.Document {
	c := m.collection(collection)
	docs := make([]types.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, types.Document{ID: id, Fields: c.docs[id]})
	}
	return docs
}

func (m *Memory) notifyLocked(collection string) {
	subs := m.subs[collection]
	if len(subs) == 0 {
		return
	}
	docs := m.snapshotLocked(collection)
	for sub, p := range subs {
		sub.Publish(p.Apply(docs))
	}
}
