package storetest

import (
	"context"
	"sync"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
)

// Faulty wraps a Store and fails selected operations on demand.
type Faulty struct {
	docstore.Store

	mu    sync.Mutex
	fails map[string]error
	calls map[string]int
}

// NewFaulty wraps store.
func NewFaulty(store docstore.Store) *Faulty {
	return &Faulty{Store: store, fails: map[string]error{}, calls: map[string]int{}}
}

// Fail makes op ("subscribe", "insert", "update", "delete", "get", "set",
// "toggle") return err until Heal is called.
func (f *Faulty) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[op] = err
}

// Heal clears every injected failure.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails = map[string]error{}
}

// Calls returns how many times op reached the wrapper.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fails[op]
}

func (f *Faulty) BackendName() string { return "faulty" }

func (f *Faulty) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	if err := f.check("subscribe"); err != nil {
		return nil, err
	}
	return f.Store.Subscribe(ctx, q)
}

func (f *Faulty) Insert(ctx context.Context, collection string, fields types.Fields) (string, error) {
	if err := f.check("insert"); err != nil {
		return "", err
	}
	return f.Store.Insert(ctx, collection, fields)
}

func (f *Faulty) Update(ctx context.Context, collection, id string, fields types.Fields) error {
	if err := f.check("update"); err != nil {
		return err
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *Faulty) Delete(ctx context.Context, collection, id string) error {
	if err := f.check("delete"); err != nil {
		return err
	}
	return f.Store.Delete(ctx, collection, id)
}

func (f *Faulty) Get(ctx context.Context, collection, id string) (types.Document, error) {
	if err := f.check("get"); err != nil {
		return types.Document{}, err
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *Faulty) Set(ctx context.Context, collection, id string, fields types.Fields) error {
	if err := f.check("set"); err != nil {
		return err
	}
	return f.Store.Set(ctx, collection, id, fields)
}

func (f *Faulty) Create(ctx context.Context, collection, id string, fields types.Fields) error {
	if err := f.check("create"); err != nil {
		return err
	}
	return f.Store.Create(ctx, collection, id, fields)
}

// ToggleMember forwards to the wrapped store when it supports toggling.
func (f *Faulty) ToggleMember(ctx context.Context, collection, id, field, key, member string) error {
	if err := f.check("toggle"); err != nil {
		return err
	}
	toggler, ok := f.Store.(docstore.SetToggler)
	if !ok {
		return docstore.ErrToggleUnsupported
	}
	return toggler.ToggleMember(ctx, collection, id, field, key, member)
}

// SupportsToggle reports whether the wrapped store can toggle atomically.
func (f *Faulty) SupportsToggle() bool {
	_, ok := f.Store.(docstore.SetToggler)
	return ok
}
