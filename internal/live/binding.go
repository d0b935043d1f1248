// Package live mirrors a store collection into a typed, always-current
// list. The mirror changes only when the store pushes a snapshot; mutation
// calls are forwarded to the store and never touch it directly.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/metrics"
	"github.com/monsters-club/lounge/internal/types"
	"go.uber.org/zap"
)

// ErrClosed is returned by calls on a closed binding.
var ErrClosed = errors.New("binding closed")

// Status is the binding's subscription state.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Binding is a live mirror of one query.
type Binding[T any] struct {
	store  docstore.Store
	query  docstore.Query
	codec  types.Codec[T]
	logger *zap.Logger

	mu      sync.RWMutex
	items   []T
	status  Status
	err     error
	closed  bool
	sub     *docstore.Subscription
	gen     int
	changes chan struct{}
	settled chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Binding.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the binding logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open subscribes to q and starts mirroring it. It fails only for an
// invalid query; a store that cannot be reached leaves the binding in
// StatusErrored.
func Open[T any](ctx context.Context, store docstore.Store, q docstore.Query, codec types.Codec[T], opts ...Option) (*Binding[T], error) {
	if _, err := docstore.Compile(q); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Binding[T]{
		store:   store,
		query:   q,
		codec:   codec,
		logger:  o.logger.With(zap.String("collection", q.Collection)),
		status:  StatusLoading,
		changes: make(chan struct{}, 1),
		settled: make(chan struct{}),
	}
	metrics.BindingsOpen.WithLabelValues(q.Collection).Inc()
	b.subscribe(ctx)
	return b, nil
}

// subscribe opens a new subscription generation. Snapshots from older
// generations are ignored.
func (b *Binding[T]) subscribe(ctx context.Context) {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	sub, err := b.store.Subscribe(ctx, b.query)
	if err != nil {
		var subErr *docstore.SubscriptionError
		if !errors.As(err, &subErr) {
			subErr = &docstore.SubscriptionError{Query: b.query, Err: err}
		}
		b.fail(gen, subErr)
		return
	}

	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		_ = sub.Close()
		return
	}
	b.sub = sub
	b.wg.Add(1)
	b.mu.Unlock()

	b.logger.Debug("subscription opened")
	go b.pump(sub, gen)
}

func (b *Binding[T]) pump(sub *docstore.Subscription, gen int) {
	defer b.wg.Done()
	for ev := range sub.Events() {
		if ev.Err != nil {
			b.fail(gen, ev.Err)
			return
		}
		b.apply(gen, ev.Docs)
	}
}

func (b *Binding[T]) apply(gen int, docs []types.Document) {
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := b.codec.Decode(doc)
		if err != nil {
			b.logger.Warn("skipping undecodable document", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.gen {
		return
	}
	b.items = items
	b.status = StatusReady
	b.err = nil
	metrics.SnapshotsApplied.WithLabelValues(b.query.Collection).Inc()
	b.broadcastLocked()
}

func (b *Binding[T]) fail(gen int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.gen {
		return
	}
	b.status = StatusErrored
	b.err = err
	b.logger.Warn("subscription failed", zap.Error(err))
	b.broadcastLocked()
}

func (b *Binding[T]) broadcastLocked() {
	select {
	case b.changes <- struct{}{}:
	default:
	}
	close(b.settled)
	b.settled = make(chan struct{})
}

// Collection returns the mirrored collection name.
func (b *Binding[T]) Collection() string {
	return b.query.Collection
}

// Status returns the current subscription state.
func (b *Binding[T]) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Err returns the subscription error while the binding is errored.
func (b *Binding[T]) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// List returns a copy of the mirror in query order.
func (b *Binding[T]) List() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Find returns the mirrored item with id.
func (b *Binding[T]) Find(id string) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, item := range b.items {
		if b.codec.ID(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Changes signals after every applied snapshot or status change. Signals
// coalesce; readers should re-read List and Status. The channel is closed
// by Close.
func (b *Binding[T]) Changes() <-chan struct{} {
	return b.changes
}

// Wait blocks until pred holds for the mirror. It returns the subscription
// error if the binding becomes errored first.
func (b *Binding[T]) Wait(ctx context.Context, pred func([]T) bool) error {
	for {
		b.mu.RLock()
		closed, status, err, settled := b.closed, b.status, b.err, b.settled
		items := make([]T, len(b.items))
		copy(items, b.items)
		b.mu.RUnlock()

		if closed {
			return ErrClosed
		}
		if status == StatusReady && pred(items) {
			return nil
		}
		if status == StatusErrored {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settled:
		}
	}
}

// Ready waits for the first snapshot.
func (b *Binding[T]) Ready(ctx context.Context) error {
	return b.Wait(ctx, func([]T) bool { return true })
}

// Retry re-subscribes an errored binding. It does nothing in any other
// state.
func (b *Binding[T]) Retry(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.status != StatusErrored {
		b.mu.Unlock()
		return nil
	}
	old := b.sub
	b.sub = nil
	b.status = StatusLoading
	b.err = nil
	b.broadcastLocked()
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	b.logger.Debug("retrying subscription")
	b.subscribe(ctx)
	return nil
}

// Insert submits value as a new document and returns its id. The item
// appears in List only after the store confirms it with a snapshot.
func (b *Binding[T]) Insert(ctx context.Context, value T) (string, error) {
	if b.isClosed() {
		return "", ErrClosed
	}
	fields, err := b.codec.Encode(value)
	if err != nil {
		return "", err
	}
	return b.InsertFields(ctx, fields)
}

// InsertFields submits raw fields as a new document.
func (b *Binding[T]) InsertFields(ctx context.Context, fields types.Fields) (string, error) {
	if b.isClosed() {
		return "", ErrClosed
	}
	id, err := b.store.Insert(ctx, b.query.Collection, fields)
	if err != nil {
		return "", &docstore.MutationError{Op: docstore.OpInsert, Collection: b.query.Collection, Err: err}
	}
	return id, nil
}

// Update merges fields into the document with id.
func (b *Binding[T]) Update(ctx context.Context, id string, fields types.Fields) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.store.Update(ctx, b.query.Collection, id, fields); err != nil {
		return &docstore.MutationError{Op: docstore.OpUpdate, Collection: b.query.Collection, ID: id, Err: err}
	}
	return nil
}

// Remove deletes the document with id.
func (b *Binding[T]) Remove(ctx context.Context, id string) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.store.Delete(ctx, b.query.Collection, id); err != nil {
		return &docstore.MutationError{Op: docstore.OpDelete, Collection: b.query.Collection, ID: id, Err: err}
	}
	return nil
}

// CanToggle reports whether the store supports atomic set toggles.
func (b *Binding[T]) CanToggle() bool {
	_, ok := docstore.TogglerOf(b.store)
	return ok
}

// Toggle flips member in the set at field.key of the document with id,
// atomically in the store.
func (b *Binding[T]) Toggle(ctx context.Context, id, field, key, member string) error {
	if b.isClosed() {
		return ErrClosed
	}
	toggler, ok := docstore.TogglerOf(b.store)
	if !ok {
		return &docstore.MutationError{Op: docstore.OpToggle, Collection: b.query.Collection, ID: id, Err: docstore.ErrToggleUnsupported}
	}
	if err := toggler.ToggleMember(ctx, b.query.Collection, id, field, key, member); err != nil {
		return &docstore.MutationError{Op: docstore.OpToggle, Collection: b.query.Collection, ID: id, Err: err}
	}
	return nil
}

func (b *Binding[T]) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close releases the subscription. Snapshots arriving afterwards are
// dropped. It is safe to call more than once.
func (b *Binding[T]) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		sub := b.sub
		b.sub = nil
		select {
		case <-b.changes:
		default:
		}
		close(b.changes)
		close(b.settled)
		b.mu.Unlock()

		if sub != nil {
			_ = sub.Close()
		}
		b.wg.Wait()
		metrics.BindingsOpen.WithLabelValues(b.query.Collection).Dec()
		b.logger.Debug("binding closed")
	})
	return nil
}
