package docstore

import (
	"sync"

	"github.com/monsters-club/lounge/internal/types"
)

// Event is one delivery on a subscription: a full snapshot of the
// projection, or the terminal error that ended the subscription.
type Event struct {
	Docs []types.Document
	Err  error
}

// Subscription is a snapshot stream for one query. Only the latest
// undelivered snapshot is kept, so a slow reader skips intermediate states
// but never sees an older snapshot after a newer one.
type Subscription struct {
	query Query

	mu       sync.Mutex
	pending  *Event
	failed   bool
	signal   chan struct{}
	done     chan struct{}
	events   chan Event
	once     sync.Once
	release  func()
	finished chan struct{}
}

// NewSubscription starts the delivery loop for q. release is called once
// when the subscription is closed; backends use it to unregister.
func NewSubscription(q Query, release func()) *Subscription {
	s := &Subscription{
		query:    q,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		events:   make(chan Event),
		release:  release,
		finished: make(chan struct{}),
	}
	go s.run()
	return s
}

// Query returns the subscription's projection.
func (s *Subscription) Query() Query {
	return s.query
}

// Events returns the delivery channel. It is closed after Close or after
// the terminal error event.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Publish queues docs as the latest snapshot.
func (s *Subscription) Publish(docs []types.Document) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	copied := make([]types.Document, len(docs))
	copy(copied, docs)
	s.pending = &Event{Docs: copied}
	s.mu.Unlock()
	s.wake()
}

// Fail ends the subscription with err. Later publishes are dropped.
func (s *Subscription) Fail(err error) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.pending = &Event{Err: &SubscriptionError{Query: s.query, Err: err}}
	s.mu.Unlock()
	s.wake()
}

// Close stops delivery and unregisters the subscription. It is safe to call
// more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		<-s.finished
		if s.release != nil {
			s.release()
		}
	})
	return nil
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.finished)
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		ev := s.pending
		s.pending = nil
		s.mu.Unlock()
		if ev == nil {
			continue
		}

		select {
		case s.events <- *ev:
		case <-s.done:
			return
		}
		if ev.Err != nil {
			return
		}
	}
}
