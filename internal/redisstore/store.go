// Package redisstore is a docstore.Store backed by Redis. Each collection
// keeps its documents in a hash, its store order in a sorted set, and
// announces changes on a pub/sub channel that every subscriber listens to.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPrefix = "lounge"
	maxTxAttempts = 16

	healthInterval  = 5 * time.Second
	maxPingFailures = 3
)

// Store is the Redis backend.
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	newID  func() string

	mu      sync.Mutex
	watches map[string]*collectionWatch
	closed  bool
	wg      sync.WaitGroup
}

type collectionWatch struct {
	collection string
	pubsub     *redis.PubSub
	subs       map[*docstore.Subscription]*docstore.Projection
	refreshMu  sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrefix namespaces every key and channel.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithIDGenerator overrides the document id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// Open connects to redisURL and verifies the connection.
func Open(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, opts...), nil
}

// New wraps an existing client. The store owns the client and closes it.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:  client,
		prefix:  defaultPrefix,
		logger:  zap.NewNop(),
		newID:   func() string { return ulid.Make().String() },
		watches: make(map[string]*collectionWatch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) BackendName() string { return "redis" }

func (s *Store) docsKey(collection string) string {
	return fmt.Sprintf("%s:%s:docs", s.prefix, collection)
}

func (s *Store) seqKey(collection string) string {
	return fmt.Sprintf("%s:%s:seq", s.prefix, collection)
}

func (s *Store) counterKey(collection string) string {
	return fmt.Sprintf("%s:%s:counter", s.prefix, collection)
}

func (s *Store) changesChannel(collection string) string {
	return fmt.Sprintf("%s:%s:changes", s.prefix, collection)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := docstore.Compile(q)
	if err != nil {
		return nil, err
	}

	var (
		sub *docstore.Subscription
		w   *collectionWatch
	)
	sub = docstore.NewSubscription(q, func() {
		if w != nil {
			s.unwatch(w, sub)
		}
	})
	w, err = s.watch(ctx, sub, p)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	docs, err := s.load(ctx, q.Collection)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	sub.Publish(p.Apply(docs))
	return sub, nil
}

// watch registers sub with the change listener for its collection,
// starting the listener if needed.
func (s *Store) watch(ctx context.Context, sub *docstore.Subscription, p *docstore.Projection) (*collectionWatch, error) {
	collection := p.Query().Collection
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	if w, ok := s.watches[collection]; ok {
		w.subs[sub] = p
		return w, nil
	}

	pubsub := s.client.Subscribe(ctx, s.changesChannel(collection))
	// Wait for the subscription confirmation so no change published after
	// the initial read can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	w := &collectionWatch{
		collection: collection,
		pubsub:     pubsub,
		subs:       map[*docstore.Subscription]*docstore.Projection{sub: p},
	}
	s.watches[collection] = w

	s.wg.Add(1)
	go s.listen(w)
	return w, nil
}

func (s *Store) unwatch(w *collectionWatch, sub *docstore.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(w.subs, sub)
	if len(w.subs) == 0 && s.watches[w.collection] == w {
		delete(s.watches, w.collection)
		_ = w.pubsub.Close()
	}
}

func (s *Store) listen(w *collectionWatch) {
	defer s.wg.Done()
	events := w.pubsub.ChannelWithSubscriptions()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	var failures int
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			switch msg := msg.(type) {
			case *redis.Subscription:
				// A subscribe confirmation here follows a reconnect.
				// Changes published during the gap are gone, so reload.
				if msg.Kind == "subscribe" {
					s.logger.Debug("redisstore: resubscribed", zap.String("collection", w.collection))
					s.refresh(w)
				}
			case *redis.Message:
				s.refresh(w)
			}
		case <-ticker.C:
			failures = s.checkConnection(w, failures)
		}
	}
}

// checkConnection pings the server and fails every subscriber of w once
// maxPingFailures pings in a row have failed. It returns the new count.
func (s *Store) checkConnection(w *collectionWatch, failures int) int {
	ctx, cancel := context.WithTimeout(context.Background(), healthInterval)
	err := s.client.Ping(ctx).Err()
	cancel()
	if err == nil {
		return 0
	}
	failures++
	s.logger.Warn("redisstore: ping failed",
		zap.String("collection", w.collection), zap.Int("failures", failures), zap.Error(err))
	if failures == maxPingFailures {
		s.mu.Lock()
		targets := make([]*docstore.Subscription, 0, len(w.subs))
		for sub := range w.subs {
			targets = append(targets, sub)
		}
		s.mu.Unlock()
		for _, sub := range targets {
			sub.Fail(fmt.Errorf("redisstore: connection lost: %w", err))
		}
	}
	return failures
}

func (s *Store) refresh(w *collectionWatch) {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	docs, err := s.load(context.Background(), w.collection)

	s.mu.Lock()
	targets := make(map[*docstore.Subscription]*docstore.Projection, len(w.subs))
	for sub, p := range w.subs {
		targets[sub] = p
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("redisstore: snapshot read failed",
			zap.String("collection", w.collection), zap.Error(err))
	}
	for sub, p := range targets {
		if err != nil {
			sub.Fail(err)
			continue
		}
		sub.Publish(p.Apply(docs))
	}
}

func (s *Store) load(ctx context.Context, collection string) ([]types.Document, error) {
	ids, err := s.client.ZRange(ctx, s.seqKey(collection), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.docsKey(collection), ids...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]types.Document, 0, len(ids))
	for i, raw := range values {
		body, ok := raw.(string)
		if !ok {
			continue
		}
		fields, err := decodeBody(body)
		if err != nil {
			s.logger.Warn("redisstore: skipping unreadable document",
				zap.String("collection", collection), zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		docs = append(docs, types.Document{ID: ids[i], Fields: fields})
	}
	return docs, nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields types.Fields) (string, error) {
	if s.isClosed() {
		return "", docstore.ErrClosed
	}
	body, err := encodeBody(fields)
	if err != nil {
		return "", err
	}
	seq, err := s.client.Incr(ctx, s.counterKey(collection)).Result()
	if err != nil {
		return "", err
	}
	id := s.newID()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docsKey(collection), id, body)
		pipe.ZAdd(ctx, s.seqKey(collection), redis.Z{Score: float64(seq), Member: id})
		pipe.Publish(ctx, s.changesChannel(collection), id)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields types.Fields) error {
	patch, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	return s.modify(ctx, collection, id, func(current types.Fields) (types.Fields, error) {
		return docstore.Merge(current, patch), nil
	})
}

// ToggleMember implements docstore.SetToggler with an optimistic
// WATCH/MULTI transaction.
func (s *Store) ToggleMember(ctx context.Context, collection, id, field, key, member string) error {
	return s.modify(ctx, collection, id, func(current types.Fields) (types.Fields, error) {
		return docstore.ToggleMember(current, field, key, member)
	})
}

// modify applies fn to the stored document, retrying when another writer
// touches the collection between the read and the write.
func (s *Store) modify(ctx context.Context, collection, id string, fn func(types.Fields) (types.Fields, error)) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}
	docsKey := s.docsKey(collection)
	txf := func(tx *redis.Tx) error {
		body, err := tx.HGet(ctx, docsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			return docstore.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeBody(body)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := encodeBody(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, docsKey, id, encoded)
			pipe.Publish(ctx, s.changesChannel(collection), id)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, docsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redisstore: %s/%s: too much contention", collection, id)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.docsKey(collection), id)
		pipe.ZRem(ctx, s.seqKey(collection), id)
		pipe.Publish(ctx, s.changesChannel(collection), id)
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (types.Document, error) {
	if s.isClosed() {
		return types.Document{}, docstore.ErrClosed
	}
	body, err := s.client.HGet(ctx, s.docsKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return types.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return types.Document{}, err
	}
	fields, err := decodeBody(body)
	if err != nil {
		return types.Document{}, err
	}
	return types.Document{ID: id, Fields: fields}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields types.Fields) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	seq, err := s.client.Incr(ctx, s.counterKey(collection)).Result()
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docsKey(collection), id, body)
		// NX keeps the original position of an existing document.
		pipe.ZAddNX(ctx, s.seqKey(collection), redis.Z{Score: float64(seq), Member: id})
		pipe.Publish(ctx, s.changesChannel(collection), id)
		return nil
	})
	return err
}

func (s *Store) Create(ctx context.Context, collection, id string, fields types.Fields) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	seq, err := s.client.Incr(ctx, s.counterKey(collection)).Result()
	if err != nil {
		return err
	}
	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.HSetNX(ctx, s.docsKey(collection), id, body)
		pipe.ZAddNX(ctx, s.seqKey(collection), redis.Z{Score: float64(seq), Member: id})
		pipe.Publish(ctx, s.changesChannel(collection), id)
		return nil
	})
	if err != nil {
		return err
	}
	if !created.Val() {
		return docstore.ErrExists
	}
	return nil
}

// Close ends every subscription with docstore.ErrClosed and closes the
// client.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watches := s.watches
	s.watches = make(map[string]*collectionWatch)
	var dropped []*docstore.Subscription
	for _, w := range watches {
		_ = w.pubsub.Close()
		for sub := range w.subs {
			dropped = append(dropped, sub)
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	for _, sub := range dropped {
		sub.Fail(docstore.ErrClosed)
	}
	return s.client.Close()
}

func encodeBody(fields types.Fields) (string, error) {
	if fields == nil {
		fields = types.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("fields are not JSON encodable: %w", err)
	}
	return string(data), nil
}

func decodeBody(body string) (types.Fields, error) {
	var fields types.Fields
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = types.Fields{}
	}
	return fields, nil
}
