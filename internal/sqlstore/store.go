// Package sqlstore is a docstore.Store backed by a SQLite file. Writes made
// through this process notify subscribers directly; writes made by other
// processes are picked up from filesystem events on the database files and a
// polling fallback on PRAGMA data_version.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	defaultPollInterval = time.Second
	defaultDebounce     = 200 * time.Millisecond
)

// Store is the SQLite backend.
type Store struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger

	pollInterval time.Duration
	debounce     time.Duration
	watch        bool
	newID        func() string

	mu     sync.Mutex
	subs   map[string]map[*docstore.Subscription]*docstore.Projection
	closed bool

	// refreshMu orders snapshot reads with their publishes so a subscriber
	// never receives an older snapshot after a newer one.
	refreshMu   sync.Mutex
	dataVersion int64

	watcher    *fsnotify.Watcher
	debounceMu sync.Mutex
	pending    *time.Timer
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for change-detection diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval sets how often the database is checked for writes from
// other processes. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		s.pollInterval = d
	}
}

// WithoutWatcher disables filesystem notifications.
func WithoutWatcher() Option {
	return func(s *Store) {
		s.watch = false
	}
}

// WithIDGenerator overrides the document id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:         path,
		logger:       zap.NewNop(),
		pollInterval: defaultPollInterval,
		debounce:     defaultDebounce,
		watch:        true,
		newID:        func() string { return ulid.Make().String() },
		subs:         make(map[string]map[*docstore.Subscription]*docstore.Projection),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	} else {
		s.watch = false
		s.pollInterval = 0
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps the pragmas below in effect for every
	// statement and makes data_version track only foreign writers.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s.conn = conn

	version, err := s.readDataVersion(context.Background())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.dataVersion = version

	if s.watch {
		if err := s.startWatcher(); err != nil {
			s.logger.Warn("sqlstore: file watcher unavailable, relying on polling", zap.Error(err))
		}
	}
	if s.pollInterval > 0 {
		s.wg.Add(1)
		go s.pollLoop()
	}
	return s, nil
}

func (s *Store) BackendName() string { return "sqlite" }

// Path returns the database path.
func (s *Store) Path() string { return s.path }

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

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	var sub *docstore.Subscription
	sub = docstore.NewSubscription(q, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[q.Collection], sub)
	})
	if s.subs[q.Collection] == nil {
		s.subs[q.Collection] = make(map[*docstore.Subscription]*docstore.Projection)
	}
	s.subs[q.Collection][sub] = p
	s.mu.Unlock()

	docs, err := s.load(ctx, q.Collection)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	sub.Publish(p.Apply(docs))
	return sub, nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields types.Fields) (string, error) {
	body, err := encodeBody(fields)
	if err != nil {
		return "", err
	}
	id := s.newID()
	err = s.immediate(ctx, func(conn *sql.Conn) error {
		seq, err := nextSeq(ctx, conn, collection)
		if err != nil {
			return err
		}
		now := time.Now().UnixMilli()
		_, err = conn.ExecContext(ctx, `
			INSERT INTO lounge_documents (collection, id, seq, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, collection, id, seq, body, now, now)
		return err
	})
	if err != nil {
		return "", err
	}
	s.refresh(collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields types.Fields) error {
	patch, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	err = s.immediate(ctx, func(conn *sql.Conn) error {
		current, err := readFields(ctx, conn, collection, id)
		if err != nil {
			return err
		}
		return writeFields(ctx, conn, collection, id, docstore.Merge(current, patch))
	})
	if err != nil {
		return err
	}
	s.refresh(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	err := s.immediate(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			DELETE FROM lounge_documents WHERE collection = ? AND id = ?
		`, collection, id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return docstore.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.refresh(collection)
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (types.Document, error) {
	if s.isClosed() {
		return types.Document{}, docstore.ErrClosed
	}
	var body string
	err := s.conn.QueryRowContext(ctx, `
		SELECT body FROM lounge_documents WHERE collection = ? AND id = ?
	`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
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
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	err = s.immediate(ctx, func(conn *sql.Conn) error {
		now := time.Now().UnixMilli()
		result, err := conn.ExecContext(ctx, `
			UPDATE lounge_documents SET body = ?, updated_at = ?
			WHERE collection = ? AND id = ?
		`, body, now, collection, id)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err != nil || n > 0 {
			return err
		}
		seq, err := nextSeq(ctx, conn, collection)
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO lounge_documents (collection, id, seq, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, collection, id, seq, body, now, now)
		return err
	})
	if err != nil {
		return err
	}
	s.refresh(collection)
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, fields types.Fields) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	err = s.immediate(ctx, func(conn *sql.Conn) error {
		var exists int
		err := conn.QueryRowContext(ctx, `
			SELECT 1 FROM lounge_documents WHERE collection = ? AND id = ?
		`, collection, id).Scan(&exists)
		if err == nil {
			return docstore.ErrExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		seq, err := nextSeq(ctx, conn, collection)
		if err != nil {
			return err
		}
		now := time.Now().UnixMilli()
		_, err = conn.ExecContext(ctx, `
			INSERT INTO lounge_documents (collection, id, seq, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, collection, id, seq, body, now, now)
		return err
	})
	if err != nil {
		return err
	}
	s.refresh(collection)
	return nil
}

// ToggleMember implements docstore.SetToggler inside an IMMEDIATE
// transaction, which holds the write lock across the read and the write.
func (s *Store) ToggleMember(ctx context.Context, collection, id, field, key, member string) error {
	err := s.immediate(ctx, func(conn *sql.Conn) error {
		current, err := readFields(ctx, conn, collection, id)
		if err != nil {
			return err
		}
		next, err := docstore.ToggleMember(current, field, key, member)
		if err != nil {
			return err
		}
		return writeFields(ctx, conn, collection, id, next)
	})
	if err != nil {
		return err
	}
	s.refresh(collection)
	return nil
}

// Close stops change detection, ends every subscription with
// docstore.ErrClosed and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var dropped []*docstore.Subscription
	for _, subs := range s.subs {
		for sub := range subs {
			dropped = append(dropped, sub)
		}
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.stopDebounce()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.wg.Wait()

	for _, sub := range dropped {
		sub.Fail(docstore.ErrClosed)
	}
	return s.conn.Close()
}

// immediate runs fn inside BEGIN IMMEDIATE ... COMMIT on a dedicated
// connection.
func (s *Store) immediate(ctx context.Context, fn func(*sql.Conn) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return docstore.ErrClosed
	}
	conn, err := s.conn.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()
	if err = fn(conn); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, "COMMIT")
	return err
}

func (s *Store) load(ctx context.Context, collection string) ([]types.Document, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, body FROM lounge_documents WHERE collection = ? ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		fields, err := decodeBody(body)
		if err != nil {
			s.logger.Warn("sqlstore: skipping unreadable document",
				zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		docs = append(docs, types.Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// refresh re-reads collection and publishes to its subscribers. A read
// failure ends those subscriptions.
func (s *Store) refresh(collection string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	if s.closed || len(s.subs[collection]) == 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	docs, err := s.load(context.Background(), collection)

	s.mu.Lock()
	targets := make(map[*docstore.Subscription]*docstore.Projection, len(s.subs[collection]))
	for sub, p := range s.subs[collection] {
		targets[sub] = p
	}
	s.mu.Unlock()

	for sub, p := range targets {
		if err != nil {
			sub.Fail(err)
			continue
		}
		sub.Publish(p.Apply(docs))
	}
}

func (s *Store) refreshAll() {
	s.mu.Lock()
	collections := make([]string, 0, len(s.subs))
	for name, subs := range s.subs {
		if len(subs) > 0 {
			collections = append(collections, name)
		}
	}
	s.mu.Unlock()
	for _, name := range collections {
		s.refresh(name)
	}
}

func nextSeq(ctx context.Context, conn *sql.Conn, collection string) (int64, error) {
	var seq int64
	err := conn.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM lounge_documents WHERE collection = ?
	`, collection).Scan(&seq)
	return seq, err
}

func readFields(ctx context.Context, conn *sql.Conn, collection, id string) (types.Fields, error) {
	var body string
	err := conn.QueryRowContext(ctx, `
		SELECT body FROM lounge_documents WHERE collection = ? AND id = ?
	`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeBody(body)
}

func writeFields(ctx context.Context, conn *sql.Conn, collection, id string, fields types.Fields) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		UPDATE lounge_documents SET body = ?, updated_at = ?
		WHERE collection = ? AND id = ?
	`, body, time.Now().UnixMilli(), collection, id)
	return err
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
