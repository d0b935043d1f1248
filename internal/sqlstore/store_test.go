package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/docstore/storetest"
	"github.com/monsters-club/lounge/internal/types"
)

func openTestStore(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	store, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return openTestStore(t, filepath.Join(t.TempDir(), "lounge.db"))
	})
}

func TestSQLiteInMemoryConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return openTestStore(t, ":memory:")
	})
}

func TestSQLiteSeesWritesFromOtherConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lounge.db")
	reader := openTestStore(t, path, WithPollInterval(50*time.Millisecond))
	writer := openTestStore(t, path, WithoutWatcher(), WithPollInterval(0))

	sub, err := reader.Subscribe(context.Background(), docstore.Collection("messages").OrderBy("createdAt", false))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	storetest.WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 0 })

	id, err := writer.Insert(context.Background(), "messages", types.Fields{
		"text":      "hello from elsewhere",
		"createdAt": "2025-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	docs := storetest.WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 1 })
	if docs[0].ID != id {
		t.Fatalf("expected %s, got %s", id, docs[0].ID)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lounge.db")
	first, err := Open(path, WithoutWatcher(), WithPollInterval(0))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, err := first.Insert(context.Background(), "team", types.Fields{"name": "Ada"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := openTestStore(t, path, WithoutWatcher(), WithPollInterval(0))
	doc, err := second.Get(context.Background(), "team", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Fields["name"] != "Ada" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
}

func TestSQLiteIsDatabaseFile(t *testing.T) {
	s := &Store{path: "/tmp/x/lounge.db"}
	if !s.isDatabaseFile("/tmp/x/lounge.db-wal") || !s.isDatabaseFile("/tmp/x/lounge.db") {
		t.Fatal("expected db and wal to match")
	}
	if s.isDatabaseFile("/tmp/x/lounge.db-shm") || s.isDatabaseFile("/tmp/x/notes.txt") {
		t.Fatal("unexpected match")
	}
}
