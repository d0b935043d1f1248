// Package storetest provides a conformance suite and fault injection for
// docstore.Store implementations.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
)

// Timeout bounds every wait in the suite.
const Timeout = 3 * time.Second

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) docstore.Store

// WaitFor reads events from sub until one satisfies pred, and returns it.
func WaitFor(t *testing.T, sub *docstore.Subscription, pred func([]types.Document) bool) []types.Document {
	t.Helper()
	deadline := time.After(Timeout)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatalf("subscription closed while waiting")
			}
			if ev.Err != nil {
				t.Fatalf("subscription error: %v", ev.Err)
			}
			if pred(ev.Docs) {
				return ev.Docs
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

// IDs returns the document ids in order.
func IDs(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.ID
	}
	return out
}

// Run exercises the Store contract against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAppearsInSnapshot", func(t *testing.T) { testInsert(t, newStore) })
	t.Run("UpdateMerges", func(t *testing.T) { testUpdate(t, newStore) })
	t.Run("DeleteRemoves", func(t *testing.T) { testDelete(t, newStore) })
	t.Run("MissingDocument", func(t *testing.T) { testMissing(t, newStore) })
	t.Run("OrderKeepsStoreOrderOnTies", func(t *testing.T) { testOrder(t, newStore) })
	t.Run("FilterProjection", func(t *testing.T) { testFilter(t, newStore) })
	t.Run("SetAndGet", func(t *testing.T) { testSetGet(t, newStore) })
	t.Run("CreateOnlyOnce", func(t *testing.T) { testCreate(t, newStore) })
	t.Run("ToggleMember", func(t *testing.T) { testToggle(t, newStore) })
	t.Run("CloseEndsStream", func(t *testing.T) { testClose(t, newStore) })
}

func open(t *testing.T, newStore Factory) (docstore.Store, context.Context) {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { _ = store.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	t.Cleanup(cancel)
	return store, ctx
}

func subscribe(t *testing.T, store docstore.Store, ctx context.Context, q docstore.Query) *docstore.Subscription {
	t.Helper()
	sub, err := store.Subscribe(ctx, q)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func testInsert(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	sub := subscribe(t, store, ctx, docstore.Collection("notes"))
	WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 0 })

	id, err := store.Insert(ctx, "notes", types.Fields{"text": "hello"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected store-assigned id")
	}
	docs := WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 1 })
	if docs[0].ID != id || docs[0].Fields["text"] != "hello" {
		t.Fatalf("unexpected snapshot: %+v", docs)
	}
}

func testUpdate(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	id, err := store.Insert(ctx, "notes", types.Fields{"text": "a", "pinned": false})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	sub := subscribe(t, store, ctx, docstore.Collection("notes"))

	if err := store.Update(ctx, "notes", id, types.Fields{"text": "b"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs := WaitFor(t, sub, func(docs []types.Document) bool {
		return len(docs) == 1 && docs[0].Fields["text"] == "b"
	})
	if docs[0].Fields["pinned"] != false {
		t.Fatalf("partial update dropped untouched field: %+v", docs[0].Fields)
	}
}

func testDelete(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	keep, _ := store.Insert(ctx, "notes", types.Fields{"text": "keep"})
	drop, _ := store.Insert(ctx, "notes", types.Fields{"text": "drop"})
	sub := subscribe(t, store, ctx, docstore.Collection("notes"))
	WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 2 })

	if err := store.Delete(ctx, "notes", drop); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs := WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 1 })
	if docs[0].ID != keep {
		t.Fatalf("wrong document removed: %v", IDs(docs))
	}
}

func testMissing(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	if err := store.Update(ctx, "notes", "nope", types.Fields{"a": 1}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "notes", "nope"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("delete missing: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "notes", "nope"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}
}

func testOrder(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) string { return base.Add(d).Format(time.RFC3339Nano) }

	late, _ := store.Insert(ctx, "msgs", types.Fields{"createdAt": at(2 * time.Second)})
	tieA, _ := store.Insert(ctx, "msgs", types.Fields{"createdAt": at(time.Second)})
	early, _ := store.Insert(ctx, "msgs", types.Fields{"createdAt": at(500 * time.Millisecond)})
	tieB, _ := store.Insert(ctx, "msgs", types.Fields{"createdAt": at(time.Second)})

	sub := subscribe(t, store, ctx, docstore.Collection("msgs").OrderBy("createdAt", false))
	docs := WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 4 })

	want := []string{early, tieA, tieB, late}
	got := IDs(docs)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: want %v, got %v", want, got)
		}
	}
}

func testFilter(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	_, _ = store.Insert(ctx, "events", types.Fields{"title": "Hackathon", "status": "upcoming"})
	_, _ = store.Insert(ctx, "events", types.Fields{"title": "Meetup", "status": "past"})

	sub := subscribe(t, store, ctx, docstore.Collection("events").Where("status", docstore.FilterEq, "upcoming"))
	docs := WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 1 })
	if docs[0].Fields["title"] != "Hackathon" {
		t.Fatalf("unexpected filtered snapshot: %+v", docs)
	}

	_, _ = store.Insert(ctx, "events", types.Fields{"title": "Workshop", "status": "upcoming"})
	WaitFor(t, sub, func(docs []types.Document) bool { return len(docs) == 2 })
}

func testSetGet(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	if err := store.Set(ctx, "users", "u1", types.Fields{"name": "Ada", "role": "user"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "users", "u1", types.Fields{"name": "Ada L"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	doc, err := store.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "u1" || doc.Fields["name"] != "Ada L" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if _, ok := doc.Fields["role"]; ok {
		t.Fatalf("set should replace, not merge: %+v", doc.Fields)
	}
}

func testCreate(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Create(ctx, "accounts", "ada@example.com", types.Fields{"writer": float64(i)})
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, docstore.ErrExists):
		default:
			t.Fatalf("create: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one create to win, got %d", created)
	}
	if _, err := store.Get(ctx, "accounts", "ada@example.com"); err != nil {
		t.Fatalf("get: %v", err)
	}
}

func testToggle(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	toggler, ok := docstore.TogglerOf(store)
	if !ok {
		t.Skip("store does not implement SetToggler")
	}
	id, _ := store.Insert(ctx, "msgs", types.Fields{"text": "hi", "reactions": map[string]any{}})

	if err := toggler.ToggleMember(ctx, "msgs", id, "reactions", "👍", "u1"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if err := toggler.ToggleMember(ctx, "msgs", id, "reactions", "👍", "u2"); err != nil {
		t.Fatalf("toggle on u2: %v", err)
	}
	if err := toggler.ToggleMember(ctx, "msgs", id, "reactions", "👍", "u1"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	doc, err := store.Get(ctx, "msgs", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	reactions, _ := doc.Fields["reactions"].(map[string]any)
	users, _ := reactions["👍"].([]any)
	if len(users) != 1 || users[0] != "u2" {
		t.Fatalf("unexpected reactions: %+v", doc.Fields["reactions"])
	}
}

func testClose(t *testing.T, newStore Factory) {
	store, ctx := open(t, newStore)
	sub := subscribe(t, store, ctx, docstore.Collection("notes"))
	WaitFor(t, sub, func([]types.Document) bool { return true })
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	deadline := time.After(Timeout)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed")
		}
	}
}
