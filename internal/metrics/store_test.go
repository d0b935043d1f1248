package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentStoreCountsResults(t *testing.T) {
	store := InstrumentStore(docstore.NewMemory())
	defer store.Close()
	ctx := context.Background()

	okBefore := testutil.ToFloat64(StoreOpsTotal.WithLabelValues("memory", "insert", "ok"))
	errBefore := testutil.ToFloat64(StoreOpsTotal.WithLabelValues("memory", "update", "error"))

	if _, err := store.Insert(ctx, "messages", types.Fields{"text": "hi"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Update(ctx, "messages", "missing", types.Fields{}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if got := testutil.ToFloat64(StoreOpsTotal.WithLabelValues("memory", "insert", "ok")); got != okBefore+1 {
		t.Fatalf("insert ok: expected %v, got %v", okBefore+1, got)
	}
	if got := testutil.ToFloat64(StoreOpsTotal.WithLabelValues("memory", "update", "error")); got != errBefore+1 {
		t.Fatalf("update error: expected %v, got %v", errBefore+1, got)
	}
}

type plainStore struct{ docstore.Store }

func TestInstrumentStoreToggleCapability(t *testing.T) {
	wrapped := InstrumentStore(docstore.NewMemory())
	if _, ok := docstore.TogglerOf(wrapped); !ok {
		t.Fatal("memory store should toggle")
	}

	plain := InstrumentStore(plainStore{docstore.NewMemory()})
	if _, ok := docstore.TogglerOf(plain); ok {
		t.Fatal("plain store should not report toggle support")
	}
	err := plain.ToggleMember(context.Background(), "messages", "x", "reactions", "👍", "u1")
	if !errors.Is(err, docstore.ErrToggleUnsupported) {
		t.Fatalf("expected ErrToggleUnsupported, got %v", err)
	}
	if plain.BackendName() != "unknown" {
		t.Fatalf("expected unknown backend, got %s", plain.BackendName())
	}
}
