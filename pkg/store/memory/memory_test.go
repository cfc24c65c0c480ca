package memory

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/store/storetest"
)

// TestStore_Conformance runs the shared store suite against the memory store.
func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

// TestStore_CancelledContext tests that a cancelled context aborts a transaction.
func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunInTransaction() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("transaction function should not run")
	}
}

// TestStore_UIDs tests the record listing helpers.
func TestStore_UIDs(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	storetest.Seed(t, s, &record.Record{
		UID: "b", ID: "b", Kind: record.KindFolder, Path: "/b", Created: storetest.Day(2020, 1, 1),
	}, &record.Record{
		UID: "a", ID: "a", Kind: record.KindFolder, Path: "/a", Created: storetest.Day(2020, 1, 1),
	})
	got := s.UIDs()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("UIDs() = %v, want [a b]", got)
	}
}
