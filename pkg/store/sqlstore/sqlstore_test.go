package sqlstore

import (
	"path/filepath"
	"testing"

	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "strata.db")
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestStore_Conformance runs the shared store suite against SQLite.
func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTestStore(t) })
}

// TestOpen_Reopen tests that an existing database is opened without error.
func TestOpen_Reopen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "strata.db")

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s.Close()

	s, err = Open(cfg)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.Ping(t.Context()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

// TestDialect_Rebind tests placeholder rewriting.
func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"sqlite unchanged", SQLite, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = ? AND b = ?"},
		{"postgres numbered", Postgres, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = $1 AND b = $2"},
		{"postgres no args", Postgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Rebind(tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}
