package main

import (
	"context"
	"sync"
	"testing"

	"mercator-hq/strata/pkg/config"
)

func testConfig(t *testing.T, retention int) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Archive.RetentionPeriod = &retention
	cfg.Archive.ArchiveBasePath = t.TempDir()
	cfg.Store.Backend = "memory"
	cfg.Queue.Enabled = false
	return cfg
}

func TestApp_Reconfigure(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(t, 2), false)
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	defer a.Close()

	next := testConfig(t, 5)
	if err := a.reconfigure(ctx, next); err != nil {
		t.Fatalf("reconfigure() failed: %v", err)
	}
	if a.config() != next {
		t.Error("config() does not return the reloaded configuration")
	}
	if p := a.engine.Settings().Policy.RetentionPeriod; p == nil || *p != 5 {
		t.Errorf("engine retention period = %v, want 5", p)
	}
}

// TestApp_ReconfigureConcurrent reads the configuration while reloads are
// applied from other goroutines. Run with -race.
func TestApp_ReconfigureConcurrent(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(t, 2), false)
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	defer a.Close()

	cfgs := []*config.Config{testConfig(t, 1), testConfig(t, 3), testConfig(t, 4)}

	var wg sync.WaitGroup
	for _, cfg := range cfgs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.reconfigure(ctx, cfg); err != nil {
				t.Errorf("reconfigure() failed: %v", err)
			}
		}()
	}
	for range 100 {
		if a.config().Store.Backend != "memory" {
			t.Fatal("config() returned a foreign configuration")
		}
	}
	wg.Wait()

	got := a.config()
	found := false
	for _, cfg := range cfgs {
		found = found || got == cfg
	}
	if !found {
		t.Error("config() is not one of the applied configurations")
	}
}
