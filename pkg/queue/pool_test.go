package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// TestPool_RunOnce tests dispatch to handlers and outcome reporting.
func TestPool_RunOnce(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(1)
	p := NewPool(q, PoolConfig{})

	var got []string
	p.Handle("ok", func(ctx context.Context, task *Task) error {
		got = append(got, task.UIDs...)
		return nil
	})
	p.Handle("bad", func(ctx context.Context, task *Task) error {
		return errors.New("bad task")
	})
	p.Handle("panic", func(ctx context.Context, task *Task) error {
		panic("boom")
	})

	q.Submit(ctx, &Task{Name: "ok", UIDs: []string{"a"}, Priority: 3})
	q.Submit(ctx, &Task{Name: "bad", Priority: 2})
	q.Submit(ctx, &Task{Name: "panic", Priority: 1})
	q.Submit(ctx, &Task{Name: "unknown"})

	for i := 0; i < 4; i++ {
		processed, err := p.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error: %v", err)
		}
		if !processed {
			t.Fatalf("RunOnce() #%d processed nothing", i)
		}
	}
	if processed, _ := p.RunOnce(ctx); processed {
		t.Error("RunOnce() on empty queue processed a task")
	}

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("handler saw %v", got)
	}

	status := map[string]string{}
	for _, task := range q.Tasks() {
		status[task.Name] = task.Status
	}
	want := map[string]string{"ok": StatusDone, "bad": StatusFailed, "panic": StatusFailed, "unknown": StatusFailed}
	for name, s := range want {
		if status[name] != s {
			t.Errorf("task %s status = %q, want %q", name, status[name], s)
		}
	}
}

// TestPool_Run tests that workers drain the queue and stop with the context.
func TestPool_Run(t *testing.T) {
	q := NewMemory(1)
	p := NewPool(q, PoolConfig{Workers: 3, PollInterval: 10 * time.Millisecond})

	var count atomic.Int32
	p.Handle("work", func(ctx context.Context, task *Task) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for range 10 {
		q.Submit(ctx, &Task{Name: "work"})
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for count.Load() < 10 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 10 tasks", count.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop")
	}
}

// TestPool_RunQueueClosed tests that workers stop on an unavailable queue.
func TestPool_RunQueueClosed(t *testing.T) {
	q := NewMemory(1)
	q.Close()
	p := NewPool(q, PoolConfig{Workers: 2, PollInterval: 10 * time.Millisecond})

	err := p.Run(context.Background())
	if !errors.Is(err, ErrQueueUnavailable) {
		t.Errorf("Run() error = %v, want ErrQueueUnavailable", err)
	}
}

func TestPool_RunReclaimsOrphanedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := OpenSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "queue.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()
	if err := q.Submit(ctx, &Task{Name: "work"}); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Next(ctx); err != nil {
		t.Fatal(err)
	}

	p := NewPool(q, PoolConfig{PollInterval: 10 * time.Millisecond})
	var count atomic.Int32
	p.Handle("work", func(ctx context.Context, task *Task) error {
		count.Add(1)
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for count.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("orphaned task was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
