package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func noop(ctx context.Context) error { return nil }

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", "0 2 * * *", true, false},
		{"valid descriptor", "@hourly", true, false},
		{"empty schedule - no error, not running", "", false, false},
		{"invalid schedule", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(tt.schedule, noop)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			defer s.Stop()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			next := s.NextRun()
			if tt.wantRunning {
				if next == nil {
					t.Fatal("NextRun() returned nil for running scheduler")
				}
				if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v is not in the future", next)
				}
			} else if next != nil {
				t.Errorf("NextRun() = %v for stopped scheduler", next)
			}
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler("@daily", noop)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestScheduler_RunsJob(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler("@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", runs.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler still running after Stop()")
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	s := NewScheduler("@daily", noop)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for s.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("scheduler did not stop on context cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_Reschedule(t *testing.T) {
	s := NewScheduler("@daily", noop)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.Reschedule(ctx, "not a schedule"); err == nil {
		t.Error("Reschedule() accepted an invalid expression")
	}
	if s.Schedule() != "@daily" || !s.IsRunning() {
		t.Error("failed Reschedule() changed the scheduler")
	}

	if err := s.Reschedule(ctx, "30 4 * * *"); err != nil {
		t.Fatalf("Reschedule() failed: %v", err)
	}
	if s.Schedule() != "30 4 * * *" || !s.IsRunning() {
		t.Errorf("schedule = %q, running = %v", s.Schedule(), s.IsRunning())
	}
	if next := s.NextRun(); next == nil || next.Minute() != 30 {
		t.Errorf("NextRun() = %v, want minute 30", next)
	}

	if err := s.Reschedule(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if s.IsRunning() {
		t.Error("empty schedule should stop the scheduler")
	}
}

func TestScheduler_RescheduleReleasesWatcher(t *testing.T) {
	s := NewScheduler("@daily", noop)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	for _, schedule := range []string{"0 1 * * *", "0 2 * * *", "0 3 * * *"} {
		s.mu.Lock()
		done := s.watchDone
		s.mu.Unlock()

		if err := s.Reschedule(ctx, schedule); err != nil {
			t.Fatalf("Reschedule(%q) failed: %v", schedule, err)
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("watcher of the previous schedule still running after Reschedule(%q)", schedule)
		}
		if !s.IsRunning() {
			t.Fatalf("scheduler stopped after Reschedule(%q)", schedule)
		}
	}
}
