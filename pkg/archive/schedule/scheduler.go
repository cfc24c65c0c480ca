// Package schedule triggers archive passes on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job runs one archive pass.
type Job func(ctx context.Context) error

// Scheduler runs a Job at the times of a cron expression.
type Scheduler struct {
	job      Job
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	// cancelWatch ends the goroutine stopping the scheduler with the
	// Start context. watchDone is closed once it has returned.
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewScheduler creates a scheduler for job. Common expressions:
//
//   - "0 2 * * *"   - daily at 2 AM
//   - "0 */6 * * *" - every 6 hours
//   - "@hourly"     - every hour
//
// An empty schedule disables the scheduler.
func NewScheduler(schedule string, job Job) *Scheduler {
	return &Scheduler{
		job:      job,
		schedule: schedule,
		logger:   slog.Default().With("component", "archive.schedule"),
	}
}

// Start schedules the job. Passes never overlap: a pass still running when
// the next one is due makes the scheduler skip it. The scheduler stops when
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(ctx)
}

func (s *Scheduler) start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.schedule == "" {
		s.logger.Info("archive schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.runPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule archiving: %w", err)
	}
	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info("archive scheduler started", "schedule", s.schedule)

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancelWatch = cancel
	s.watchDone = done
	go func() {
		defer close(done)
		<-watchCtx.Done()
		if ctx.Err() != nil {
			s.Stop()
		}
	}()
	return nil
}

func (s *Scheduler) runPass(ctx context.Context) {
	s.logger.Info("starting scheduled archive pass")
	start := time.Now()

	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled archive pass failed", "error", err)
		return
	}
	s.logger.Info("scheduled archive pass finished", "duration", time.Since(start))
}

// Reschedule replaces the schedule, restarting the scheduler if it was
// running.
func (s *Scheduler) Reschedule(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == s.schedule {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); schedule != "" && err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	s.stop()
	s.schedule = schedule
	return s.start(ctx)
}

// Stop stops the scheduler and waits for a running pass to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("archive scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Schedule returns the current cron expression.
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// NextRun returns the next scheduled pass, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil || !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
