package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/strata/pkg/telemetry/logging"
)

// DefaultPollInterval is how long an idle worker waits before asking the
// queue again.
const DefaultPollInterval = time.Second

// PoolConfig configures a worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent workers.
	// Default: 1
	Workers int

	// PollInterval is the idle wait between polls.
	// Default: 1 second
	PollInterval time.Duration
}

// Pool runs the handlers registered for task names against a Queue.
type Pool struct {
	queue    Queue
	workers  int
	poll     time.Duration
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewPool creates a worker pool consuming q.
func NewPool(q Queue, cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Pool{
		queue:    q,
		workers:  cfg.Workers,
		poll:     cfg.PollInterval,
		logger:   slog.Default().With("component", "queue.pool"),
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for tasks named name.
func (p *Pool) Handle(name string, h Handler) {
	p.mu.Lock()
	p.handlers[name] = h
	p.mu.Unlock()
}

// Reclaimer is implemented by durable queues that can hand tasks orphaned by
// a crashed worker back to the pending state.
type Reclaimer interface {
	Reclaim(ctx context.Context) (int, error)
}

// Run starts the workers and blocks until ctx is cancelled or a worker hits
// an unrecoverable queue error. Tasks a previous pool left running are
// reclaimed first.
func (p *Pool) Run(ctx context.Context) error {
	if r, ok := p.queue.(Reclaimer); ok {
		n, err := r.Reclaim(ctx)
		if err != nil {
			p.logger.Error("reclaiming orphaned tasks failed", "error", err)
		} else if n > 0 {
			p.logger.Warn("reclaimed orphaned tasks", "count", n)
		}
	}
	p.logger.Info("worker pool started", "workers", p.workers, "poll_interval", p.poll)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.work(ctx, worker)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	p.logger.Info("worker pool stopped")
	return err
}

func (p *Pool) work(ctx context.Context, worker int) error {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		processed, err := p.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueUnavailable) {
				return err
			}
			p.logger.Error("worker poll failed", "worker", worker, "error", err)
		}
		if processed {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims and processes a single task. It reports false when the
// queue had nothing pending.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	task, err := p.queue.Next(ctx)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	h := p.handlers[task.Name]
	p.mu.RUnlock()

	if h == nil {
		err := fmt.Errorf("no handler for task %q", task.Name)
		p.logger.Warn("unhandled task", "task_id", task.ID, "name", task.Name)
		return true, p.queue.Fail(ctx, task.ID, err)
	}

	ctx = logging.WithTaskID(ctx, task.ID)
	start := time.Now()
	if err := p.safeHandle(ctx, h, task); err != nil {
		p.logger.Error("task failed",
			"task_id", task.ID,
			"name", task.Name,
			"attempt", task.Attempts,
			"error", err,
		)
		return true, p.queue.Fail(context.WithoutCancel(ctx), task.ID, err)
	}

	p.logger.Debug("task done",
		"task_id", task.ID,
		"name", task.Name,
		"duration", time.Since(start),
	)
	return true, p.queue.Done(context.WithoutCancel(ctx), task.ID)
}

func (p *Pool) safeHandle(ctx context.Context, h Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return h(ctx, task)
}
