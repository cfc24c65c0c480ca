package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/queue"
	"mercator-hq/strata/pkg/record"
)

// TaskName is the queue task name of archive tasks.
const TaskName = "archive"

// DefaultTarget is the container archive tasks are bound to.
const DefaultTarget = "archive"

// Strategies for processing a task.
const (
	// StrategyRecord archives the head of the list and re-submits the rest.
	StrategyRecord = "record"

	// StrategyChunk archives ChunkSize records and re-submits the rest.
	StrategyChunk = "chunk"
)

// ChunkedConfig configures a Chunked scheduler.
type ChunkedConfig struct {
	// PrefetchLimit caps the number of UIDs a fresh task carries.
	PrefetchLimit int

	Priority  int
	ChunkSize int
	Strategy  string
	Target    string
}

// ChunkedConfigFrom reads the scheduler settings from an archive
// configuration.
func ChunkedConfigFrom(cfg *config.ArchiveConfig) ChunkedConfig {
	return ChunkedConfig{
		PrefetchLimit: cfg.PrefetchLimit,
		Priority:      cfg.Priority,
		ChunkSize:     cfg.ChunkSize,
		Strategy:      cfg.Strategy,
		Target:        DefaultTarget,
	}
}

// Chunked spreads archiving over queue tasks. Each task processes one
// record (or one chunk) and re-submits the remainder, so a dying worker
// loses at most the record it was working on. When a chain of tasks runs
// out of UIDs it enumerates the candidates again.
type Chunked struct {
	engine *Engine
	queue  queue.Queue
	cfg    ChunkedConfig
	logger *slog.Logger
}

// NewChunked creates a scheduler. q may be nil, in which case Run archives
// synchronously.
func NewChunked(engine *Engine, q queue.Queue, cfg ChunkedConfig) *Chunked {
	if cfg.PrefetchLimit < 1 {
		cfg.PrefetchLimit = config.DefaultPrefetchLimit
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyRecord
	}
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}
	return &Chunked{
		engine: engine,
		queue:  q,
		cfg:    cfg,
		logger: slog.Default().With("component", "archive.chunked"),
	}
}

// RunResult reports what Run did.
type RunResult struct {
	// Queued is true when the work was submitted to the queue.
	Queued bool `json:"queued"`

	// Submitted is the number of UIDs carried by the submitted task.
	Submitted int `json:"submitted"`

	// Sync holds the outcome of a synchronous sweep.
	Sync *Result `json:"sync,omitempty"`
}

// Run starts an archive pass: when the queue is ready the candidates are
// submitted as a task, otherwise every candidate is archived now.
func (c *Chunked) Run(ctx context.Context) (RunResult, error) {
	if !c.engine.Settings().Status.Active {
		return RunResult{}, ErrArchiveDisabled
	}

	if c.queue == nil || !c.queue.Ready(ctx) {
		c.logger.Info("task queue not available, archiving synchronously")
		res, err := c.engine.ArchiveAll(ctx)
		return RunResult{Sync: &res}, err
	}

	n, err := c.submitFresh(ctx, nil)
	if errors.Is(err, queue.ErrDuplicate) {
		c.logger.Info("archive task already queued")
		return RunResult{Queued: true}, nil
	}
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Queued: true, Submitted: n}, nil
}

// Register installs Process as the handler of archive tasks.
func (c *Chunked) Register(p *queue.Pool) {
	p.Handle(TaskName, c.Process)
}

// Process handles one archive task.
func (c *Chunked) Process(ctx context.Context, task *queue.Task) error {
	deferred := slices.Clone(task.Deferred)

	if len(task.UIDs) == 0 {
		_, err := c.submitFresh(ctx, deferred)
		if errors.Is(err, queue.ErrDuplicate) {
			return nil
		}
		return err
	}

	n := 1
	chunkSize := max(task.ChunkSize-1, 1)
	if c.cfg.Strategy == StrategyChunk {
		n = max(task.ChunkSize, 1)
		chunkSize = max(task.ChunkSize, 1)
	}
	n = min(n, len(task.UIDs))
	head, rest := task.UIDs[:n], task.UIDs[n:]

	for _, uid := range head {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.engine.Archive(ctx, uid); err != nil {
			if ctx.Err() != nil {
				// interrupted, not failed: the task is retried as it is
				return ctx.Err()
			}
			if errors.Is(err, ErrArchiveDisabled) {
				c.logger.Warn("archiving disabled, dropping archive task", "task_id", task.ID)
				return nil
			}
			// picked up again by the next scheduled pass
			deferred = append(deferred, uid)
		}
	}

	if len(rest) == 0 {
		_, err := c.submitFresh(ctx, deferred)
		if errors.Is(err, queue.ErrDuplicate) {
			return nil
		}
		return err
	}

	next := c.newTask(rest, deferred)
	next.Priority = task.Priority
	next.ChunkSize = chunkSize
	err := c.submit(ctx, next, "remainder")
	if errors.Is(err, queue.ErrDuplicate) {
		// a pending task enumerated after this chain started covers the rest
		c.logger.Info("archive task already queued, ending chain", "task_id", task.ID)
		return nil
	}
	return err
}

// submitFresh enumerates candidates, leaving out deferred UIDs, and submits
// them as a new task. Nothing is submitted when there are no candidates.
func (c *Chunked) submitFresh(ctx context.Context, deferred []string) (int, error) {
	var uids []string
	err := c.engine.WalkCandidates(ctx, 0, func(rec *record.Record) error {
		if slices.Contains(deferred, rec.UID) {
			return nil
		}
		uids = append(uids, rec.UID)
		if len(uids) >= c.cfg.PrefetchLimit {
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enumerate candidates: %w", err)
	}
	c.engine.metrics.recordCandidates(len(uids))

	if len(uids) == 0 {
		c.logger.Info("no records to archive", "deferred", len(deferred))
		return 0, nil
	}

	task := c.newTask(uids, deferred)
	if err := c.submit(ctx, task, "enumeration"); err != nil {
		return 0, err
	}
	return len(uids), nil
}

func (c *Chunked) newTask(uids, deferred []string) *queue.Task {
	return &queue.Task{
		Name:      TaskName,
		Target:    c.cfg.Target,
		UIDs:      uids,
		Deferred:  deferred,
		Priority:  c.cfg.Priority,
		ChunkSize: c.cfg.ChunkSize,
		Unique:    true,
		Ghost:     true,
	}
}

func (c *Chunked) submit(ctx context.Context, task *queue.Task, reason string) error {
	if err := c.queue.Submit(ctx, task); err != nil {
		return err
	}
	c.engine.metrics.recordTask(reason)
	c.logger.Info("archive task submitted",
		"task_id", task.ID,
		"uids", len(task.UIDs),
		"chunk_size", task.ChunkSize,
		"priority", task.Priority,
		"reason", reason,
	)
	return nil
}
