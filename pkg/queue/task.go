package queue

import (
	"context"
	"time"
)

// Task statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Task is a unit of deferred work.
type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Target identifies the container the task acts on.
	Target string `json:"target,omitempty"`

	// UIDs is the ordered list of records still to process.
	UIDs []string `json:"uids"`

	// Deferred lists records that failed earlier in the same chain of tasks.
	Deferred []string `json:"deferred,omitempty"`

	Priority  int  `json:"priority"`
	ChunkSize int  `json:"chunk_size"`
	Unique    bool `json:"unique,omitempty"`
	Ghost     bool `json:"ghost,omitempty"`

	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// seq is the submission order within a Memory queue.
	seq uint64
}

// Key identifies tasks for uniqueness checks.
func (t *Task) Key() string {
	return t.Name + "@" + t.Target
}

// Handler processes one task. Returning an error fails the attempt.
type Handler func(ctx context.Context, task *Task) error

// Queue is the deferred task queue contract.
type Queue interface {
	// Submit adds a task. The queue assigns ID, Status and CreatedAt.
	Submit(ctx context.Context, task *Task) error

	// Next claims the pending task with the highest priority, oldest first,
	// and marks it running. It returns ErrEmpty when nothing is pending.
	Next(ctx context.Context) (*Task, error)

	// Done completes a running task.
	Done(ctx context.Context, id string) error

	// Fail records a failed attempt. The task is pending again until it has
	// been attempted MaxAttempts times.
	Fail(ctx context.Context, id string, cause error) error

	// Ready reports whether the queue accepts tasks.
	Ready(ctx context.Context) bool

	// Len returns the number of pending tasks.
	Len(ctx context.Context) (int, error)

	Close() error
}
