package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memoryBackend = "memory"

var _ Queue = (*Memory)(nil)

// Memory is an in-process Queue.
type Memory struct {
	mu          sync.Mutex
	tasks       map[string]*Task
	maxAttempts int
	closed      bool
	seq         uint64
	now         func() time.Time
}

// NewMemory creates an in-memory queue. Tasks are retried until they have
// been attempted maxAttempts times; values below 1 mean a single attempt.
func NewMemory(maxAttempts int) *Memory {
	return &Memory{
		tasks:       make(map[string]*Task),
		maxAttempts: max(maxAttempts, 1),
		now:         time.Now,
	}
}

// Submit implements Queue.
func (m *Memory) Submit(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewQueueError(memoryBackend, "submit", ErrQueueUnavailable)
	}
	if task.Name == "" {
		return NewQueueError(memoryBackend, "submit", fmt.Errorf("task name is required"))
	}
	if task.Unique {
		for _, t := range m.tasks {
			if t.Status == StatusPending && t.Key() == task.Key() {
				return fmt.Errorf("%w: %s", ErrDuplicate, task.Key())
			}
		}
	}

	task.ID = uuid.NewString()
	task.Status = StatusPending
	task.Attempts = 0
	task.CreatedAt = m.now()
	m.seq++
	task.seq = m.seq
	m.tasks[task.ID] = clone(task)
	return nil
}

// Next implements Queue.
func (m *Memory) Next(ctx context.Context) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, NewQueueError(memoryBackend, "next", ErrQueueUnavailable)
	}

	var next *Task
	for _, t := range m.tasks {
		if t.Status != StatusPending {
			continue
		}
		if next == nil || before(t, next) {
			next = t
		}
	}
	if next == nil {
		return nil, ErrEmpty
	}
	next.Status = StatusRunning
	next.Attempts++
	return clone(next), nil
}

// before orders by priority descending, then submission order.
func before(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

// Done implements Queue.
func (m *Memory) Done(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return NewQueueError(memoryBackend, "done", fmt.Errorf("%w: %s", ErrTaskNotFound, id))
	}
	if t.Ghost {
		delete(m.tasks, id)
		return nil
	}
	t.Status = StatusDone
	return nil
}

// Fail implements Queue.
func (m *Memory) Fail(ctx context.Context, id string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return NewQueueError(memoryBackend, "fail", fmt.Errorf("%w: %s", ErrTaskNotFound, id))
	}
	if cause != nil {
		t.LastError = cause.Error()
	}
	if t.Attempts >= m.maxAttempts {
		t.Status = StatusFailed
		return nil
	}
	t.Status = StatusPending
	return nil
}

// Ready implements Queue.
func (m *Memory) Ready(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Len implements Queue.
func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if t.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

// Tasks returns a copy of every task held, in queue order.
func (m *Memory) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, clone(t))
	}
	slices.SortFunc(out, func(a, b *Task) int {
		if before(a, b) {
			return -1
		}
		if before(b, a) {
			return 1
		}
		return 0
	})
	return out
}

// Close stops the queue from accepting and handing out tasks.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func clone(t *Task) *Task {
	c := *t
	c.UIDs = slices.Clone(t.UIDs)
	c.Deferred = slices.Clone(t.Deferred)
	return &c
}
