package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteBackend = "sqlite"

var _ Queue = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	task_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	priority INTEGER NOT NULL,
	is_unique INTEGER NOT NULL DEFAULT 0,
	ghost INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks(status, priority DESC, seq);
CREATE INDEX IF NOT EXISTS idx_tasks_key ON tasks(task_key, status);
`

// payload is the part of a task stored as JSON.
type payload struct {
	Target    string   `json:"target,omitempty"`
	UIDs      []string `json:"uids"`
	Deferred  []string `json:"deferred,omitempty"`
	ChunkSize int      `json:"chunk_size"`
}

// SQLiteConfig configures the SQLite queue.
type SQLiteConfig struct {
	// Path is the database file.
	Path string

	// MaxAttempts bounds how often a task is tried.
	// Default: 3
	MaxAttempts int

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLite is a Queue persisted in a SQLite database, shared by every process
// opening the same file.
type SQLite struct {
	db          *sql.DB
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	closed bool
}

// OpenSQLite opens (creating if needed) the queue database.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, NewQueueError(sqliteBackend, "open", fmt.Errorf("db path cannot be empty"))
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewQueueError(sqliteBackend, "open", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewQueueError(sqliteBackend, "open", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, NewQueueError(sqliteBackend, "create_schema", err)
	}

	q := &SQLite{
		db:          db,
		maxAttempts: cfg.MaxAttempts,
		logger:      slog.Default().With("component", "queue.sqlite"),
		now:         time.Now,
	}
	q.logger.Info("task queue opened", "path", cfg.Path, "max_attempts", cfg.MaxAttempts)
	return q, nil
}

func (q *SQLite) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Submit implements Queue.
func (q *SQLite) Submit(ctx context.Context, task *Task) error {
	if q.isClosed() {
		return NewQueueError(sqliteBackend, "submit", ErrQueueUnavailable)
	}
	if task.Name == "" {
		return NewQueueError(sqliteBackend, "submit", fmt.Errorf("task name is required"))
	}

	data, err := json.Marshal(payload{
		Target:    task.Target,
		UIDs:      task.UIDs,
		Deferred:  task.Deferred,
		ChunkSize: task.ChunkSize,
	})
	if err != nil {
		return NewQueueError(sqliteBackend, "submit", err)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return NewQueueError(sqliteBackend, "begin", err)
	}
	defer tx.Rollback()

	if task.Unique {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE task_key = ? AND status = ?`,
			task.Key(), StatusPending).Scan(&n)
		if err != nil {
			return NewQueueError(sqliteBackend, "submit", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicate, task.Key())
		}
	}

	id := uuid.NewString()
	created := q.now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, name, task_key, payload, priority, is_unique, ghost, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, task.Name, task.Key(), string(data), task.Priority,
		task.Unique, task.Ghost, StatusPending, created.UnixNano())
	if err != nil {
		return NewQueueError(sqliteBackend, "submit", err)
	}
	if err := tx.Commit(); err != nil {
		return NewQueueError(sqliteBackend, "commit", err)
	}

	task.ID = id
	task.Status = StatusPending
	task.Attempts = 0
	task.CreatedAt = created
	return nil
}

// Next implements Queue.
func (q *SQLite) Next(ctx context.Context) (*Task, error) {
	if q.isClosed() {
		return nil, NewQueueError(sqliteBackend, "next", ErrQueueUnavailable)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewQueueError(sqliteBackend, "begin", err)
	}
	defer tx.Rollback()

	var (
		t       Task
		data    string
		created int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, payload, priority, is_unique, ghost, attempts, last_error, created_at
		FROM tasks
		WHERE status = ?
		ORDER BY priority DESC, seq ASC
		LIMIT 1`, StatusPending).Scan(
		&t.ID, &t.Name, &data, &t.Priority, &t.Unique, &t.Ghost,
		&t.Attempts, &t.LastError, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, NewQueueError(sqliteBackend, "next", err)
	}

	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, NewQueueError(sqliteBackend, "decode_payload", err)
	}
	t.Target = p.Target
	t.UIDs = p.UIDs
	t.Deferred = p.Deferred
	t.ChunkSize = p.ChunkSize
	t.CreatedAt = time.Unix(0, created).UTC()
	t.Attempts++
	t.Status = StatusRunning

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, attempts = ? WHERE id = ?`,
		StatusRunning, t.Attempts, t.ID); err != nil {
		return nil, NewQueueError(sqliteBackend, "claim", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, NewQueueError(sqliteBackend, "commit", err)
	}
	return &t, nil
}

// Done implements Queue.
func (q *SQLite) Done(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND ghost = 1`, id)
	if err != nil {
		return NewQueueError(sqliteBackend, "done", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	res, err = q.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, StatusDone, id)
	if err != nil {
		return NewQueueError(sqliteBackend, "done", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewQueueError(sqliteBackend, "done", fmt.Errorf("%w: %s", ErrTaskNotFound, id))
	}
	return nil
}

// Fail implements Queue.
func (q *SQLite) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = CASE WHEN attempts >= ? THEN ? ELSE ? END, last_error = ?
		WHERE id = ?`,
		q.maxAttempts, StatusFailed, StatusPending, msg, id)
	if err != nil {
		return NewQueueError(sqliteBackend, "fail", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewQueueError(sqliteBackend, "fail", fmt.Errorf("%w: %s", ErrTaskNotFound, id))
	}
	return nil
}

// Reclaim returns tasks left running by a worker that died to the pending
// state, or fails them when they used up their attempts. It returns the
// number of tasks reclaimed.
func (q *SQLite) Reclaim(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = CASE WHEN attempts >= ? THEN ? ELSE ? END, last_error = ?
		WHERE status = ?`,
		q.maxAttempts, StatusFailed, StatusPending, "worker stopped while running", StatusRunning)
	if err != nil {
		return 0, NewQueueError(sqliteBackend, "reclaim", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Ready implements Queue.
func (q *SQLite) Ready(ctx context.Context) bool {
	if q.isClosed() {
		return false
	}
	return q.db.PingContext(ctx) == nil
}

// Len implements Queue.
func (q *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = ?`, StatusPending).Scan(&n)
	if err != nil {
		return 0, NewQueueError(sqliteBackend, "len", err)
	}
	return n, nil
}

// Close closes the database.
func (q *SQLite) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	if err := q.db.Close(); err != nil {
		return NewQueueError(sqliteBackend, "close", err)
	}
	q.logger.Info("task queue closed")
	return nil
}
