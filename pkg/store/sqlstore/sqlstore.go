package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mercator-hq/strata/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Config contains configuration for the SQL store.
type Config struct {
	// Dialect selects the database. Default: SQLite.
	Dialect Dialect

	// DSN is the data source name: a file path for SQLite, a connection
	// URL for Postgres.
	DSN string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging (SQLite only).
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked
	// (SQLite only).
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default SQLite configuration.
func DefaultConfig() *Config {
	return &Config{
		Dialect:      SQLite,
		DSN:          "data/strata.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Store implements store.Store on database/sql.
type Store struct {
	db      *sql.DB
	config  *Config
	dialect Dialect
	logger  *slog.Logger

	// writeMu serializes transactions issued by this process.
	writeMu sync.Mutex
}

// Open connects to the database and creates the schema.
func Open(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Dialect.Driver == "" {
		config.Dialect = SQLite
	}
	d := config.Dialect

	logger := slog.Default().With("component", "store."+d.Name)

	db, err := sql.Open(d.Driver, config.DSN)
	if err != nil {
		return nil, store.NewStorageError(d.Name, "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &Store{
		db:      db,
		config:  config,
		dialect: d,
		logger:  logger,
	}

	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store initialized",
		"dialect", d.Name,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize applies pragmas, creates the schema and checks its version.
func (s *Store) initialize(ctx context.Context) error {
	name := s.dialect.Name

	if s.dialect.Driver == SQLite.Driver {
		if s.config.WALMode {
			if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
				return store.NewStorageError(name, "enable_wal", err)
			}
		}
		timeout := s.config.BusyTimeout.Milliseconds()
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", timeout)); err != nil {
			return store.NewStorageError(name, "set_busy_timeout", err)
		}
	}

	for _, stmt := range strings.Split(s.dialect.Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return store.NewStorageError(name, "create_schema", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(InsertSchemaVersion), SchemaVersion); err != nil {
		return store.NewStorageError(name, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return store.NewStorageError(name, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return store.NewStorageError(name, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// View runs fn against the database outside of any write transaction.
func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	return fn(&tx{q: s.db, d: s.dialect})
}

// RunInTransaction runs fn inside one database transaction, committing only
// when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(store.Tx) error) (err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewStorageError(s.dialect.Name, "begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(&tx{q: sqlTx, d: s.dialect, now: time.Now}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return store.NewStorageError(s.dialect.Name, "commit", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return store.NewStorageError(s.dialect.Name, "close", err)
	}
	s.logger.Info("store closed")
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
