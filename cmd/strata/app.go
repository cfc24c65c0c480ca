package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/strata/pkg/archive"
	"mercator-hq/strata/pkg/archive/export"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/queue"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/store/memory"
	"mercator-hq/strata/pkg/store/sqlstore"
	"mercator-hq/strata/pkg/telemetry/metrics"
	"mercator-hq/strata/pkg/telemetry/tracing"
	"mercator-hq/strata/pkg/workflow"
)

// app is the archive stack built from a configuration.
type app struct {
	cfg      atomic.Pointer[config.Config]
	registry *prometheus.Registry
	tracer   *tracing.Tracer
	store    store.Store
	workflow *workflow.Workflow
	engine   *archive.Engine
	queue    queue.Queue
	chunked  *archive.Chunked
	closers  []func() error
}

// newApp opens the store and, when withQueue is set, the task queue, and
// assembles the engine.
func newApp(ctx context.Context, cfg *config.Config, withQueue bool) (*app, error) {
	a := &app{registry: metrics.NewRegistry()}
	a.cfg.Store(cfg)
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	var err error
	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.tracer.Shutdown(context.Background()) })

	a.store, err = openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	if withQueue {
		a.queue, err = openQueue(cfg.Queue)
		if err != nil {
			return nil, err
		}
		if a.queue != nil {
			a.closers = append(a.closers, a.queue.Close)
		}
	}

	settings, err := buildSettings(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.workflow = workflow.New(workflow.StatesFromConfig(cfg.Archive.Workflow))
	a.engine = archive.NewEngine(a.store, a.workflow, settings, archive.Options{
		Metrics: archive.NewMetrics(a.registry),
		Tracer:  a.tracer.Tracer(),
	})
	a.chunked = archive.NewChunked(a.engine, a.queue, archive.ChunkedConfigFrom(&cfg.Archive))
	built = true
	return a, nil
}

// reconfigure applies a reloaded configuration to the engine and workflow.
// Store and queue settings only take effect on restart.
func (a *app) reconfigure(ctx context.Context, cfg *config.Config) error {
	settings, err := buildSettings(ctx, cfg)
	if err != nil {
		return err
	}
	a.workflow.SetStates(workflow.ActionArchive, workflow.StatesFromConfig(cfg.Archive.Workflow))
	a.engine.Reconfigure(settings)
	a.cfg.Store(cfg)
	return nil
}

// config returns the configuration last applied.
func (a *app) config() *config.Config {
	return a.cfg.Load()
}

// Close releases everything newApp opened, last opened first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the active store backend.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		slog.Warn("using the in-memory store: records are lost on exit")
		return memory.New(), nil
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}

	sc := &sqlstore.Config{
		Dialect:      sqlstore.SQLite,
		DSN:          cfg.SQLite.Path,
		MaxOpenConns: cfg.SQLite.MaxOpenConns,
		MaxIdleConns: cfg.SQLite.MaxIdleConns,
		WALMode:      cfg.SQLite.WALMode,
		BusyTimeout:  cfg.SQLite.BusyTimeout,
	}
	if cfg.Backend == "postgres" {
		sc = &sqlstore.Config{
			Dialect:      sqlstore.Postgres,
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
		}
	}
	s, err := sqlstore.Open(sc)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openQueue opens the task queue. It returns nil when the queue is
// disabled, in which case archive passes run synchronously.
func openQueue(cfg config.QueueConfig) (queue.Queue, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "memory":
		return queue.NewMemory(cfg.MaxAttempts), nil
	case "sqlite":
		q, err := queue.OpenSQLite(queue.SQLiteConfig{
			Path:        cfg.SQLitePath,
			MaxAttempts: cfg.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Backend)
	}
}

// buildSettings derives the engine settings of a configuration: the
// retention policy, the archive status of the base path and the exporter.
func buildSettings(ctx context.Context, cfg *config.Config) (archive.Settings, error) {
	status := config.CheckArchive(cfg)

	var dest export.Destination = export.NewFileSystem(cfg.Archive.ArchiveBasePath)
	if cfg.Export.S3.Enabled {
		replica, err := export.NewS3(ctx, cfg.Export.S3)
		if err != nil {
			return archive.Settings{}, fmt.Errorf("failed to initialize S3 export: %w", err)
		}
		dest = export.Multi{dest, replica}
	}

	return archive.Settings{
		Policy: archive.PolicyFromConfig(&cfg.Archive),
		Status: status,
		Exporter: export.NewWriter(dest, export.Config{
			Pretty:    cfg.Export.Pretty,
			CanExport: export.SkipTypes(cfg.Archive.SkipTypes),
		}),
	}, nil
}
