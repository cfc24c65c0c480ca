package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/strata/pkg/archive/provider"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/telemetry/tracing"
	"mercator-hq/strata/pkg/workflow"
)

// Exporter writes a record hierarchy to the archive and returns the
// directory, relative to the archive root, it was written to.
type Exporter interface {
	Export(ctx context.Context, r store.Reader, rec *record.Record) (string, error)
}

// Settings are the parts of the engine that follow configuration reloads.
type Settings struct {
	Policy   Policy
	Status   config.ArchiveStatus
	Exporter Exporter
}

// Options holds the optional collaborators of an Engine.
type Options struct {
	// Users caches user lookups for stub projections.
	Users *provider.Users

	// Metrics records engine metrics. Nil disables them.
	Metrics *Metrics

	// Tracer creates spans. Nil uses the global OpenTelemetry tracer.
	Tracer trace.Tracer
}

// Engine archives records of a store.
type Engine struct {
	store    store.Store
	workflow *workflow.Workflow
	settings atomic.Pointer[Settings]
	users    *provider.Users
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates an engine and registers its guard on wf.
func NewEngine(st store.Store, wf *workflow.Workflow, s Settings, opts Options) *Engine {
	e := &Engine{
		store:    st,
		workflow: wf,
		users:    opts.Users,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   slog.Default().With("component", "archive.engine"),
		now:      time.Now,
	}
	if e.users == nil {
		e.users = provider.NewUsers(0, 0)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	e.Reconfigure(s)
	e.registerGuards()
	return e
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	return *e.settings.Load()
}

// Reconfigure replaces the settings. Passes already running keep the
// settings they started with.
func (e *Engine) Reconfigure(s Settings) {
	e.settings.Store(&s)
	e.users.Purge()
	if !s.Status.Active {
		e.logger.Warn("archiving disabled", "reason", s.Status.Warning)
	}
}

// Store returns the active store the engine archives from.
func (e *Engine) Store() store.Store {
	return e.store
}

// EarliestYear returns the earliest year whose records are kept in the
// active store. ok is false when no retention period is configured.
func (e *Engine) EarliestYear() (int, bool) {
	return e.Settings().Policy.EarliestYear()
}

// Archive archives the record with uid and its dependents in one
// transaction. Archiving a record that was already archived is a no-op.
func (e *Engine) Archive(ctx context.Context, uid string) error {
	_, err := e.archive(ctx, uid)
	return err
}

// archive runs the archive sequence and returns the stubs created.
func (e *Engine) archive(ctx context.Context, uid string) ([]*record.ArchiveItem, error) {
	s := e.Settings()
	if !s.Status.Active {
		return nil, ErrArchiveDisabled
	}

	ctx, span := e.tracer.Start(ctx, "archive.record",
		trace.WithAttributes(attribute.String("record.uid", uid)))
	defer span.End()

	start := e.now()
	var items []*record.ArchiveItem
	err := e.store.RunInTransaction(ctx, func(tx store.Tx) error {
		run := &archiveRun{tx: tx, settings: &s, done: make(map[string]bool)}
		if err := e.archiveRecord(ctx, run, uid); err != nil {
			return err
		}
		items = run.items
		return nil
	})
	if err != nil {
		step := FailedStep(err)
		tracing.SetStatus(span, err)
		e.metrics.recordFailure(step)
		e.logger.ErrorContext(ctx, "archive failed", "uid", uid, "step", step, "error", err)
		return nil, err
	}

	e.metrics.observeDuration(e.now().Sub(start))
	for _, item := range items {
		e.metrics.recordArchived(string(item.ItemType))
		e.logger.InfoContext(ctx, "record archived",
			"uid", item.ItemUID,
			"kind", item.ItemType,
			"archive_path", item.ArchivePath,
		)
	}
	span.SetAttributes(attribute.Int("archive.items", len(items)))
	return items, nil
}

// archiveRun is the state of one archive transaction.
type archiveRun struct {
	tx       store.Tx
	settings *Settings
	done     map[string]bool
	items    []*record.ArchiveItem
}

func (e *Engine) archiveRecord(ctx context.Context, run *archiveRun, uid string) error {
	if run.done[uid] {
		return nil
	}
	run.done[uid] = true
	tx := run.tx

	rec, err := tx.Get(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		stubs, serr := tx.SearchArchive(ctx, store.ArchiveQuery{ItemUID: uid, Limit: 1})
		if serr != nil {
			return NewStepError(uid, StepGuard, serr)
		}
		if len(stubs) > 0 {
			return nil
		}
	}
	if err != nil {
		return NewStepError(uid, StepGuard, err)
	}

	ok, err := e.workflow.IsTransitionAllowed(ctx, tx, rec, workflow.ActionArchive)
	if err != nil {
		return NewStepError(uid, StepGuard, err)
	}
	if !ok {
		return NewStepError(uid, StepGuard, ErrNotArchivable)
	}

	if err := e.archiveDependents(ctx, run, rec); err != nil {
		return NewStepError(uid, StepDependents, err)
	}

	objs, err := Extract(ctx, tx, rec)
	if err != nil {
		return NewStepError(uid, StepMark, err)
	}
	for _, obj := range objs {
		if err := tx.MarkForArchiving(ctx, obj.UID); err != nil {
			return NewStepError(uid, StepMark, err)
		}
	}
	if rec, err = tx.Get(ctx, uid); err != nil {
		return NewStepError(uid, StepMark, err)
	}

	dir, err := e.export(ctx, run, rec)
	if err != nil {
		return NewStepError(uid, StepExport, err)
	}

	item, err := e.createStub(ctx, tx, rec, dir)
	if err != nil {
		return NewStepError(uid, StepStub, err)
	}

	_, span := e.tracer.Start(ctx, "archive.delete")
	err = Delete(ctx, tx, rec)
	span.End()
	if err != nil {
		return NewStepError(uid, StepDelete, err)
	}

	run.items = append(run.items, item)
	return nil
}

func (e *Engine) archiveDependents(ctx context.Context, run *archiveRun, rec *record.Record) error {
	ctx, span := e.tracer.Start(ctx, "archive.dependents")
	defer span.End()

	deps, err := Dependents(ctx, run.tx, rec)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("archive.dependents", len(deps)))
	for _, dep := range deps {
		if err := e.archiveRecord(ctx, run, dep.UID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) export(ctx context.Context, run *archiveRun, rec *record.Record) (string, error) {
	ctx, span := e.tracer.Start(ctx, "archive.export")
	defer span.End()

	if run.settings.Exporter == nil {
		return "", fmt.Errorf("no exporter configured")
	}
	dir, err := run.settings.Exporter.Export(ctx, run.tx, rec)
	if err != nil {
		tracing.SetStatus(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("archive.path", dir))
	return dir, nil
}

// createStub projects rec and stores its stub.
func (e *Engine) createStub(ctx context.Context, tx store.Tx, rec *record.Record, dir string) (*record.ArchiveItem, error) {
	ctx, span := e.tracer.Start(ctx, "archive.stub")
	defer span.End()

	p := provider.New(tx, e.users, rec)
	body, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	text, err := p.SearchableText(ctx)
	if err != nil {
		return nil, err
	}

	title := rec.Title
	if title == "" {
		title = rec.ID
	}
	item := &record.ArchiveItem{
		ID:           uuid.NewString(),
		Title:        title,
		ItemUID:      rec.UID,
		ItemID:       rec.ID,
		ItemPath:     rec.Path,
		ItemType:     rec.Kind,
		ItemCreated:  rec.Created,
		ItemModified: rec.LastModified(),
		ItemData:     body,
		ArchivePath:  dir,
		SearchText:   text,
		Created:      e.now().UTC(),
	}
	if err := tx.CreateArchiveItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Result summarizes an archive pass.
type Result struct {
	// Candidates is the number of candidates enumerated.
	Candidates int `json:"candidates"`

	// Archived is the number of stubs created, dependents included.
	Archived int `json:"archived"`

	// Failed is the number of candidates that could not be archived. They
	// stay in the active store for the next pass.
	Failed int `json:"failed"`
}

// ArchiveAll archives every candidate synchronously, one transaction per
// candidate. Failures are counted and skipped. The returned error is set
// only when enumeration fails or ctx ends.
func (e *Engine) ArchiveAll(ctx context.Context) (Result, error) {
	var res Result
	if !e.Settings().Status.Active {
		return res, ErrArchiveDisabled
	}

	candidates, err := e.Candidates(ctx, 0)
	if err != nil {
		return res, fmt.Errorf("enumerate candidates: %w", err)
	}
	res.Candidates = len(candidates)
	e.logger.Info("archiving records", "candidates", len(candidates))

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		items, err := e.archive(ctx, rec.UID)
		if err != nil {
			res.Failed++
			continue
		}
		res.Archived += len(items)
	}

	e.logger.Info("archive pass finished",
		"candidates", res.Candidates,
		"archived", res.Archived,
		"failed", res.Failed,
	)
	return res, nil
}
