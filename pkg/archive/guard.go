package archive

import (
	"context"
	"errors"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/workflow"
)

// Guard rejection reasons.
const (
	reasonDisabled   = "disabled"
	reasonRetention  = "retention"
	reasonDependents = "dependents"
)

// registerGuards installs IsArchivable as the archive guard of every
// archivable kind.
func (e *Engine) registerGuards() {
	for _, kind := range record.ArchivableKinds {
		e.workflow.RegisterGuard(kind, workflow.ActionArchive, e.IsArchivable)
	}
}

// IsArchivable is the archive transition guard. It returns true when
// archiving is active, rec is outside the retention period and every
// dependent is itself allowed to be archived.
func (e *Engine) IsArchivable(ctx context.Context, r store.Reader, rec *record.Record) (bool, error) {
	s := e.Settings()
	kind := string(rec.Kind)

	if !s.Status.Active {
		e.metrics.recordRejection(kind, reasonDisabled)
		return false, nil
	}
	if !s.Policy.IsOutsideRetention(rec) {
		e.metrics.recordRejection(kind, reasonRetention)
		return false, nil
	}

	deps, err := Dependents(ctx, r, rec)
	if err != nil {
		return false, err
	}
	for _, dep := range deps {
		ok, err := e.workflow.IsTransitionAllowed(ctx, r, dep, workflow.ActionArchive)
		if err != nil {
			return false, err
		}
		if !ok {
			e.logger.Debug("archive blocked by dependent",
				"uid", rec.UID,
				"kind", kind,
				"dependent", dep.UID,
			)
			e.metrics.recordRejection(kind, reasonDependents)
			return false, nil
		}
	}
	return true, nil
}

// CanArchive reports whether the archive transition is allowed for rec or,
// failing that, for its closest container that allows it. Objects without
// an archive transition of their own, such as analyses, are archivable
// through their sample.
func (e *Engine) CanArchive(ctx context.Context, r store.Reader, rec *record.Record) (bool, error) {
	for rec != nil {
		ok, err := e.workflow.IsTransitionAllowed(ctx, r, rec, workflow.ActionArchive)
		if err != nil || ok {
			return ok, err
		}
		if rec.IsRoot() {
			return false, nil
		}
		parent, err := r.Get(ctx, rec.ParentUID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		rec = parent
	}
	return false, nil
}
