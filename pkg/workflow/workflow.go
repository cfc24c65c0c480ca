// Package workflow answers "is transition X allowed for this record".
//
// A transition is allowed when the record's current lifecycle state permits
// it and every guard registered for the record's kind and the action
// returns true. The archive engine registers its guard at startup; the
// table of permitting states comes from configuration.
package workflow

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// ActionArchive is the transition that retires a record into the archive.
const ActionArchive = "archive"

// Guard decides whether a transition may be granted for rec. Guards run
// after the state check succeeded.
type Guard func(ctx context.Context, r store.Reader, rec *record.Record) (bool, error)

type guardKey struct {
	kind   record.Kind
	action string
}

// Workflow holds the transition table and the registered guards.
type Workflow struct {
	mu     sync.RWMutex
	states map[string]map[record.Kind][]string
	guards map[guardKey]Guard
}

// DefaultArchiveStates returns the states that permit the archive
// transition for each archivable kind.
func DefaultArchiveStates() map[record.Kind][]string {
	return map[record.Kind][]string{
		record.KindSample: {
			record.StatePublished,
			record.StateRejected,
			record.StateCancelled,
			record.StateInvalid,
		},
		record.KindBatch: {
			record.StateClosed,
			record.StateCancelled,
		},
		record.KindWorksheet: {
			record.StateVerified,
		},
	}
}

// New creates a workflow whose archive transition is permitted from the
// given states. A nil table uses DefaultArchiveStates.
func New(archiveStates map[record.Kind][]string) *Workflow {
	if archiveStates == nil {
		archiveStates = DefaultArchiveStates()
	}
	w := &Workflow{
		states: make(map[string]map[record.Kind][]string),
		guards: make(map[guardKey]Guard),
	}
	w.SetStates(ActionArchive, archiveStates)
	return w
}

// SetStates replaces the permitting states of action.
func (w *Workflow) SetStates(action string, table map[record.Kind][]string) {
	cp := make(map[record.Kind][]string, len(table))
	for kind, states := range table {
		cp[kind] = slices.Clone(states)
	}
	w.mu.Lock()
	w.states[action] = cp
	w.mu.Unlock()
}

// RegisterGuard installs the guard for (kind, action), replacing any
// previous one.
func (w *Workflow) RegisterGuard(kind record.Kind, action string, g Guard) {
	w.mu.Lock()
	w.guards[guardKey{kind, action}] = g
	w.mu.Unlock()
}

// Permits reports whether state permits action for kind, ignoring guards.
func (w *Workflow) Permits(kind record.Kind, state, action string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.states[action][kind], state)
}

// IsTransitionAllowed reports whether action may be performed on rec.
//
// Guards may recurse into IsTransitionAllowed for related records. A record
// already under evaluation further up the call chain counts as allowed, so
// the outermost evaluation decides.
func (w *Workflow) IsTransitionAllowed(ctx context.Context, r store.Reader, rec *record.Record, action string) (bool, error) {
	if rec == nil {
		return false, nil
	}
	if !w.Permits(rec.Kind, rec.State, action) {
		return false, nil
	}
	if isVisiting(ctx, rec.UID) {
		return true, nil
	}

	w.mu.RLock()
	g := w.guards[guardKey{rec.Kind, action}]
	w.mu.RUnlock()
	if g == nil {
		return true, nil
	}

	ok, err := g(withVisiting(ctx, rec.UID), r, rec)
	if err != nil {
		return false, fmt.Errorf("guard %s/%s for %s: %w", rec.Kind, action, rec.UID, err)
	}
	return ok, nil
}

type visitingKey struct{}

type visitSet struct {
	parent *visitSet
	uid    string
}

func withVisiting(ctx context.Context, uid string) context.Context {
	parent, _ := ctx.Value(visitingKey{}).(*visitSet)
	return context.WithValue(ctx, visitingKey{}, &visitSet{parent: parent, uid: uid})
}

func isVisiting(ctx context.Context, uid string) bool {
	v, _ := ctx.Value(visitingKey{}).(*visitSet)
	for ; v != nil; v = v.parent {
		if v.uid == uid {
			return true
		}
	}
	return false
}
