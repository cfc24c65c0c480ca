package archive

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// dependentsFunc lists the records that must be archived before rec.
type dependentsFunc func(ctx context.Context, r store.Reader, rec *record.Record) ([]*record.Record, error)

var dependentsByKind = map[record.Kind]dependentsFunc{
	record.KindSample:    sampleDependents,
	record.KindBatch:     batchDependents,
	record.KindWorksheet: worksheetDependents,
}

// Dependents returns the records that have to be archived before rec, in
// the order they must be archived. References to records that no longer
// exist are skipped. Kinds without dependency rules have none.
func Dependents(ctx context.Context, r store.Reader, rec *record.Record) ([]*record.Record, error) {
	if rec == nil {
		return nil, nil
	}
	fn := dependentsByKind[rec.Kind]
	if fn == nil {
		return nil, nil
	}
	deps, err := fn(ctx, r, rec)
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", rec.UID, err)
	}
	return uniqueExcept(deps, rec.UID), nil
}

// sampleDependents returns the retest, then the secondary samples, then the
// partitions of a sample.
func sampleDependents(ctx context.Context, r store.Reader, rec *record.Record) ([]*record.Record, error) {
	var deps []*record.Record

	if s := rec.Sample; s != nil && s.RetestUID != "" {
		retest, err := getOptional(ctx, r, s.RetestUID)
		if err != nil {
			return nil, err
		}
		if retest != nil {
			deps = append(deps, retest)
		}
	}

	secondaries, err := r.Search(ctx, store.Query{
		Kinds:      []record.Kind{record.KindSample},
		PrimaryUID: rec.UID,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, secondaries...)

	descendants, err := r.Search(ctx, store.Query{
		Kinds:           []record.Kind{record.KindSample},
		ParentSampleUID: rec.UID,
	})
	if err != nil {
		return nil, err
	}
	return append(deps, descendants...), nil
}

func batchDependents(ctx context.Context, r store.Reader, rec *record.Record) ([]*record.Record, error) {
	return r.Search(ctx, store.Query{
		Kinds:    []record.Kind{record.KindSample},
		BatchUID: rec.UID,
	})
}

// worksheetDependents returns the samples laid out in the worksheet, in
// slot order.
func worksheetDependents(ctx context.Context, r store.Reader, rec *record.Record) ([]*record.Record, error) {
	if rec.Worksheet == nil {
		return nil, nil
	}
	var deps []*record.Record
	for _, uid := range rec.Worksheet.Layout {
		sample, err := getOptional(ctx, r, uid)
		if err != nil {
			return nil, err
		}
		if sample != nil {
			deps = append(deps, sample)
		}
	}
	return deps, nil
}

// getOptional returns the record with uid, or nil when it does not exist.
func getOptional(ctx context.Context, r store.Reader, uid string) (*record.Record, error) {
	rec, err := r.Get(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// uniqueExcept drops duplicates and the record itself, keeping first
// occurrences.
func uniqueExcept(recs []*record.Record, self string) []*record.Record {
	seen := map[string]bool{self: true}
	out := recs[:0]
	for _, rec := range recs {
		if seen[rec.UID] {
			continue
		}
		seen[rec.UID] = true
		out = append(out, rec)
	}
	return out
}
