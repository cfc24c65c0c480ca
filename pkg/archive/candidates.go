package archive

import (
	"context"
	"errors"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// candidatePageSize is the number of records read per store query while
// enumerating candidates.
const candidatePageSize = 200

// errStopWalk ends a walk early without an error.
var errStopWalk = errors.New("stop walk")

// WalkCandidates calls fn for every archivable record: samples, then
// batches, then worksheets, oldest first within each kind. The walk stops
// after limit records; limit <= 0 walks everything. fn is called outside
// of any store view, so it may modify the store, but the walk re-queries
// by offset and may then skip records.
func (e *Engine) WalkCandidates(ctx context.Context, limit int, fn func(*record.Record) error) error {
	s := e.Settings()
	if !s.Status.Active {
		return nil
	}
	before, ok := s.Policy.CreatedBefore()
	if !ok {
		return nil
	}

	found := 0
	for _, kind := range record.ArchivableKinds {
		for offset := 0; ; offset += candidatePageSize {
			if err := ctx.Err(); err != nil {
				return err
			}

			var page, qualifying []*record.Record
			err := e.store.View(ctx, func(r store.Reader) error {
				var err error
				page, err = r.Search(ctx, store.Query{
					Kinds:         []record.Kind{kind},
					CreatedBefore: before,
					Limit:         candidatePageSize,
					Offset:        offset,
				})
				if err != nil {
					return err
				}
				for _, rec := range page {
					ok, err := e.CanArchive(ctx, r, rec)
					if err != nil {
						return err
					}
					if ok {
						qualifying = append(qualifying, rec)
					} else {
						e.logger.Debug("not archivable", "uid", rec.UID, "kind", rec.Kind)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			for _, rec := range qualifying {
				if err := fn(rec); err != nil {
					if errors.Is(err, errStopWalk) {
						return nil
					}
					return err
				}
				found++
				if limit > 0 && found >= limit {
					return nil
				}
			}

			if len(page) < candidatePageSize {
				break
			}
		}
	}
	return nil
}

// Candidates returns up to limit archivable records in enumeration order.
// limit <= 0 returns all of them.
func (e *Engine) Candidates(ctx context.Context, limit int) ([]*record.Record, error) {
	var out []*record.Record
	err := e.WalkCandidates(ctx, limit, func(rec *record.Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.recordCandidates(len(out))
	return out, nil
}
