package archive

import (
	"context"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// Extract returns rec and every object it contains. Contained objects come
// before their container, so rec is last.
func Extract(ctx context.Context, r store.Reader, rec *record.Record) ([]*record.Record, error) {
	children, err := r.Children(ctx, rec.UID)
	if err != nil {
		return nil, err
	}
	var out []*record.Record
	for _, child := range children {
		sub, err := Extract(ctx, r, child)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return append(out, rec), nil
}

// Delete uncatalogs rec and its contents, leaves first, then removes rec
// from its container.
func Delete(ctx context.Context, tx store.Tx, rec *record.Record) error {
	objs, err := Extract(ctx, tx, rec)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		if err := tx.Uncatalog(ctx, obj.UID); err != nil {
			return err
		}
	}
	return tx.Delete(ctx, rec.UID)
}
