package store

import (
	"slices"
	"strings"

	"mercator-hq/strata/pkg/record"
)

// Matches reports whether rec satisfies the filters of q. Sorting and
// pagination are left to the caller.
func (q Query) Matches(rec *record.Record) bool {
	if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, rec.Kind) {
		return false
	}
	if len(q.UIDs) > 0 && !slices.Contains(q.UIDs, rec.UID) {
		return false
	}
	if !q.CreatedBefore.IsZero() && !rec.Created.Before(q.CreatedBefore) {
		return false
	}
	if q.BatchUID != "" || q.PrimaryUID != "" || q.ParentSampleUID != "" {
		s := rec.Sample
		if s == nil {
			return false
		}
		if q.BatchUID != "" && s.BatchUID != q.BatchUID {
			return false
		}
		if q.PrimaryUID != "" && s.PrimaryUID != q.PrimaryUID {
			return false
		}
		if q.ParentSampleUID != "" && s.ParentSampleUID != q.ParentSampleUID {
			return false
		}
	}
	return true
}

// Matches reports whether item satisfies the filters of q.
func (q ArchiveQuery) Matches(item *record.ArchiveItem) bool {
	if q.ItemType != "" && item.ItemType != q.ItemType {
		return false
	}
	if q.ItemID != "" && item.ItemID != q.ItemID {
		return false
	}
	if q.ItemUID != "" && item.ItemUID != q.ItemUID {
		return false
	}
	if q.Text != "" {
		text := strings.ToLower(item.SearchText)
		for _, word := range strings.Fields(strings.ToLower(q.Text)) {
			if !strings.Contains(text, word) {
				return false
			}
		}
	}
	return true
}

// Page applies offset and limit to a sorted slice.
func Page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
