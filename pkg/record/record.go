package record

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidRecord is returned when a record misses required attributes.
var ErrInvalidRecord = errors.New("invalid record")

// LastModified returns the time the record was last touched: the latest of
// its creation date, modification date and every review history transition.
// Transitions such as publish or reject do not always bump Modified, so the
// stored modification date alone is not enough.
func (r *Record) LastModified() time.Time {
	last := r.Created
	if r.Modified.After(last) {
		last = r.Modified
	}
	for _, t := range r.ReviewHistory {
		if t.Time.After(last) {
			last = t.Time
		}
	}
	return last
}

// IsRoot reports whether the record sits at the top of the containment
// hierarchy.
func (r *Record) IsRoot() bool {
	return r.ParentUID == ""
}

// Validate checks the attributes every record must carry.
func (r *Record) Validate() error {
	switch {
	case r.UID == "":
		return fmt.Errorf("%w: uid is required", ErrInvalidRecord)
	case r.ID == "":
		return fmt.Errorf("%w: id is required (uid=%s)", ErrInvalidRecord, r.UID)
	case !r.Kind.IsValid():
		return fmt.Errorf("%w: unknown kind %q (uid=%s)", ErrInvalidRecord, r.Kind, r.UID)
	case r.Path == "":
		return fmt.Errorf("%w: path is required (uid=%s)", ErrInvalidRecord, r.UID)
	case r.Created.IsZero():
		return fmt.Errorf("%w: created is required (uid=%s)", ErrInvalidRecord, r.UID)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.ReviewHistory = slices.Clone(r.ReviewHistory)
	if r.Sample != nil {
		s := *r.Sample
		s.Verifiers = slices.Clone(r.Sample.Verifiers)
		c.Sample = &s
	}
	if r.Batch != nil {
		b := *r.Batch
		c.Batch = &b
	}
	if r.Worksheet != nil {
		w := *r.Worksheet
		w.Layout = slices.Clone(r.Worksheet.Layout)
		c.Worksheet = &w
	}
	if r.Analysis != nil {
		a := *r.Analysis
		c.Analysis = &a
	}
	return &c
}
