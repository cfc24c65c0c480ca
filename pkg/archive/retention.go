package archive

import (
	"time"

	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/record"
)

// Date criteria.
const (
	CriterionCreated  = "created"
	CriterionModified = "modified"
)

// Policy decides which records are outside the retention period.
type Policy struct {
	// RetentionPeriod in years. Nil keeps every record forever.
	RetentionPeriod *int

	// DateCriterion is CriterionCreated or CriterionModified.
	DateCriterion string

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// PolicyFromConfig builds the policy of an archive configuration.
func PolicyFromConfig(cfg *config.ArchiveConfig) Policy {
	p := Policy{DateCriterion: cfg.DateCriterion}
	if cfg.RetentionPeriod != nil {
		years := *cfg.RetentionPeriod
		p.RetentionPeriod = &years
	}
	return p
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ThresholdYear returns the last year whose records are outside the
// retention period. ok is false when no period is set.
func (p Policy) ThresholdYear() (year int, ok bool) {
	if p.RetentionPeriod == nil {
		return 0, false
	}
	return p.now().Year() - *p.RetentionPeriod, true
}

// EarliestYear returns the earliest year whose records are kept in the
// active store. ok is false when no period is set.
func (p Policy) EarliestYear() (year int, ok bool) {
	threshold, ok := p.ThresholdYear()
	if !ok {
		return 0, false
	}
	return threshold + 1, true
}

// Date returns the date of rec the policy is evaluated on.
func (p Policy) Date(rec *record.Record) time.Time {
	if p.DateCriterion == CriterionModified {
		return rec.LastModified()
	}
	return rec.Created
}

// IsOutsideRetention reports whether rec's year under the date criterion is
// at or before the threshold year.
func (p Policy) IsOutsideRetention(rec *record.Record) bool {
	threshold, ok := p.ThresholdYear()
	if !ok || rec == nil {
		return false
	}
	return p.Date(rec).Year() <= threshold
}

// CreatedBefore returns a creation date bound every record outside the
// retention period is below, under either criterion, since the last touch
// of a record is never before its creation. The bound is padded by a day so
// it holds for records stamped in any time zone.
func (p Policy) CreatedBefore() (time.Time, bool) {
	threshold, ok := p.ThresholdYear()
	if !ok {
		return time.Time{}, false
	}
	return time.Date(threshold+1, time.January, 2, 0, 0, 0, 0, time.UTC), true
}
