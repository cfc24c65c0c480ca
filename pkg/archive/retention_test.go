package archive

import (
	"testing"
	"time"

	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store/storetest"
)

// TestPolicy_IsOutsideRetention tests the year threshold for both criteria.
func TestPolicy_IsOutsideRetention(t *testing.T) {
	day := storetest.Day
	published := &record.Record{
		Created:  day(2021, 11, 3),
		Modified: day(2021, 11, 4),
		ReviewHistory: []record.Transition{
			{Action: "publish", State: record.StatePublished, Time: day(2023, 1, 10)},
		},
	}

	tests := []struct {
		name      string
		period    *int
		criterion string
		rec       *record.Record
		want      bool
	}{
		{"no period", nil, CriterionCreated, &record.Record{Created: day(1990, 1, 1)}, false},
		{"threshold year", years(2), CriterionCreated, &record.Record{Created: day(2022, 12, 31)}, true},
		{"before threshold", years(2), CriterionCreated, &record.Record{Created: day(2021, 6, 1)}, true},
		{"after threshold", years(2), CriterionCreated, &record.Record{Created: day(2023, 1, 1)}, false},
		{"zero period", years(0), CriterionCreated, &record.Record{Created: day(2024, 1, 1)}, true},
		{"created ignores transitions", years(2), CriterionCreated, published, true},
		{"modified uses transitions", years(2), CriterionModified, published, false},
		{"modified uses modified date", years(2), CriterionModified,
			&record.Record{Created: day(2020, 1, 1), Modified: day(2023, 2, 1)}, false},
		{"modified old record", years(2), CriterionModified,
			&record.Record{Created: day(2020, 1, 1), Modified: day(2021, 2, 1)}, true},
		{"nil record", years(2), CriterionCreated, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{RetentionPeriod: tt.period, DateCriterion: tt.criterion, Now: fixedNow}
			if got := p.IsOutsideRetention(tt.rec); got != tt.want {
				t.Errorf("IsOutsideRetention() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestPolicy_EarliestYear tests the first year kept in the active store.
func TestPolicy_EarliestYear(t *testing.T) {
	p := Policy{RetentionPeriod: years(2), Now: fixedNow}
	if year, ok := p.EarliestYear(); !ok || year != 2023 {
		t.Errorf("EarliestYear() = %d, %v, want 2023, true", year, ok)
	}

	if _, ok := (Policy{Now: fixedNow}).EarliestYear(); ok {
		t.Error("EarliestYear() without period should not be ok")
	}
}

// TestPolicy_CreatedBefore tests the enumeration bound.
func TestPolicy_CreatedBefore(t *testing.T) {
	p := Policy{RetentionPeriod: years(2), Now: fixedNow}
	before, ok := p.CreatedBefore()
	if !ok {
		t.Fatal("CreatedBefore() not ok")
	}
	last := time.Date(2022, 12, 31, 23, 59, 0, 0, time.UTC)
	if !last.Before(before) {
		t.Errorf("CreatedBefore() = %v excludes the threshold year", before)
	}
	if before.After(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedBefore() = %v is too loose", before)
	}
}

// TestPolicyFromConfig tests that the period is copied.
func TestPolicyFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	p := PolicyFromConfig(&cfg.Archive)
	if p.RetentionPeriod == nil || *p.RetentionPeriod != config.DefaultRetentionPeriod {
		t.Fatalf("RetentionPeriod = %v", p.RetentionPeriod)
	}
	*cfg.Archive.RetentionPeriod = 7
	if *p.RetentionPeriod != config.DefaultRetentionPeriod {
		t.Error("policy shares the period with the configuration")
	}
	if p.DateCriterion != CriterionCreated {
		t.Errorf("DateCriterion = %q", p.DateCriterion)
	}

	cfg.Archive.RetentionPeriod = nil
	if p := PolicyFromConfig(&cfg.Archive); p.RetentionPeriod != nil {
		t.Error("nil period should stay nil")
	}
}
