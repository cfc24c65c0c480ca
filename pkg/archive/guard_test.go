package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/store/storetest"
	"mercator-hq/strata/pkg/workflow"
)

func allowed(t *testing.T, f *fixture, uid string) bool {
	t.Helper()
	rec := f.get(t, uid)
	var ok bool
	err := f.store.View(context.Background(), func(r store.Reader) error {
		var err error
		ok, err = f.workflow.IsTransitionAllowed(context.Background(), r, rec, workflow.ActionArchive)
		return err
	})
	if err != nil {
		t.Fatalf("IsTransitionAllowed(%s) failed: %v", uid, err)
	}
	return ok
}

// TestEngine_IsArchivable tests the archive guard through the workflow.
func TestEngine_IsArchivable(t *testing.T) {
	old := storetest.Day(2021, 6, 1)
	recent := storetest.Day(2023, 6, 1)

	blocked := sampleRecord("blocked", old, record.StatePublished)
	blocked.Sample.RetestUID = "retest-open"
	chained := sampleRecord("chained", old, record.StatePublished)
	chained.Sample.RetestUID = "blocked"
	fine := sampleRecord("fine", old, record.StatePublished)
	fine.Sample.RetestUID = "retest-done"

	f := newFixture(t,
		sampleRecord("old", old, record.StatePublished),
		sampleRecord("recent", recent, record.StatePublished),
		sampleRecord("received", old, record.StateReceived),
		sampleRecord("retest-open", old, record.StateToBeVerified),
		sampleRecord("retest-done", old, record.StatePublished),
		blocked, chained, fine,
	)

	tests := []struct {
		uid  string
		want bool
	}{
		{"old", true},
		{"recent", false},
		{"received", false},
		{"blocked", false},
		{"chained", false},
		{"fine", true},
		{"client-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			if got := allowed(t, f, tt.uid); got != tt.want {
				t.Errorf("archive allowed for %s = %v, want %v", tt.uid, got, tt.want)
			}
		})
	}

	if n := testutil.ToFloat64(f.metrics.guardRejections.WithLabelValues(string(record.KindSample), reasonRetention)); n < 1 {
		t.Errorf("retention rejections = %v, want at least 1", n)
	}
}

// TestEngine_BatchBlocked tests that a batch holding a sample that cannot
// be archived is neither archivable nor archived.
func TestEngine_BatchBlocked(t *testing.T) {
	old := storetest.Day(2021, 3, 1)
	s := sampleRecord("s-1", old, record.StateReceived)
	s.Sample.BatchUID = "b-1"
	f := newFixture(t, batchRecord("b-1", old, record.StateClosed), s)

	if allowed(t, f, "b-1") {
		t.Fatal("batch guard returned true")
	}
	if got := candidateUIDs(t, f.engine, 0); len(got) != 0 {
		t.Errorf("Candidates() = %v, want none", got)
	}

	err := f.engine.Archive(context.Background(), "b-1")
	if !errors.Is(err, ErrNotArchivable) || FailedStep(err) != StepGuard {
		t.Errorf("Archive() error = %v, want guard ErrNotArchivable", err)
	}
	if items := f.stubs(t, store.ArchiveQuery{}); len(items) != 0 {
		t.Errorf("stubs created: %d", len(items))
	}
	if !f.exists(t, "b-1") || !f.exists(t, "s-1") {
		t.Error("records were removed")
	}
}

// TestEngine_BatchRetention tests that batches follow the retention period.
func TestEngine_BatchRetention(t *testing.T) {
	f := newFixture(t, batchRecord("b-1", storetest.Day(2023, 3, 1), record.StateClosed))
	if allowed(t, f, "b-1") {
		t.Error("batch inside the retention period is archivable")
	}
}

// TestEngine_GuardCycle tests mutually referencing samples.
func TestEngine_GuardCycle(t *testing.T) {
	old := storetest.Day(2021, 6, 1)
	a := sampleRecord("a", old, record.StatePublished)
	a.Sample.RetestUID = "b"
	b := sampleRecord("b", old, record.StatePublished)
	b.Sample.PrimaryUID = "a"
	b.Sample.RetestUID = "a"
	f := newFixture(t, a, b)

	if !allowed(t, f, "a") || !allowed(t, f, "b") {
		t.Fatal("cyclic samples should be archivable")
	}

	if err := f.engine.Archive(context.Background(), "a"); err != nil {
		t.Fatalf("Archive() failed: %v", err)
	}
	if f.exists(t, "a") || f.exists(t, "b") {
		t.Error("cyclic samples were not archived")
	}
	if items := f.stubs(t, store.ArchiveQuery{}); len(items) != 2 {
		t.Errorf("stubs = %d, want 2", len(items))
	}
}

// TestEngine_CanArchive tests inheritance of archivability from containers.
func TestEngine_CanArchive(t *testing.T) {
	old := storetest.Day(2021, 6, 1)
	f := newFixture(t,
		sampleRecord("pub", old, record.StatePublished),
		analysisRecord("a-pub", "pub"),
		sampleRecord("rec", old, record.StateReceived),
		analysisRecord("a-rec", "rec"),
	)

	tests := []struct {
		uid  string
		want bool
	}{
		{"pub", true},
		{"a-pub", true},
		{"rec", false},
		{"a-rec", false},
		{"client-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			rec := f.get(t, tt.uid)
			var got bool
			err := f.store.View(context.Background(), func(r store.Reader) error {
				var err error
				got, err = f.engine.CanArchive(context.Background(), r, rec)
				return err
			})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CanArchive(%s) = %v, want %v", tt.uid, got, tt.want)
			}
		})
	}

	ok, err := f.engine.CanArchive(context.Background(), nil, nil)
	if ok || err != nil {
		t.Errorf("CanArchive(nil) = %v, %v", ok, err)
	}
}

// TestEngine_Disabled tests that an inactive configuration blocks
// everything.
func TestEngine_Disabled(t *testing.T) {
	f := newFixture(t, sampleRecord("s-1", storetest.Day(2021, 6, 1), record.StatePublished))

	s := f.engine.Settings()
	s.Status = config.ArchiveStatus{Active: false, Warning: "Archive base path is not set: archiving is disabled"}
	f.engine.Reconfigure(s)

	if allowed(t, f, "s-1") {
		t.Error("guard returned true while disabled")
	}
	if got := candidateUIDs(t, f.engine, 0); len(got) != 0 {
		t.Errorf("Candidates() = %v while disabled", got)
	}
	if err := f.engine.Archive(context.Background(), "s-1"); !errors.Is(err, ErrArchiveDisabled) {
		t.Errorf("Archive() error = %v, want ErrArchiveDisabled", err)
	}
	if _, err := f.engine.ArchiveAll(context.Background()); !errors.Is(err, ErrArchiveDisabled) {
		t.Errorf("ArchiveAll() error = %v, want ErrArchiveDisabled", err)
	}
}
