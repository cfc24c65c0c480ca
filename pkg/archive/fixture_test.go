package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/strata/pkg/archive/export"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/store/memory"
	"mercator-hq/strata/pkg/store/storetest"
	"mercator-hq/strata/pkg/workflow"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func years(n int) *int { return &n }

func fixedNow() time.Time { return testNow }

// failingExporter wraps an exporter and fails for the given UIDs.
type failingExporter struct {
	next    Exporter
	failFor map[string]bool
}

func (f *failingExporter) Export(ctx context.Context, r store.Reader, rec *record.Record) (string, error) {
	if f.failFor[rec.UID] {
		return "", export.NewExportError(rec.ID+".json", errors.New("disk full"))
	}
	return f.next.Export(ctx, r, rec)
}

type fixture struct {
	store    *memory.Store
	workflow *workflow.Workflow
	engine   *Engine
	metrics  *Metrics
	root     string
	exporter *failingExporter
}

func newFixture(t *testing.T, recs ...*record.Record) *fixture {
	t.Helper()
	st := memory.New()
	storetest.Seed(t, st, append([]*record.Record{clientRecord()}, recs...)...)

	root := t.TempDir()
	writer := export.NewWriter(export.NewFileSystem(root), export.Config{
		CanExport: export.SkipTypes(config.DefaultSkipTypes),
	})
	exp := &failingExporter{next: writer, failFor: map[string]bool{}}

	wf := workflow.New(nil)
	m := NewMetrics(prometheus.NewRegistry())
	e := NewEngine(st, wf, Settings{
		Policy:   Policy{RetentionPeriod: years(2), DateCriterion: CriterionCreated, Now: fixedNow},
		Status:   config.ArchiveStatus{Active: true},
		Exporter: exp,
	}, Options{Metrics: m})
	e.now = fixedNow

	return &fixture{store: st, workflow: wf, engine: e, metrics: m, root: root, exporter: exp}
}

func clientRecord() *record.Record {
	return &record.Record{
		UID: "client-1", ID: "client-1", Kind: record.KindClient,
		Path: "/clients/client-1", Created: storetest.Day(2019, 1, 1),
	}
}

// sampleRecord returns a sample in client-1.
func sampleRecord(uid string, created time.Time, state string) *record.Record {
	return &record.Record{
		UID: uid, ID: "W-" + uid, Kind: record.KindSample, ParentUID: "client-1",
		Path: "/clients/client-1/W-" + uid, Created: created, State: state,
		Auditable: true,
		Sample:    &record.SampleData{Client: "Happy Hills", SampleType: "Water"},
	}
}

func analysisRecord(uid, parent string) *record.Record {
	return &record.Record{
		UID: uid, ID: "A-" + uid, Kind: record.KindAnalysis, ParentUID: parent,
		Path: "/clients/client-1/W-" + parent + "/A-" + uid, Created: storetest.Day(2021, 6, 1),
		State:    record.StateVerified,
		Analysis: &record.AnalysisData{Keyword: "Ca", Result: "10", Unit: "mg/L"},
	}
}

func batchRecord(uid string, created time.Time, state string) *record.Record {
	return &record.Record{
		UID: uid, ID: "B-" + uid, Kind: record.KindBatch,
		Path: "/batches/B-" + uid, Created: created, State: state,
		Batch: &record.BatchData{Client: "Happy Hills"},
	}
}

func worksheetRecord(uid string, created time.Time, layout ...string) *record.Record {
	return &record.Record{
		UID: uid, ID: "WS-" + uid, Kind: record.KindWorksheet,
		Path: "/worksheets/WS-" + uid, Created: created, State: record.StateVerified,
		Worksheet: &record.WorksheetData{Analyst: "analyst1", Layout: layout},
	}
}

func (f *fixture) exists(t *testing.T, uid string) bool {
	t.Helper()
	var found bool
	err := f.store.View(context.Background(), func(r store.Reader) error {
		_, err := r.Get(context.Background(), uid)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return found
}

func (f *fixture) stubs(t *testing.T, q store.ArchiveQuery) []*record.ArchiveItem {
	t.Helper()
	var items []*record.ArchiveItem
	err := f.store.View(context.Background(), func(r store.Reader) error {
		var err error
		items, err = r.SearchArchive(context.Background(), q)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return items
}

func (f *fixture) get(t *testing.T, uid string) *record.Record {
	t.Helper()
	var rec *record.Record
	err := f.store.View(context.Background(), func(r store.Reader) error {
		var err error
		rec, err = r.Get(context.Background(), uid)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func candidateUIDs(t *testing.T, e *Engine, limit int) []string {
	t.Helper()
	recs, err := e.Candidates(context.Background(), limit)
	if err != nil {
		t.Fatalf("Candidates() failed: %v", err)
	}
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.UID
	}
	return out
}
