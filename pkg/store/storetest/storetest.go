// Package storetest provides a conformance suite run against every
// store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// Factory opens an empty store for one test.
type Factory func(t *testing.T) store.Store

// Run runs the full suite.
func Run(t *testing.T, open Factory) {
	t.Run("PutAndGet", func(t *testing.T) { testPutAndGet(t, open(t)) })
	t.Run("ParentRequired", func(t *testing.T) { testParentRequired(t, open(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, open(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("DeleteSubtree", func(t *testing.T) { testDeleteSubtree(t, open(t)) })
	t.Run("AuditSuppressed", func(t *testing.T) { testAuditSuppressed(t, open(t)) })
	t.Run("ArchiveItems", func(t *testing.T) { testArchiveItems(t, open(t)) })
	t.Run("ArchiveSearchLiteral", func(t *testing.T) { testArchiveSearchLiteral(t, open(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
}

// Day returns a UTC date at noon.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// Seed writes the given records in one transaction, failing the test on error.
func Seed(t *testing.T, s store.Store, recs ...*record.Record) {
	t.Helper()
	err := s.RunInTransaction(context.Background(), func(tx store.Tx) error {
		for _, r := range recs {
			if err := tx.Put(context.Background(), r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func client() *record.Record {
	return &record.Record{UID: "client-1", ID: "client-1", Kind: record.KindClient, Path: "/clients/client-1", Created: Day(2019, 1, 1)}
}

func sample(uid string, created time.Time) *record.Record {
	return &record.Record{
		UID: uid, ID: uid, Kind: record.KindSample, ParentUID: "client-1",
		Path: "/clients/client-1/" + uid, Created: created, State: record.StatePublished,
		Auditable: true,
		Sample:    &record.SampleData{Client: "Happy Hills"},
	}
}

func analysis(uid, parent string) *record.Record {
	return &record.Record{
		UID: uid, ID: uid, Kind: record.KindAnalysis, ParentUID: parent,
		Path: "/clients/client-1/" + parent + "/" + uid, Created: Day(2021, 1, 1),
		Auditable: true,
		Analysis:  &record.AnalysisData{Keyword: "Ca", Result: "10"},
	}
}

func testPutAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, client(), sample("S-1", Day(2021, 6, 1)))

	err := s.View(ctx, func(r store.Reader) error {
		got, err := r.Get(ctx, "S-1")
		if err != nil {
			return err
		}
		if got.Sample == nil || got.Sample.Client != "Happy Hills" {
			t.Errorf("Get() payload = %+v", got.Sample)
		}
		if !got.Created.Equal(Day(2021, 6, 1)) {
			t.Errorf("Get() created = %v", got.Created)
		}
		cats, err := r.Catalogs(ctx, "S-1")
		if err != nil {
			return err
		}
		if len(cats) != 3 {
			t.Errorf("Catalogs() = %v, want 3 catalogs", cats)
		}
		if _, err := r.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func testParentRequired(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.Put(ctx, sample("S-1", Day(2021, 6, 1)))
	})
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Fatalf("Put() error = %v, want ErrParentNotFound", err)
	}
}

func testSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	s2 := sample("S-2", Day(2020, 1, 1))
	s2.Sample.BatchUID = "B-1"
	s3 := sample("S-3", Day(2022, 1, 1))
	s3.Sample.PrimaryUID = "S-1"
	Seed(t, s, client(), sample("S-1", Day(2021, 6, 1)), s2, s3)

	err := s.View(ctx, func(r store.Reader) error {
		all, err := r.Search(ctx, store.Query{Kinds: []record.Kind{record.KindSample}})
		if err != nil {
			return err
		}
		if len(all) != 3 || all[0].UID != "S-2" || all[2].UID != "S-3" {
			t.Errorf("Search() order = %v, want oldest first", uids(all))
		}

		desc, err := r.Search(ctx, store.Query{Kinds: []record.Kind{record.KindSample}, Descending: true, Limit: 1})
		if err != nil {
			return err
		}
		if len(desc) != 1 || desc[0].UID != "S-3" {
			t.Errorf("Search(desc, limit 1) = %v, want [S-3]", uids(desc))
		}

		paged, err := r.Search(ctx, store.Query{Kinds: []record.Kind{record.KindSample}, Offset: 2})
		if err != nil {
			return err
		}
		if len(paged) != 1 || paged[0].UID != "S-3" {
			t.Errorf("Search(offset 2) = %v, want [S-3]", uids(paged))
		}

		batch, err := r.Search(ctx, store.Query{BatchUID: "B-1"})
		if err != nil {
			return err
		}
		if len(batch) != 1 || batch[0].UID != "S-2" {
			t.Errorf("Search(batch) = %v, want [S-2]", uids(batch))
		}

		secondaries, err := r.Search(ctx, store.Query{PrimaryUID: "S-1"})
		if err != nil {
			return err
		}
		if len(secondaries) != 1 || secondaries[0].UID != "S-3" {
			t.Errorf("Search(primary) = %v, want [S-3]", uids(secondaries))
		}

		before, err := r.Search(ctx, store.Query{Kinds: []record.Kind{record.KindSample}, CreatedBefore: Day(2021, 1, 1)})
		if err != nil {
			return err
		}
		if len(before) != 1 || before[0].UID != "S-2" {
			t.Errorf("Search(created before) = %v, want [S-2]", uids(before))
		}

		byUID, err := r.Search(ctx, store.Query{UIDs: []string{"S-1", "S-3", "nope"}})
		if err != nil {
			return err
		}
		if len(byUID) != 2 {
			t.Errorf("Search(uids) = %v, want 2 results", uids(byUID))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, client(), sample("S-1", Day(2021, 6, 1)))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		if err := tx.CreateArchiveItem(ctx, &record.ArchiveItem{ID: "i1", ItemUID: "S-1", ItemID: "S-1", ItemType: record.KindSample}); err != nil {
			return err
		}
		if err := tx.Delete(ctx, "S-1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTransaction() error = %v, want boom", err)
	}

	err = s.View(ctx, func(r store.Reader) error {
		if _, err := r.Get(ctx, "S-1"); err != nil {
			t.Errorf("record should survive rollback: %v", err)
		}
		items, err := r.SearchArchive(ctx, store.ArchiveQuery{})
		if err != nil {
			return err
		}
		if len(items) != 0 {
			t.Errorf("stub should not survive rollback, got %d", len(items))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func testDeleteSubtree(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, client(), sample("S-1", Day(2021, 6, 1)), analysis("A-1", "S-1"), analysis("A-2", "S-1"))

	err := s.View(ctx, func(r store.Reader) error {
		children, err := r.Children(ctx, "S-1")
		if err != nil {
			return err
		}
		if len(children) != 2 || children[0].ID != "A-1" {
			t.Errorf("Children() = %v, want [A-1 A-2]", uids(children))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}

	err = s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.Delete(ctx, "S-1")
	})
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	err = s.View(ctx, func(r store.Reader) error {
		for _, uid := range []string{"S-1", "A-1", "A-2"} {
			if _, err := r.Get(ctx, uid); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Get(%s) error = %v, want ErrNotFound", uid, err)
			}
		}
		if _, err := r.Get(ctx, "client-1"); err != nil {
			t.Errorf("parent should survive: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}

	err = s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.Delete(ctx, "S-1")
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func testAuditSuppressed(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, client(), sample("S-1", Day(2021, 6, 1)), sample("S-2", Day(2021, 6, 1)))

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		if err := tx.MarkForArchiving(ctx, "S-1"); err != nil {
			return err
		}
		if err := tx.Delete(ctx, "S-1"); err != nil {
			return err
		}
		return tx.Delete(ctx, "S-2")
	})
	if err != nil {
		t.Fatalf("RunInTransaction() failed: %v", err)
	}

	err = s.View(ctx, func(r store.Reader) error {
		ev1, err := r.AuditEvents(ctx, "S-1")
		if err != nil {
			return err
		}
		for _, ev := range ev1 {
			if ev.Action == store.AuditDelete {
				t.Error("record marked for archiving emitted a delete audit event")
			}
		}
		ev2, err := r.AuditEvents(ctx, "S-2")
		if err != nil {
			return err
		}
		if len(ev2) == 0 || ev2[len(ev2)-1].Action != store.AuditDelete {
			t.Errorf("auditable record should log its deletion, got %+v", ev2)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func testArchiveItems(t *testing.T, s store.Store) {
	ctx := context.Background()
	items := []*record.ArchiveItem{
		{ID: "i1", ItemUID: "u1", ItemID: "S-1", ItemType: record.KindSample, ItemModified: Day(2021, 1, 1), SearchText: "S-1 Happy Hills published"},
		{ID: "i2", ItemUID: "u2", ItemID: "B-1", ItemType: record.KindBatch, ItemModified: Day(2022, 1, 1), SearchText: "B-1 Happy Hills closed"},
		{ID: "i3", ItemUID: "u3", ItemID: "S-2", ItemType: record.KindSample, ItemModified: Day(2020, 1, 1), SearchText: "S-2 Other Client cancelled"},
	}
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		for _, item := range items {
			if err := tx.CreateArchiveItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("CreateArchiveItem() failed: %v", err)
	}

	err = s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.CreateArchiveItem(ctx, &record.ArchiveItem{ID: "i4", ItemUID: "u1"})
	})
	if !errors.Is(err, store.ErrDuplicateArchiveItem) {
		t.Errorf("duplicate CreateArchiveItem() error = %v, want ErrDuplicateArchiveItem", err)
	}

	err = s.View(ctx, func(r store.Reader) error {
		all, err := r.SearchArchive(ctx, store.ArchiveQuery{})
		if err != nil {
			return err
		}
		if len(all) != 3 || all[0].ID != "i2" || all[2].ID != "i3" {
			t.Errorf("SearchArchive() order wrong: %v", itemIDs(all))
		}

		hills, err := r.SearchArchive(ctx, store.ArchiveQuery{Text: "happy hills"})
		if err != nil {
			return err
		}
		if len(hills) != 2 {
			t.Errorf("SearchArchive(text) = %v, want 2", itemIDs(hills))
		}

		samples, err := r.SearchArchive(ctx, store.ArchiveQuery{ItemType: record.KindSample, Text: "hills"})
		if err != nil {
			return err
		}
		if len(samples) != 1 || samples[0].ID != "i1" {
			t.Errorf("SearchArchive(type+text) = %v, want [i1]", itemIDs(samples))
		}

		one, err := r.ArchiveItem(ctx, "i3")
		if err != nil {
			return err
		}
		if one.ItemID != "S-2" {
			t.Errorf("ArchiveItem() = %+v", one)
		}
		if _, err := r.ArchiveItem(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("ArchiveItem(nope) error = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func testArchiveSearchLiteral(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		if err := tx.CreateArchiveItem(ctx, &record.ArchiveItem{
			ID: "i1", ItemUID: "u1", ItemID: "S-1", ItemType: record.KindSample,
			ItemModified: Day(2021, 1, 1), SearchText: "client acme published",
		}); err != nil {
			return err
		}
		return tx.CreateArchiveItem(ctx, &record.ArchiveItem{
			ID: "i2", ItemUID: "u2", ItemID: "S-2", ItemType: record.KindSample,
			ItemModified: Day(2021, 2, 1), SearchText: `dilution 50%_v2 c:\lab`,
		})
	})
	if err != nil {
		t.Fatalf("CreateArchiveItem() failed: %v", err)
	}

	tests := []struct {
		text string
		want []string
	}{
		{text: "%", want: []string{"i2"}},
		{text: "_", want: []string{"i2"}},
		{text: "ac_e", want: nil},
		{text: "a%e", want: nil},
		{text: `\`, want: []string{"i2"}},
		{text: `c:\lab`, want: []string{"i2"}},
		{text: "50%_v2", want: []string{"i2"}},
		{text: "ACME", want: []string{"i1"}},
	}
	err = s.View(ctx, func(r store.Reader) error {
		for _, tt := range tests {
			items, err := r.SearchArchive(ctx, store.ArchiveQuery{Text: tt.text})
			if err != nil {
				return err
			}
			if got := itemIDs(items); !slices.Equal(got, tt.want) {
				t.Errorf("SearchArchive(%q) = %v, want %v", tt.text, got, tt.want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.PutUser(ctx, &record.User{ID: "analyst1", FullName: "Ann Alyst"})
	})
	if err != nil {
		t.Fatalf("PutUser() failed: %v", err)
	}
	err = s.View(ctx, func(r store.Reader) error {
		u, err := r.User(ctx, "analyst1")
		if err != nil {
			return err
		}
		if u.FullName != "Ann Alyst" {
			t.Errorf("User() = %+v", u)
		}
		if _, err := r.User(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("User(ghost) error = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

func uids(recs []*record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.UID
	}
	return out
}

func itemIDs(items []*record.ArchiveItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
