// Package memory provides an in-memory implementation of store.Store.
//
// Transactions work on a cloned copy of the state which replaces the live
// state only when the transaction function succeeds. Writers are serialized,
// which gives the single-writer semantics the archiver relies on.
//
// Every transaction copies the whole state, so a pass archiving N records
// costs O(N²). The store is meant for tests and small ephemeral runs; use
// the sqlstore backends for real data.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

const backend = "memory"

var _ store.Store = (*Store)(nil)

type state struct {
	records  map[string]*record.Record
	catalogs map[string][]string
	users    map[string]*record.User
	items    map[string]*record.ArchiveItem
	audit    map[string][]store.AuditEvent
}

func newState() *state {
	return &state{
		records:  make(map[string]*record.Record),
		catalogs: make(map[string][]string),
		users:    make(map[string]*record.User),
		items:    make(map[string]*record.ArchiveItem),
		audit:    make(map[string][]store.AuditEvent),
	}
}

func (s *state) clone() *state {
	c := newState()
	for uid, rec := range s.records {
		c.records[uid] = rec.Clone()
	}
	for uid, cats := range s.catalogs {
		c.catalogs[uid] = slices.Clone(cats)
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	for id, item := range s.items {
		cp := *item
		c.items[id] = &cp
	}
	for uid, events := range s.audit {
		c.audit[uid] = slices.Clone(events)
	}
	return c
}

// Store is an in-memory transactional store.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		state: newState(),
		now:   time.Now,
	}
}

// View runs fn against the committed state.
func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{state: s.state, now: s.now})
}

// RunInTransaction runs fn against a copy of the state and commits the copy
// if fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{state: s.state.clone(), now: s.now}
	if err := fn(t); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type tx struct {
	state *state
	now   func() time.Time
}

func (t *tx) Get(ctx context.Context, uid string) (*record.Record, error) {
	rec, ok := t.state.records[uid]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", uid, store.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (t *tx) Children(ctx context.Context, uid string) ([]*record.Record, error) {
	var out []*record.Record
	for _, rec := range t.state.records {
		if rec.ParentUID == uid && uid != "" {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) Search(ctx context.Context, q store.Query) ([]*record.Record, error) {
	var out []*record.Record
	for _, rec := range t.state.records {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Created.Equal(b.Created) {
			if q.Descending {
				return a.Created.After(b.Created)
			}
			return a.Created.Before(b.Created)
		}
		return a.UID < b.UID
	})
	out = store.Page(out, q.Offset, q.Limit)
	for i, rec := range out {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (t *tx) Catalogs(ctx context.Context, uid string) ([]string, error) {
	return slices.Clone(t.state.catalogs[uid]), nil
}

func (t *tx) User(ctx context.Context, id string) (*record.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (t *tx) ArchiveItem(ctx context.Context, id string) (*record.ArchiveItem, error) {
	item, ok := t.state.items[id]
	if !ok {
		return nil, fmt.Errorf("archive item %s: %w", id, store.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}

func (t *tx) SearchArchive(ctx context.Context, q store.ArchiveQuery) ([]*record.ArchiveItem, error) {
	var out []*record.ArchiveItem
	for _, item := range t.state.items {
		if q.Matches(item) {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ItemModified.Equal(out[j].ItemModified) {
			return out[i].ItemModified.After(out[j].ItemModified)
		}
		return out[i].ID < out[j].ID
	})
	return store.Page(out, q.Offset, q.Limit), nil
}

func (t *tx) AuditEvents(ctx context.Context, uid string) ([]store.AuditEvent, error) {
	return slices.Clone(t.state.audit[uid]), nil
}

func (t *tx) Put(ctx context.Context, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return store.NewStorageError(backend, "put", err)
	}
	if !rec.IsRoot() {
		if _, ok := t.state.records[rec.ParentUID]; !ok {
			return store.NewStorageError(backend, "put",
				fmt.Errorf("record %s: %w: %s", rec.UID, store.ErrParentNotFound, rec.ParentUID))
		}
	}
	t.state.records[rec.UID] = rec.Clone()
	t.state.catalogs[rec.UID] = store.CatalogsFor(rec.Kind)
	if rec.Auditable {
		t.audit(rec.UID, store.AuditModify)
	}
	return nil
}

func (t *tx) MarkForArchiving(ctx context.Context, uid string) error {
	rec, ok := t.state.records[uid]
	if !ok {
		return store.NewStorageError(backend, "mark_for_archiving",
			fmt.Errorf("record %s: %w", uid, store.ErrNotFound))
	}
	rec.ForArchiving = true
	rec.Auditable = false
	return nil
}

func (t *tx) Uncatalog(ctx context.Context, uid string) error {
	delete(t.state.catalogs, uid)
	return nil
}

func (t *tx) Delete(ctx context.Context, uid string) error {
	if _, ok := t.state.records[uid]; !ok {
		return store.NewStorageError(backend, "delete",
			fmt.Errorf("record %s: %w", uid, store.ErrNotFound))
	}
	for _, victim := range t.subtree(uid) {
		rec := t.state.records[victim]
		if rec.Auditable {
			t.audit(victim, store.AuditDelete)
		}
		delete(t.state.records, victim)
		delete(t.state.catalogs, victim)
	}
	return nil
}

// subtree returns uid and the UIDs of every record below it.
func (t *tx) subtree(uid string) []string {
	children := make(map[string][]string)
	for _, rec := range t.state.records {
		if rec.ParentUID != "" {
			children[rec.ParentUID] = append(children[rec.ParentUID], rec.UID)
		}
	}
	out := []string{uid}
	for i := 0; i < len(out); i++ {
		out = append(out, children[out[i]]...)
	}
	return out
}

func (t *tx) CreateArchiveItem(ctx context.Context, item *record.ArchiveItem) error {
	for _, existing := range t.state.items {
		if existing.ItemUID == item.ItemUID {
			return store.NewStorageError(backend, "create_archive_item",
				fmt.Errorf("%w: %s", store.ErrDuplicateArchiveItem, item.ItemUID))
		}
	}
	if _, ok := t.state.items[item.ID]; ok {
		return store.NewStorageError(backend, "create_archive_item",
			fmt.Errorf("archive item id %s already in use", item.ID))
	}
	cp := *item
	t.state.items[item.ID] = &cp
	return nil
}

func (t *tx) PutUser(ctx context.Context, u *record.User) error {
	if u.ID == "" {
		return store.NewStorageError(backend, "put_user", fmt.Errorf("user id is required"))
	}
	cp := *u
	t.state.users[u.ID] = &cp
	return nil
}

func (t *tx) audit(uid, action string) {
	t.state.audit[uid] = append(t.state.audit[uid], store.AuditEvent{
		UID:    uid,
		Action: action,
		Time:   t.now(),
	})
}

// Len returns the number of records held by the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.records)
}

// UIDs returns the UIDs of every record, sorted.
func (s *Store) UIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.state.records))
}
