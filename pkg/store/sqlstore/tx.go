package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type tx struct {
	q   querier
	d   Dialect
	now func() time.Time
}

func (t *tx) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := t.q.ExecContext(ctx, t.d.Rebind(query), args...)
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, op, err)
	}
	return res, nil
}

func (t *tx) Get(ctx context.Context, uid string) (*record.Record, error) {
	var payload string
	err := t.q.QueryRowContext(ctx, t.d.Rebind(`SELECT payload FROM records WHERE uid = ?`), uid).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", uid, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, "get", err)
	}
	return decodeRecord(payload)
}

func (t *tx) Children(ctx context.Context, uid string) ([]*record.Record, error) {
	if uid == "" {
		return nil, nil
	}
	return t.queryRecords(ctx, "children",
		`SELECT payload FROM records WHERE parent_uid = ? ORDER BY id`, uid)
}

func (t *tx) Search(ctx context.Context, q store.Query) ([]*record.Record, error) {
	var (
		conditions []string
		args       []any
	)
	if len(q.Kinds) > 0 {
		conditions = append(conditions, "kind IN ("+placeholders(len(q.Kinds))+")")
		for _, k := range q.Kinds {
			args = append(args, string(k))
		}
	}
	if len(q.UIDs) > 0 {
		conditions = append(conditions, "uid IN ("+placeholders(len(q.UIDs))+")")
		for _, uid := range q.UIDs {
			args = append(args, uid)
		}
	}
	if q.BatchUID != "" {
		conditions = append(conditions, "batch_uid = ?")
		args = append(args, q.BatchUID)
	}
	if q.PrimaryUID != "" {
		conditions = append(conditions, "primary_uid = ?")
		args = append(args, q.PrimaryUID)
	}
	if q.ParentSampleUID != "" {
		conditions = append(conditions, "parent_sample_uid = ?")
		args = append(args, q.ParentSampleUID)
	}
	if !q.CreatedBefore.IsZero() {
		conditions = append(conditions, "created_ns < ?")
		args = append(args, q.CreatedBefore.UnixNano())
	}

	var sb strings.Builder
	sb.WriteString("SELECT payload FROM records")
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	if q.Descending {
		sb.WriteString(" ORDER BY created_ns DESC, uid")
	} else {
		sb.WriteString(" ORDER BY created_ns ASC, uid")
	}
	sb.WriteString(t.pagination(q.Limit, q.Offset))

	return t.queryRecords(ctx, "search", sb.String(), args...)
}

func (t *tx) pagination(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT %s OFFSET %d", t.d.NoLimit, offset)
	}
	return ""
}

func (t *tx) queryRecords(ctx context.Context, op, query string, args ...any) ([]*record.Record, error) {
	rows, err := t.q.QueryContext(ctx, t.d.Rebind(query), args...)
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, op, err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, store.NewStorageError(t.d.Name, op, err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStorageError(t.d.Name, op, err)
	}
	return out, nil
}

func (t *tx) Catalogs(ctx context.Context, uid string) ([]string, error) {
	rows, err := t.q.QueryContext(ctx, t.d.Rebind(`SELECT catalog FROM catalog_entries WHERE uid = ? ORDER BY catalog`), uid)
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, "catalogs", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, store.NewStorageError(t.d.Name, "catalogs", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *tx) User(ctx context.Context, id string) (*record.User, error) {
	var payload string
	err := t.q.QueryRowContext(ctx, t.d.Rebind(`SELECT payload FROM users WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, "user", err)
	}
	var u record.User
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return nil, store.NewStorageError(t.d.Name, "decode_user", err)
	}
	return &u, nil
}

func (t *tx) ArchiveItem(ctx context.Context, id string) (*record.ArchiveItem, error) {
	items, err := t.queryItems(ctx, `SELECT payload FROM archive_items WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("archive item %s: %w", id, store.ErrNotFound)
	}
	return items[0], nil
}

// likeEscaper makes LIKE match query words literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (t *tx) SearchArchive(ctx context.Context, q store.ArchiveQuery) ([]*record.ArchiveItem, error) {
	var (
		conditions []string
		args       []any
	)
	if q.ItemType != "" {
		conditions = append(conditions, "item_type = ?")
		args = append(args, string(q.ItemType))
	}
	if q.ItemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, q.ItemID)
	}
	if q.ItemUID != "" {
		conditions = append(conditions, "item_uid = ?")
		args = append(args, q.ItemUID)
	}
	for _, word := range strings.Fields(strings.ToLower(q.Text)) {
		conditions = append(conditions, `LOWER(search_text) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(word)+"%")
	}

	var sb strings.Builder
	sb.WriteString("SELECT payload FROM archive_items")
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY item_modified_ns DESC, id")
	sb.WriteString(t.pagination(q.Limit, q.Offset))

	return t.queryItems(ctx, sb.String(), args...)
}

func (t *tx) queryItems(ctx context.Context, query string, args ...any) ([]*record.ArchiveItem, error) {
	rows, err := t.q.QueryContext(ctx, t.d.Rebind(query), args...)
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, "search_archive", err)
	}
	defer rows.Close()

	var out []*record.ArchiveItem
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, store.NewStorageError(t.d.Name, "search_archive", err)
		}
		var item record.ArchiveItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, store.NewStorageError(t.d.Name, "decode_archive_item", err)
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

func (t *tx) AuditEvents(ctx context.Context, uid string) ([]store.AuditEvent, error) {
	rows, err := t.q.QueryContext(ctx, t.d.Rebind(`SELECT uid, action, time_ns FROM audit_events WHERE uid = ? ORDER BY seq`), uid)
	if err != nil {
		return nil, store.NewStorageError(t.d.Name, "audit_events", err)
	}
	defer rows.Close()

	var out []store.AuditEvent
	for rows.Next() {
		var (
			ev store.AuditEvent
			ns int64
		)
		if err := rows.Scan(&ev.UID, &ev.Action, &ns); err != nil {
			return nil, store.NewStorageError(t.d.Name, "audit_events", err)
		}
		ev.Time = time.Unix(0, ns).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (t *tx) Put(ctx context.Context, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return store.NewStorageError(t.d.Name, "put", err)
	}
	if !rec.IsRoot() {
		if _, err := t.Get(ctx, rec.ParentUID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.NewStorageError(t.d.Name, "put",
					fmt.Errorf("record %s: %w: %s", rec.UID, store.ErrParentNotFound, rec.ParentUID))
			}
			return err
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return store.NewStorageError(t.d.Name, "encode_record", err)
	}

	var batchUID, primaryUID, parentSampleUID string
	if rec.Sample != nil {
		batchUID = rec.Sample.BatchUID
		primaryUID = rec.Sample.PrimaryUID
		parentSampleUID = rec.Sample.ParentSampleUID
	}

	_, err = t.exec(ctx, "put", `
		INSERT INTO records (uid, id, kind, path, parent_uid, created_ns, batch_uid, primary_uid, parent_sample_uid, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET
			id = excluded.id,
			kind = excluded.kind,
			path = excluded.path,
			parent_uid = excluded.parent_uid,
			created_ns = excluded.created_ns,
			batch_uid = excluded.batch_uid,
			primary_uid = excluded.primary_uid,
			parent_sample_uid = excluded.parent_sample_uid,
			payload = excluded.payload`,
		rec.UID, rec.ID, string(rec.Kind), rec.Path, rec.ParentUID, rec.Created.UnixNano(),
		batchUID, primaryUID, parentSampleUID, string(payload),
	)
	if err != nil {
		return err
	}

	if _, err := t.exec(ctx, "put_catalog", `DELETE FROM catalog_entries WHERE uid = ?`, rec.UID); err != nil {
		return err
	}
	for _, c := range store.CatalogsFor(rec.Kind) {
		if _, err := t.exec(ctx, "put_catalog", `INSERT INTO catalog_entries (catalog, uid) VALUES (?, ?)`, c, rec.UID); err != nil {
			return err
		}
	}

	if rec.Auditable {
		return t.audit(ctx, rec.UID, store.AuditModify)
	}
	return nil
}

func (t *tx) MarkForArchiving(ctx context.Context, uid string) error {
	rec, err := t.Get(ctx, uid)
	if err != nil {
		return err
	}
	rec.ForArchiving = true
	rec.Auditable = false

	payload, err := json.Marshal(rec)
	if err != nil {
		return store.NewStorageError(t.d.Name, "encode_record", err)
	}
	_, err = t.exec(ctx, "mark_for_archiving", `UPDATE records SET payload = ? WHERE uid = ?`, string(payload), uid)
	return err
}

func (t *tx) Uncatalog(ctx context.Context, uid string) error {
	_, err := t.exec(ctx, "uncatalog", `DELETE FROM catalog_entries WHERE uid = ?`, uid)
	return err
}

const subtreeQuery = `
	WITH RECURSIVE sub(uid) AS (
		SELECT uid FROM records WHERE uid = ?
		UNION ALL
		SELECT r.uid FROM records r JOIN sub ON r.parent_uid = sub.uid
	)
	SELECT records.payload FROM records JOIN sub ON records.uid = sub.uid`

func (t *tx) Delete(ctx context.Context, uid string) error {
	victims, err := t.queryRecords(ctx, "delete", subtreeQuery, uid)
	if err != nil {
		return err
	}
	if len(victims) == 0 {
		return store.NewStorageError(t.d.Name, "delete", fmt.Errorf("record %s: %w", uid, store.ErrNotFound))
	}
	for _, rec := range victims {
		if rec.Auditable {
			if err := t.audit(ctx, rec.UID, store.AuditDelete); err != nil {
				return err
			}
		}
		if _, err := t.exec(ctx, "delete", `DELETE FROM catalog_entries WHERE uid = ?`, rec.UID); err != nil {
			return err
		}
		if _, err := t.exec(ctx, "delete", `DELETE FROM records WHERE uid = ?`, rec.UID); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) CreateArchiveItem(ctx context.Context, item *record.ArchiveItem) error {
	existing, err := t.SearchArchive(ctx, store.ArchiveQuery{ItemUID: item.ItemUID, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return store.NewStorageError(t.d.Name, "create_archive_item",
			fmt.Errorf("%w: %s", store.ErrDuplicateArchiveItem, item.ItemUID))
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return store.NewStorageError(t.d.Name, "encode_archive_item", err)
	}
	_, err = t.exec(ctx, "create_archive_item", `
		INSERT INTO archive_items (id, item_uid, item_id, item_type, item_created_ns, item_modified_ns, search_text, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ItemUID, item.ItemID, string(item.ItemType),
		item.ItemCreated.UnixNano(), item.ItemModified.UnixNano(), item.SearchText, string(payload),
	)
	return err
}

func (t *tx) PutUser(ctx context.Context, u *record.User) error {
	if u.ID == "" {
		return store.NewStorageError(t.d.Name, "put_user", fmt.Errorf("user id is required"))
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return store.NewStorageError(t.d.Name, "encode_user", err)
	}
	_, err = t.exec(ctx, "put_user", `
		INSERT INTO users (id, payload) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
		u.ID, string(payload),
	)
	return err
}

func (t *tx) audit(ctx context.Context, uid, action string) error {
	_, err := t.exec(ctx, "audit", `INSERT INTO audit_events (uid, action, time_ns) VALUES (?, ?, ?)`,
		uid, action, t.now().UnixNano())
	return err
}

func decodeRecord(payload string) (*record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, store.NewStorageError("sql", "decode_record", err)
	}
	return &rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
