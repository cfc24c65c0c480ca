package sqlstore

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Tables shared by both dialects. Timestamps are stored as unix nanoseconds
// so ordering works the same everywhere; the full record travels in payload.
const tablesCommon = `
CREATE TABLE IF NOT EXISTS records (
    uid TEXT PRIMARY KEY,
    id TEXT NOT NULL,
    kind TEXT NOT NULL,
    path TEXT NOT NULL,
    parent_uid TEXT NOT NULL DEFAULT '',
    created_ns BIGINT NOT NULL,
    batch_uid TEXT NOT NULL DEFAULT '',
    primary_uid TEXT NOT NULL DEFAULT '',
    parent_sample_uid TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_kind_created ON records(kind, created_ns);
CREATE INDEX IF NOT EXISTS idx_records_parent ON records(parent_uid);
CREATE INDEX IF NOT EXISTS idx_records_batch ON records(batch_uid);
CREATE INDEX IF NOT EXISTS idx_records_primary ON records(primary_uid);
CREATE INDEX IF NOT EXISTS idx_records_parent_sample ON records(parent_sample_uid);

CREATE TABLE IF NOT EXISTS catalog_entries (
    catalog TEXT NOT NULL,
    uid TEXT NOT NULL,
    PRIMARY KEY (catalog, uid)
);

CREATE INDEX IF NOT EXISTS idx_catalog_entries_uid ON catalog_entries(uid);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS archive_items (
    id TEXT PRIMARY KEY,
    item_uid TEXT NOT NULL UNIQUE,
    item_id TEXT NOT NULL,
    item_type TEXT NOT NULL,
    item_created_ns BIGINT NOT NULL,
    item_modified_ns BIGINT NOT NULL,
    search_text TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_items_item_id ON archive_items(item_id);
CREATE INDEX IF NOT EXISTS idx_archive_items_item_type ON archive_items(item_type);
CREATE INDEX IF NOT EXISTS idx_archive_items_created ON archive_items(item_created_ns);
CREATE INDEX IF NOT EXISTS idx_archive_items_modified ON archive_items(item_modified_ns);
`

const sqliteSchema = tablesCommon + `
CREATE TABLE IF NOT EXISTS audit_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    uid TEXT NOT NULL,
    action TEXT NOT NULL,
    time_ns BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_uid ON audit_events(uid);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const postgresSchema = tablesCommon + `
CREATE TABLE IF NOT EXISTS audit_events (
    seq BIGSERIAL PRIMARY KEY,
    uid TEXT NOT NULL,
    action TEXT NOT NULL,
    time_ns BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_uid ON audit_events(uid);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// InsertSchemaVersion records the schema version if not already present.
const InsertSchemaVersion = `INSERT INTO schema_version (version) VALUES (?) ON CONFLICT (version) DO NOTHING`

// GetSchemaVersion returns the latest schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`
