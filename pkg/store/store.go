package store

import (
	"context"
	"time"

	"mercator-hq/strata/pkg/record"
)

// Catalog names. Every record is registered in the uid and portal catalogs,
// plus the listing catalog of its kind.
const (
	CatalogUID       = "uid_catalog"
	CatalogPortal    = "portal_catalog"
	CatalogSamples   = "sample_listing"
	CatalogAnalyses  = "analysis_listing"
	CatalogWorksheet = "worksheet_listing"
	CatalogArchive   = "archive_catalog"
)

// CatalogsFor returns the catalogs a record of the given kind is indexed in.
func CatalogsFor(kind record.Kind) []string {
	catalogs := []string{CatalogUID, CatalogPortal}
	switch kind {
	case record.KindSample:
		catalogs = append(catalogs, CatalogSamples)
	case record.KindAnalysis:
		catalogs = append(catalogs, CatalogAnalyses)
	case record.KindWorksheet:
		catalogs = append(catalogs, CatalogWorksheet)
	case record.KindArchiveItem:
		catalogs = []string{CatalogArchive}
	}
	return catalogs
}

// Query selects records from the active store.
type Query struct {
	// Kinds restricts results to the given kinds. Empty means any kind.
	Kinds []record.Kind

	// UIDs restricts results to the given UIDs.
	UIDs []string

	// BatchUID matches samples assigned to the batch.
	BatchUID string

	// PrimaryUID matches secondary samples of the given primary.
	PrimaryUID string

	// ParentSampleUID matches partitions (descendants) of the given sample.
	ParentSampleUID string

	// CreatedBefore matches records created strictly before the time.
	CreatedBefore time.Time

	// Descending sorts by creation date, newest first. Default is oldest first.
	Descending bool

	// Limit caps the number of results. 0 means no limit.
	Limit int

	// Offset skips the first results.
	Offset int
}

// ArchiveQuery selects stubs from the archive catalog. Results are sorted by
// item modification date, newest first.
type ArchiveQuery struct {
	// Text matches stubs whose search text contains every word.
	Text string

	ItemType record.Kind
	ItemID   string
	ItemUID  string

	Limit  int
	Offset int
}

// AuditEvent is a change recorded for an auditable record.
type AuditEvent struct {
	UID    string    `json:"uid"`
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
}

// Audit actions.
const (
	AuditModify = "modify"
	AuditDelete = "delete"
)

// Reader gives read access to the active store.
type Reader interface {
	// Get returns the record with the given UID or ErrNotFound.
	Get(ctx context.Context, uid string) (*record.Record, error)

	// Children returns the records directly contained in uid, sorted by id.
	Children(ctx context.Context, uid string) ([]*record.Record, error)

	// Search returns records matching the query.
	Search(ctx context.Context, q Query) ([]*record.Record, error)

	// Catalogs returns the catalogs the record is currently indexed in.
	Catalogs(ctx context.Context, uid string) ([]string, error)

	// User returns the user with the given id or ErrNotFound.
	User(ctx context.Context, id string) (*record.User, error)

	// ArchiveItem returns the stub with the given id or ErrNotFound.
	ArchiveItem(ctx context.Context, id string) (*record.ArchiveItem, error)

	// SearchArchive returns stubs matching the query.
	SearchArchive(ctx context.Context, q ArchiveQuery) ([]*record.ArchiveItem, error)

	// AuditEvents returns the audit trail recorded for uid.
	AuditEvents(ctx context.Context, uid string) ([]AuditEvent, error)
}

// Tx is a read-write view bound to one transaction.
type Tx interface {
	Reader

	// Put creates or updates a record and indexes it in its catalogs.
	// The parent must exist unless the record is a root.
	Put(ctx context.Context, rec *record.Record) error

	// MarkForArchiving flags the record as being archived and removes its
	// auditable capability.
	MarkForArchiving(ctx context.Context, uid string) error

	// Uncatalog removes the record from every catalog it is indexed in.
	Uncatalog(ctx context.Context, uid string) error

	// Delete removes the record and its whole subtree from its parent.
	Delete(ctx context.Context, uid string) error

	// CreateArchiveItem stores a stub. A second stub for the same item UID
	// is rejected with ErrDuplicateArchiveItem.
	CreateArchiveItem(ctx context.Context, item *record.ArchiveItem) error

	// PutUser creates or updates a user.
	PutUser(ctx context.Context, u *record.User) error
}

// Store is the transactional active store.
type Store interface {
	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(Reader) error) error

	// RunInTransaction runs fn in a single transaction. Changes are
	// committed only if fn returns nil.
	RunInTransaction(ctx context.Context, fn func(Tx) error) error

	// Close releases the store's resources.
	Close() error
}
