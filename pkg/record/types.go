package record

import (
	"time"
)

// Kind is the type tag of a record. The set of kinds is closed: every
// component that dispatches on kind handles exactly the values below.
type Kind string

const (
	// KindSample is a lab sample ("analysis request").
	KindSample Kind = "AnalysisRequest"
	// KindBatch groups samples.
	KindBatch Kind = "Batch"
	// KindWorksheet lays out analyses from several samples.
	KindWorksheet Kind = "Worksheet"
	// KindAnalysis is a single test result contained in a sample.
	KindAnalysis Kind = "Analysis"
	// KindClient is a container of samples and batches.
	KindClient Kind = "Client"
	// KindFolder is a generic container.
	KindFolder Kind = "Folder"
	// KindAuditLog is an audit snapshot object.
	KindAuditLog Kind = "AuditLog"
	// KindArchiveItem is the stub left behind by an archived record.
	KindArchiveItem Kind = "ArchiveItem"
)

// ArchivableKinds lists the kinds the candidate enumerator visits, in the
// order they must be visited: dependency-bearing kinds before containers.
var ArchivableKinds = []Kind{KindSample, KindBatch, KindWorksheet}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindSample, KindBatch, KindWorksheet, KindAnalysis,
		KindClient, KindFolder, KindAuditLog, KindArchiveItem:
		return true
	}
	return false
}

// Lifecycle states used by the default workflow table.
const (
	StateSampleDue    = "sample_due"
	StateReceived     = "sample_received"
	StateToBeVerified = "to_be_verified"
	StateVerified     = "verified"
	StatePublished    = "published"
	StateRejected     = "rejected"
	StateCancelled    = "cancelled"
	StateInvalid      = "invalid"
	StateRetracted    = "retracted"
	StateOpen         = "open"
	StateClosed       = "closed"
)

// Transition is one entry of a record's review history.
type Transition struct {
	Action string    `json:"action"`
	State  string    `json:"review_state"`
	Actor  string    `json:"actor,omitempty"`
	Time   time.Time `json:"time"`
}

// Record is any entity of the active store: an archivable business record
// or one of its structural descendants.
type Record struct {
	UID       string    `json:"uid"`
	ID        string    `json:"id"`
	Kind      Kind      `json:"portal_type"`
	Title     string    `json:"title,omitempty"`
	Path      string    `json:"path"`
	ParentUID string    `json:"parent_uid,omitempty"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
	State     string    `json:"review_state,omitempty"`
	Creator   string    `json:"creator,omitempty"`

	ReviewHistory []Transition `json:"review_history,omitempty"`

	// ForArchiving forces inclusion in exports regardless of kind.
	ForArchiving bool `json:"for_archiving,omitempty"`
	// Auditable records emit audit events when they change.
	Auditable bool `json:"auditable"`

	Sample    *SampleData    `json:"sample,omitempty"`
	Batch     *BatchData     `json:"batch,omitempty"`
	Worksheet *WorksheetData `json:"worksheet,omitempty"`
	Analysis  *AnalysisData  `json:"analysis,omitempty"`
}

// SampleData holds the fields specific to samples.
type SampleData struct {
	SampleType      string    `json:"sample_type,omitempty"`
	Client          string    `json:"client,omitempty"`
	Contact         string    `json:"contact,omitempty"`
	DateSampled     time.Time `json:"date_sampled,omitzero"`
	DatePublished   time.Time `json:"date_published,omitzero"`
	Verifiers       []string  `json:"verifiers,omitempty"`
	BatchUID        string    `json:"batch_uid,omitempty"`
	BatchID         string    `json:"batch_id,omitempty"`
	PrimaryUID      string    `json:"primary_uid,omitempty"`
	ParentSampleUID string    `json:"parent_sample_uid,omitempty"`
	RetestUID       string    `json:"retest_uid,omitempty"`
}

// BatchData holds the fields specific to batches.
type BatchData struct {
	Client        string    `json:"client,omitempty"`
	ClientBatchID string    `json:"client_batch_id,omitempty"`
	BatchDate     time.Time `json:"batch_date,omitzero"`
}

// WorksheetData holds the fields specific to worksheets.
type WorksheetData struct {
	Analyst string `json:"analyst,omitempty"`
	// Layout holds the UIDs of the samples whose analyses are assigned
	// to the worksheet, one per slot.
	Layout []string `json:"layout,omitempty"`
}

// AnalysisData holds the fields specific to analyses.
type AnalysisData struct {
	Keyword      string `json:"keyword"`
	Result       string `json:"result,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Hidden       bool   `json:"hidden,omitempty"`
	SubmittedBy  string `json:"submitted_by,omitempty"`
	WorksheetUID string `json:"worksheet_uid,omitempty"`
}

// User is an account known to the host store.
type User struct {
	ID       string `json:"id"`
	UserName string `json:"username,omitempty"`
	FullName string `json:"fullname,omitempty"`
	Email    string `json:"email,omitempty"`

	// ContactFullName and ContactEmail come from the lab contact linked to
	// the account and take precedence over the account properties.
	ContactFullName string `json:"contact_fullname,omitempty"`
	ContactEmail    string `json:"contact_email,omitempty"`
}

// DisplayName returns the full name to show for the user, preferring the
// linked contact.
func (u User) DisplayName() string {
	if u.ContactFullName != "" {
		return u.ContactFullName
	}
	return u.FullName
}

// DisplayEmail returns the email to show for the user, preferring the
// linked contact.
func (u User) DisplayEmail() string {
	if u.ContactEmail != "" {
		return u.ContactEmail
	}
	return u.Email
}

// ArchiveItem is the searchable stub that replaces an archived record.
type ArchiveItem struct {
	// ID is the stub's own identifier.
	ID string `json:"id"`

	Title        string    `json:"title"`
	ItemUID      string    `json:"item_uid"`
	ItemID       string    `json:"item_id"`
	ItemPath     string    `json:"item_path"`
	ItemType     Kind      `json:"item_type"`
	ItemCreated  time.Time `json:"item_created"`
	ItemModified time.Time `json:"item_modified"`
	ItemData     string    `json:"item_data"`
	ArchivePath  string    `json:"archive_path"`
	SearchText   string    `json:"search_text"`
	Created      time.Time `json:"created"`
}
