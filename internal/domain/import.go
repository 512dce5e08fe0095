package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportConfiguration is the immutable per-batch configuration: what maps to
// what, which column identifies existing issues, and the policy flags.
// Created once when a batch starts and never mutated during the run.
type ImportConfiguration struct {
	ProjectID int64 `json:"project_id"`

	// Source text settings, carried over from the staging record.
	Encoding  string `json:"encoding"`
	Delimiter rune   `json:"delimiter"`
	Quote     rune   `json:"quote"`

	// Mapping is target field identifier -> source column name.
	Mapping map[string]string `json:"mapping"`

	// UniqueColumn is the source column whose mapped field identifies
	// existing issues for updates and intra-batch references. Empty when
	// no unique field was designated.
	UniqueColumn string `json:"unique_column"`

	// NotesColumn holds free-text change notes attached as a journal on
	// the update path.
	NotesColumn string `json:"notes_column"`

	// Defaults applied to new issues when the batch maps no column for
	// the attribute, or the row's value resolves to nothing.
	DefaultTrackerID  int64 `json:"default_tracker_id"`
	DefaultStatusID   int64 `json:"default_status_id"`
	DefaultPriorityID int64 `json:"default_priority_id"`

	ActingUserID int64 `json:"acting_user_id"`

	UpdateExisting     bool `json:"update_existing"`
	UpdateOtherProject bool `json:"update_other_project"`
	SendNotifications  bool `json:"send_notifications"`
	AddCategories      bool `json:"add_categories"`
	AddVersions        bool `json:"add_versions"`
	UseIssueID         bool `json:"use_issue_id"`
	IgnoreNonExist     bool `json:"ignore_non_exist"`
	UseAnonymous       bool `json:"use_anonymous"`
}

// ImportInProgress is the transient staging record for one user's pending
// import. At most one exists per user; starting a new import replaces it.
type ImportInProgress struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	FileName  string    `json:"file_name"`
	Encoding  string    `json:"encoding"`
	Delimiter rune      `json:"delimiter"`
	Quote     rune      `json:"quote"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Token identifies this staging record across the two-step flow. A stale
// token means the user started another import in between.
func (iip ImportInProgress) Token() string {
	return iip.CreatedAt.UTC().Format("2006-01-02 15:04:05")
}

// ImportLogEntry captures a row-level failure for observability, persisted
// beyond the batch that produced it.
type ImportLogEntry struct {
	ID        int64     `json:"id"`
	BatchID   uuid.UUID `json:"batch_id"`
	ProjectID int64     `json:"project_id"`
	FileName  string    `json:"file_name"`
	RowNumber *int      `json:"row_number,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
