package domain

import (
	"strings"
	"time"
)

// JournalDetail records one attribute change captured by a journal.
type JournalDetail struct {
	Property string `json:"property"`
	PropKey  string `json:"prop_key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Journal is the change note attached to an issue update.
type Journal struct {
	ID        int64           `json:"id"`
	IssueID   int64           `json:"issue_id"`
	UserID    int64           `json:"user_id"`
	Notes     string          `json:"notes"`
	Details   []JournalDetail `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Empty reports whether the journal carries neither notes nor detail rows.
// Empty journals are not persisted and never trigger update notifications.
func (j Journal) Empty() bool {
	return len(j.Details) == 0 && strings.TrimSpace(j.Notes) == ""
}

// AddDetail appends one attribute change when old and new differ.
func (j *Journal) AddDetail(property, propKey, oldValue, newValue string) {
	if oldValue == newValue {
		return
	}
	j.Details = append(j.Details, JournalDetail{
		Property: property,
		PropKey:  propKey,
		OldValue: oldValue,
		NewValue: newValue,
	})
}
