package domain

import (
	"time"
)

// Issue represents one record in the tracked-issue store.
type Issue struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	TrackerID      int64      `json:"tracker_id"`
	AuthorID       int64      `json:"author_id"`
	StatusID       int64      `json:"status_id"`
	PriorityID     int64      `json:"priority_id"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	AssignedToID   *int64     `json:"assigned_to_id,omitempty"`
	FixedVersionID *int64     `json:"fixed_version_id,omitempty"`
	ParentIssueID  *int64     `json:"parent_issue_id,omitempty"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	DoneRatio      *int       `json:"done_ratio,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`

	// CustomFieldValues maps a custom field id to its stored values.
	// Single-valued fields hold exactly one element.
	CustomFieldValues map[int64][]string `json:"custom_field_values,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIssue creates an unsaved issue for the given project, tracker and author.
func NewIssue(projectID, trackerID, authorID int64) Issue {
	return Issue{
		ProjectID:         projectID,
		TrackerID:         trackerID,
		AuthorID:          authorID,
		CustomFieldValues: map[int64][]string{},
	}
}

// SetCustomFieldValue replaces the stored values for one custom field.
func (i *Issue) SetCustomFieldValue(fieldID int64, values []string) {
	if i.CustomFieldValues == nil {
		i.CustomFieldValues = map[int64][]string{}
	}
	i.CustomFieldValues[fieldID] = values
}
