package validator

import (
	"fmt"

	"github.com/rpattn/issueimport/internal/domain"
)

// IssueValidator checks a candidate issue before it is persisted.
type IssueValidator struct {
	SubjectMaxLength int
}

// NewIssueValidator creates a validator with the store's default limits.
func NewIssueValidator() *IssueValidator {
	return &IssueValidator{SubjectMaxLength: 255}
}

// ValidationError represents a validation error on one attribute.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validating one issue.
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

func (r *ValidationResult) addError(field, message string, value any) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Value: value})
}

// Validate checks the attribute-level invariants the record store enforces.
// One error is produced per invalid attribute.
func (v *IssueValidator) Validate(issue domain.Issue) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}}

	if issue.Subject == "" {
		result.addError("subject", "cannot be blank", nil)
	} else if v.SubjectMaxLength > 0 && len(issue.Subject) > v.SubjectMaxLength {
		result.addError("subject", fmt.Sprintf("is too long (maximum is %d characters)", v.SubjectMaxLength), issue.Subject)
	}

	if issue.ProjectID == 0 {
		result.addError("project", "cannot be blank", nil)
	}
	if issue.TrackerID == 0 {
		result.addError("tracker", "cannot be blank", nil)
	}
	if issue.AuthorID == 0 {
		result.addError("author", "cannot be blank", nil)
	}
	if issue.StatusID == 0 {
		result.addError("status", "cannot be blank", nil)
	}
	if issue.PriorityID == 0 {
		result.addError("priority", "cannot be blank", nil)
	}

	if issue.DoneRatio != nil && (*issue.DoneRatio < 0 || *issue.DoneRatio > 100) {
		result.addError("done_ratio", "is not included in the range 0..100", *issue.DoneRatio)
	}
	if issue.EstimatedHours != nil && *issue.EstimatedHours < 0 {
		result.addError("estimated_hours", "must be greater than or equal to 0", *issue.EstimatedHours)
	}
	if issue.StartDate != nil && issue.DueDate != nil && issue.DueDate.Before(*issue.StartDate) {
		result.addError("due_date", "must be greater than start date", issue.DueDate.Format("2006-01-02"))
	}
	if issue.ParentIssueID != nil && issue.ID != 0 && *issue.ParentIssueID == issue.ID {
		result.addError("parent_issue", "cannot be the issue itself", *issue.ParentIssueID)
	}

	return result
}
