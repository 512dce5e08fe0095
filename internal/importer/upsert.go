package importer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/notification"
	"github.com/rpattn/issueimport/internal/repository"
	"github.com/rpattn/issueimport/pkg/validator"
)

// UpsertEngine decides create-vs-update per row, applies the
// project/status policy, persists the candidate and records the outcome.
type UpsertEngine struct {
	issues     repository.IssueRepository
	lookups    repository.LookupRepository
	resolver   *Resolver
	cache      *ResolutionCache
	validator  *validator.IssueValidator
	dispatcher notification.Dispatcher
	cfg        domain.ImportConfiguration
}

// NewUpsertEngine wires an engine for one batch.
func NewUpsertEngine(
	issues repository.IssueRepository,
	lookups repository.LookupRepository,
	resolver *Resolver,
	cache *ResolutionCache,
	dispatcher notification.Dispatcher,
	cfg domain.ImportConfiguration,
) *UpsertEngine {
	return &UpsertEngine{
		issues:     issues,
		lookups:    lookups,
		resolver:   resolver,
		cache:      cache,
		validator:  validator.NewIssueValidator(),
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// ResolveTarget switches the candidate onto the update path when the batch
// updates existing issues: the issue identified by the row's unique-field
// value replaces the freshly built candidate, subject to the cross-project
// and closed-issue policies, and a change note is prepared.
func (e *UpsertEngine) ResolveTarget(ctx context.Context, cand *candidate, refs rowRefs, row SourceRow, uniqueAttr string, report *BatchReport) error {
	if !e.cfg.UpdateExisting {
		return nil
	}

	value := row.Value(e.cfg.UniqueColumn)
	existing, err := e.resolver.IssueByUniqueValue(ctx, uniqueAttr, value, row, report)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			if e.cfg.IgnoreNonExist {
				report.RowSkipped()
				return errRowAborted
			}
			ordinal := report.FailRow(row)
			report.Messagef("Warning: Could not update issue %d below, no match for the value %s were found",
				ordinal, value)
			return errRowAborted
		}
		var ambiguous *AmbiguousError
		if errors.As(err, &ambiguous) {
			// The resolver registered the row and its message already.
			report.Messagef("Warning: Could not update issue %d below, multiple matches for the value %s were found",
				report.FailRow(row), value)
			return errRowAborted
		}
		return err
	}

	if existing.ProjectID != e.cfg.ProjectID && !e.cfg.UpdateOtherProject {
		report.RowSkipped()
		return errRowAborted
	}

	existingStatus, err := e.lookups.StatusByID(ctx, existing.StatusID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	// Closed issues are only mutable through an explicit reopening status.
	if existingStatus.Closed && (refs.status == nil || refs.status.Closed) {
		report.RowSkipped()
		return errRowAborted
	}

	cand.issue = existing
	cand.original = existing
	cand.isUpdate = true
	cand.journal = &domain.Journal{IssueID: existing.ID, UserID: refs.authorID}
	return nil
}

// Persist writes the candidate. Validation failures, including an id
// collision on an explicitly supplied identifier, fail the row with one
// message per invalid attribute; success registers the intra-batch cache
// entry, bumps the affected-project count and dispatches notifications.
func (e *UpsertEngine) Persist(ctx context.Context, cand *candidate, row SourceRow, report *BatchReport) error {
	attributeErrors := append([]validator.ValidationError{}, cand.coerceErrors...)
	result := e.validator.Validate(cand.issue)
	attributeErrors = append(attributeErrors, result.Errors...)

	if len(attributeErrors) == 0 {
		var persisted domain.Issue
		var err error
		if cand.isUpdate {
			persisted, err = e.issues.Update(ctx, cand.issue)
		} else {
			persisted, err = e.issues.Create(ctx, cand.issue)
		}
		switch {
		case err == nil:
			cand.issue = persisted
		case errors.Is(err, repository.ErrDuplicateID):
			report.FailRow(row)
			report.Messagef("This issue id has already been taken.")
			return errRowAborted
		default:
			return err
		}
	}

	if len(attributeErrors) > 0 {
		ordinal := report.FailRow(row)
		report.Messagef("Warning: The following data-validation errors occurred on issue %d in the list below", ordinal)
		for _, attrErr := range attributeErrors {
			report.Messagef("Error: %s %s", attrErr.Field, attrErr.Message)
		}
		return errRowAborted
	}

	if e.cfg.UniqueColumn != "" && cand.uniqueValue != "" {
		e.cache.StoreIssue(cand.uniqueValue, cand.issue)
	}
	report.TouchProject(cand.project.Name)

	if len(cand.watcherIDs) > 0 {
		watching := map[int64]bool{}
		if cand.isUpdate {
			existing, err := e.issues.ListWatchers(ctx, cand.issue.ID)
			if err != nil {
				return err
			}
			for _, id := range existing {
				watching[id] = true
			}
		}
		for _, watcherID := range cand.watcherIDs {
			if watching[watcherID] {
				continue
			}
			if err := e.issues.AddWatcher(ctx, cand.issue.ID, watcherID); err != nil {
				return err
			}
		}
	}

	if cand.isUpdate && cand.journal != nil {
		cand.journal.IssueID = cand.issue.ID
		cand.journal.Notes = cand.notes
		cand.journal.Details = changeDetails(cand.original, cand.issue)
		if !cand.journal.Empty() {
			saved, err := e.issues.AddJournal(ctx, *cand.journal)
			if err != nil {
				return err
			}
			cand.journal = &saved
		}
	}

	if e.cfg.SendNotifications {
		if cand.isUpdate {
			if cand.journal != nil && !cand.journal.Empty() {
				e.dispatcher.IssueUpdated(ctx, *cand.journal)
			}
		} else {
			e.dispatcher.IssueAdded(ctx, cand.issue)
		}
	}

	return nil
}

// changeDetails diffs the issue before and after the row's assignments into
// journal detail entries, one per changed attribute.
func changeDetails(before, after domain.Issue) []domain.JournalDetail {
	var journal domain.Journal
	journal.AddDetail("attr", "project_id", formatID(before.ProjectID), formatID(after.ProjectID))
	journal.AddDetail("attr", "tracker_id", formatID(before.TrackerID), formatID(after.TrackerID))
	journal.AddDetail("attr", "status_id", formatID(before.StatusID), formatID(after.StatusID))
	journal.AddDetail("attr", "priority_id", formatID(before.PriorityID), formatID(after.PriorityID))
	journal.AddDetail("attr", "category_id", formatIDPtr(before.CategoryID), formatIDPtr(after.CategoryID))
	journal.AddDetail("attr", "assigned_to_id", formatIDPtr(before.AssignedToID), formatIDPtr(after.AssignedToID))
	journal.AddDetail("attr", "fixed_version_id", formatIDPtr(before.FixedVersionID), formatIDPtr(after.FixedVersionID))
	journal.AddDetail("attr", "parent_issue_id", formatIDPtr(before.ParentIssueID), formatIDPtr(after.ParentIssueID))
	journal.AddDetail("attr", "subject", before.Subject, after.Subject)
	journal.AddDetail("attr", "description", before.Description, after.Description)
	journal.AddDetail("attr", "start_date", formatDatePtr(before.StartDate), formatDatePtr(after.StartDate))
	journal.AddDetail("attr", "due_date", formatDatePtr(before.DueDate), formatDatePtr(after.DueDate))
	journal.AddDetail("attr", "done_ratio", formatIntPtr(before.DoneRatio), formatIntPtr(after.DoneRatio))
	journal.AddDetail("attr", "estimated_hours", formatFloatPtr(before.EstimatedHours), formatFloatPtr(after.EstimatedHours))
	return journal.Details
}

func formatID(v int64) string { return strconv.FormatInt(v, 10) }

func formatIDPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatDatePtr(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
