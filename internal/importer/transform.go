package importer

import (
	"context"
	"errors"
	"strconv"

	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/repository"
	"github.com/rpattn/issueimport/pkg/validator"
)

// candidate is the in-progress representation of one row's target issue.
// Built by the transformer, mutated by the upsert engine and relation
// linker, then persisted.
type candidate struct {
	issue   domain.Issue
	project domain.Project

	status   *domain.Status
	priority *domain.Priority

	isUpdate    bool
	original    domain.Issue
	uniqueValue string
	notes       string
	journal     *domain.Journal

	watcherIDs []int64

	// coerceErrors collects attribute coercion problems; they surface as
	// validation failures at persist time, one message per attribute.
	coerceErrors []validator.ValidationError
}

// rowRefs carries the per-row resolved foreign references.
type rowRefs struct {
	tracker      *domain.Tracker
	status       *domain.Status
	priority     *domain.Priority
	authorID     int64
	categoryID   *int64
	assignedToID *int64
	versionID    *int64
}

// RowTransformer converts one mapped row into a candidate issue attribute
// set, applying type coercion and reference resolution.
type RowTransformer struct {
	mapper     *FieldMapper
	resolver   *Resolver
	projects   repository.ProjectRepository
	categories repository.CategoryRepository
	lookups    repository.LookupRepository
	cfg        domain.ImportConfiguration
}

// NewRowTransformer wires a transformer for one batch.
func NewRowTransformer(
	mapper *FieldMapper,
	resolver *Resolver,
	projects repository.ProjectRepository,
	categories repository.CategoryRepository,
	lookups repository.LookupRepository,
	cfg domain.ImportConfiguration,
) *RowTransformer {
	return &RowTransformer{
		mapper:     mapper,
		resolver:   resolver,
		projects:   projects,
		categories: categories,
		lookups:    lookups,
		cfg:        cfg,
	}
}

// Project resolves the row's target project: a mapped project column wins
// when it names an existing project, else the batch project applies.
func (t *RowTransformer) Project(ctx context.Context, row SourceRow, batchProject domain.Project) (domain.Project, error) {
	name := t.mapper.Fetch("project", row)
	if name == "" {
		return batchProject, nil
	}
	project, err := t.projects.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return batchProject, nil
		}
		return domain.Project{}, err
	}
	return project, nil
}

// ResolveReferences resolves the row's foreign references. An unresolvable
// user or version fails the row; status, priority, tracker and category
// fall back instead of failing.
func (t *RowTransformer) ResolveReferences(ctx context.Context, row SourceRow, project domain.Project, report *BatchReport) (rowRefs, error) {
	refs := rowRefs{authorID: t.cfg.ActingUserID}

	if name := t.mapper.Fetch("tracker", row); name != "" {
		tracker, err := t.lookups.TrackerByName(ctx, name)
		if err == nil {
			refs.tracker = &tracker
		} else if !errors.Is(err, repository.ErrNotFound) {
			return refs, err
		}
	}

	if name := t.mapper.Fetch("status", row); name != "" {
		status, err := t.lookups.StatusByName(ctx, name)
		if err == nil {
			refs.status = &status
		} else if !errors.Is(err, repository.ErrNotFound) {
			return refs, err
		}
	}

	if name := t.mapper.Fetch("priority", row); name != "" {
		priority, err := t.lookups.PriorityByName(ctx, name)
		if err == nil {
			refs.priority = &priority
		} else if !errors.Is(err, repository.ErrNotFound) {
			return refs, err
		}
	}

	if login := t.mapper.Fetch("author", row); login != "" {
		authorID, err := t.resolver.UserByLogin(ctx, login)
		if err != nil {
			return refs, t.referenceFailure(row, report, err)
		}
		refs.authorID = authorID
	}

	if login := t.mapper.Fetch("assigned_to", row); login != "" {
		assignedToID, err := t.resolver.UserByLogin(ctx, login)
		if err != nil {
			return refs, t.referenceFailure(row, report, err)
		}
		refs.assignedToID = &assignedToID
	}

	if name := t.mapper.Fetch("fixed_version", row); name != "" {
		versionID, err := t.resolver.VersionByName(ctx, project.ID, name, t.cfg.AddVersions)
		if err != nil {
			return refs, t.referenceFailure(row, report, err)
		}
		refs.versionID = &versionID
	}

	categoryID, err := t.resolveCategory(ctx, row, project)
	if err != nil {
		return refs, err
	}
	refs.categoryID = categoryID

	return refs, nil
}

// resolveCategory finds the named category, creating it first when
// auto-create-categories allows. A missing category never fails the row.
func (t *RowTransformer) resolveCategory(ctx context.Context, row SourceRow, project domain.Project) (*int64, error) {
	name := t.mapper.Fetch("category", row)
	if name == "" {
		return nil, nil
	}

	category, err := t.categories.FindByName(ctx, project.ID, name)
	if err == nil {
		return &category.ID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if !t.cfg.AddCategories {
		return nil, nil
	}

	category, err = t.categories.Create(ctx, domain.Category{ProjectID: project.ID, Name: name})
	if err != nil {
		return nil, err
	}
	return &category.ID, nil
}

func (t *RowTransformer) referenceFailure(row SourceRow, report *BatchReport, err error) error {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		ordinal := report.FailRow(row)
		report.Messagef("Warning: When adding issue %d below, the %s %s was not found",
			ordinal, notFound.Kind, notFound.Key)
		return errRowAborted
	}
	return err
}

// Assign applies the row's attribute values onto the candidate issue.
// Status and priority retain the existing value when resolution found
// nothing for the mapped raw value.
func (t *RowTransformer) Assign(cand *candidate, refs rowRefs, row SourceRow) {
	issue := &cand.issue

	if refs.tracker != nil {
		issue.TrackerID = refs.tracker.ID
	}
	if refs.status != nil {
		issue.StatusID = refs.status.ID
	}
	if refs.priority != nil {
		issue.PriorityID = refs.priority.ID
	}
	cand.status = refs.status
	cand.priority = refs.priority

	if subject := t.mapper.Fetch("subject", row); subject != "" {
		issue.Subject = subject
	}
	if description := t.mapper.Fetch("description", row); description != "" {
		issue.Description = description
	}
	if refs.categoryID != nil {
		issue.CategoryID = refs.categoryID
	}
	if refs.assignedToID != nil {
		issue.AssignedToID = refs.assignedToID
	}
	if refs.versionID != nil {
		issue.FixedVersionID = refs.versionID
	}

	if raw := t.mapper.Fetch("start_date", row); raw != "" {
		if date, err := parseDate(raw); err == nil {
			issue.StartDate = &date
		} else {
			cand.coerceErrors = append(cand.coerceErrors, validator.ValidationError{
				Field: "start_date", Message: err.Error(), Value: raw,
			})
		}
	}

	// A mapped but blank due date clears the field. This is intentional and
	// distinct from "no mapping", which leaves it untouched.
	if t.mapper.Mapped("due_date") {
		if raw := t.mapper.Fetch("due_date", row); raw == "" {
			issue.DueDate = nil
		} else if date, err := parseDate(raw); err == nil {
			issue.DueDate = &date
		} else {
			cand.coerceErrors = append(cand.coerceErrors, validator.ValidationError{
				Field: "due_date", Message: err.Error(), Value: raw,
			})
		}
	}

	if raw := t.mapper.Fetch("done_ratio", row); raw != "" {
		if ratio, err := parseDoneRatio(raw); err == nil {
			issue.DoneRatio = &ratio
		} else {
			cand.coerceErrors = append(cand.coerceErrors, validator.ValidationError{
				Field: "done_ratio", Message: err.Error(), Value: raw,
			})
		}
	}

	if raw := t.mapper.Fetch("estimated_hours", row); raw != "" {
		if hours, err := parseEstimatedHours(raw); err == nil {
			issue.EstimatedHours = &hours
		} else {
			cand.coerceErrors = append(cand.coerceErrors, validator.ValidationError{
				Field: "estimated_hours", Message: err.Error(), Value: raw,
			})
		}
	}

	cand.notes = row.Value(t.cfg.NotesColumn)
	cand.uniqueValue = row.Value(t.cfg.UniqueColumn)
}

// ApplyCustomFields resolves every mapped custom field. A single field's
// resolution failure registers the row once and appends one message per
// failed field, but remaining fields still attempt resolution; the row is
// aborted only after all fields were tried.
func (t *RowTransformer) ApplyCustomFields(ctx context.Context, cand *candidate, row SourceRow, fields []domain.CustomField, report *BatchReport) error {
	failed := false

	for _, field := range fields {
		raw := t.mapper.Fetch(field.Name, row)
		if raw == "" {
			continue
		}

		if field.Multiple {
			values, err := t.multiValue(ctx, cand.project, field, raw)
			if err != nil {
				t.customFieldFailure(row, report, field, raw)
				failed = true
				continue
			}
			cand.issue.SetCustomFieldValue(field.ID, values)
			continue
		}

		value, err := t.singleValue(ctx, cand.project, field, raw)
		if err != nil {
			t.customFieldFailure(row, report, field, raw)
			failed = true
			continue
		}
		cand.issue.SetCustomFieldValue(field.ID, []string{value})
	}

	if failed {
		return errRowAborted
	}
	return nil
}

func (t *RowTransformer) customFieldFailure(row SourceRow, report *BatchReport, field domain.CustomField, raw string) {
	ordinal := report.FailRow(row)
	report.Messagef("Warning: When trying to set custom field %s on issue %d below, value %s was invalid",
		field.Name, ordinal, raw)
}

func (t *RowTransformer) singleValue(ctx context.Context, project domain.Project, field domain.CustomField, raw string) (string, error) {
	switch field.Format {
	case domain.FormatUser:
		userID, err := t.resolver.UserByLogin(ctx, raw)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(userID, 10), nil
	case domain.FormatVersion:
		versionID, err := t.resolver.VersionByName(ctx, project.ID, raw, t.cfg.AddVersions)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(versionID, 10), nil
	case domain.FormatDate:
		date, err := parseDate(raw)
		if err != nil {
			return "", err
		}
		return date.Format("2006-01-02"), nil
	default:
		return raw, nil
	}
}

func (t *RowTransformer) multiValue(ctx context.Context, project domain.Project, field domain.CustomField, raw string) ([]string, error) {
	tokens := splitList(raw)
	if field.Format != domain.FormatVersion {
		return tokens, nil
	}

	values := make([]string, 0, len(tokens))
	for _, token := range tokens {
		versionID, err := t.resolver.VersionByName(ctx, project.ID, token, t.cfg.AddVersions)
		if err != nil {
			return nil, err
		}
		values = append(values, strconv.FormatInt(versionID, 10))
	}
	return values, nil
}

// ResolveWatchers resolves the mapped watcher logins. An unknown watcher
// registers the row once, appends one message per unknown login, and aborts
// the row after every login was tried.
func (t *RowTransformer) ResolveWatchers(ctx context.Context, cand *candidate, row SourceRow, report *BatchReport) error {
	raw := t.mapper.Fetch("watchers", row)
	if raw == "" {
		return nil
	}

	failed := false
	for _, login := range splitList(raw) {
		userID, err := t.resolver.UserByLogin(ctx, login)
		if err != nil {
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
			ordinal := report.FailRow(row)
			report.Messagef("Warning: When trying to add watchers on issue %d below, User %s was not found",
				ordinal, login)
			failed = true
			continue
		}
		cand.watcherIDs = append(cand.watcherIDs, userID)
	}

	if failed {
		return errRowAborted
	}
	return nil
}

// newCandidate builds the initial candidate for a row on the create path.
func (t *RowTransformer) newCandidate(row SourceRow, project domain.Project, refs rowRefs, report *BatchReport) (*candidate, error) {
	trackerID := t.cfg.DefaultTrackerID
	if refs.tracker != nil {
		trackerID = refs.tracker.ID
	}

	issue := domain.NewIssue(project.ID, trackerID, refs.authorID)
	issue.StatusID = t.cfg.DefaultStatusID
	issue.PriorityID = t.cfg.DefaultPriorityID

	if t.cfg.UseIssueID {
		raw := t.mapper.Fetch("id", row)
		if raw != "" {
			id, err := parseIssueID(raw)
			if err != nil {
				ordinal := report.FailRow(row)
				report.Messagef("Warning: The following data-validation errors occurred on issue %d in the list below", ordinal)
				report.Messagef("Error: id %s is not a valid issue id", raw)
				return nil, errRowAborted
			}
			issue.ID = id
		}
	}

	return &candidate{issue: issue, project: project}, nil
}
