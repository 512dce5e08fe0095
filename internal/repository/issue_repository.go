package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/issueimport/internal/domain"
)

// issueColumns is the select list shared by every issue query.
const issueColumns = `i.id, i.project_id, i.tracker_id, i.author_id, i.status_id, i.priority_id,
	i.category_id, i.assigned_to_id, i.fixed_version_id, i.parent_issue_id,
	i.subject, i.description, i.start_date, i.due_date, i.done_ratio, i.estimated_hours,
	i.created_at, i.updated_at`

// uniqueFieldColumns whitelists the built-in attributes a unique-field query
// may filter on. Custom fields go through the cf_<id> path instead.
var uniqueFieldColumns = map[string]string{
	"subject":     "i.subject",
	"description": "i.description",
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository wires an issue repository backed by pgxpool.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

func (r *issueRepository) GetByID(ctx context.Context, id int64) (domain.Issue, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+issueColumns+` FROM issues i WHERE i.id = $1`, id)

	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Issue{}, ErrNotFound
		}
		return domain.Issue{}, fmt.Errorf("failed to get issue: %w", err)
	}

	if err := r.loadCustomValues(ctx, &issue); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

func (r *issueRepository) FindByUniqueField(ctx context.Context, field string, value string, limit int) ([]domain.Issue, error) {
	if limit <= 0 {
		limit = 2
	}

	var query string
	var args []any
	if fieldID, ok := customFieldID(field); ok {
		query = `SELECT ` + issueColumns + `
			FROM issues i
			JOIN statuses s ON s.id = i.status_id
			JOIN custom_values cv ON cv.issue_id = i.id
			WHERE s.is_closed = FALSE AND cv.custom_field_id = $1 AND cv.value = $2
			ORDER BY i.id
			LIMIT $3`
		args = []any{fieldID, value, limit}
	} else {
		column, ok := uniqueFieldColumns[field]
		if !ok {
			return nil, fmt.Errorf("unsupported unique field %q", field)
		}
		query = `SELECT ` + issueColumns + `
			FROM issues i
			JOIN statuses s ON s.id = i.status_id
			WHERE s.is_closed = FALSE AND ` + column + ` = $1
			ORDER BY i.id
			LIMIT $2`
		args = []any{value, limit}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues by %s: %w", field, err)
	}
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		issue, scanErr := scanIssue(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", scanErr)
		}
		issues = append(issues, issue)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", rowsErr)
	}

	for idx := range issues {
		if err := r.loadCustomValues(ctx, &issues[idx]); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

func (r *issueRepository) Create(ctx context.Context, issue domain.Issue) (domain.Issue, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var row pgx.Row
	if issue.ID != 0 {
		row = tx.QueryRow(ctx,
			`INSERT INTO issues (id, project_id, tracker_id, author_id, status_id, priority_id,
				category_id, assigned_to_id, fixed_version_id, parent_issue_id,
				subject, description, start_date, due_date, done_ratio, estimated_hours)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 RETURNING `+selfColumns(issueColumns),
			issue.ID, issue.ProjectID, issue.TrackerID, issue.AuthorID, issue.StatusID, issue.PriorityID,
			issue.CategoryID, issue.AssignedToID, issue.FixedVersionID, issue.ParentIssueID,
			issue.Subject, issue.Description, issue.StartDate, issue.DueDate, issue.DoneRatio, issue.EstimatedHours)
	} else {
		row = tx.QueryRow(ctx,
			`INSERT INTO issues (project_id, tracker_id, author_id, status_id, priority_id,
				category_id, assigned_to_id, fixed_version_id, parent_issue_id,
				subject, description, start_date, due_date, done_ratio, estimated_hours)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING `+selfColumns(issueColumns),
			issue.ProjectID, issue.TrackerID, issue.AuthorID, issue.StatusID, issue.PriorityID,
			issue.CategoryID, issue.AssignedToID, issue.FixedVersionID, issue.ParentIssueID,
			issue.Subject, issue.Description, issue.StartDate, issue.DueDate, issue.DoneRatio, issue.EstimatedHours)
	}

	created, err := scanIssue(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Issue{}, ErrDuplicateID
		}
		return domain.Issue{}, fmt.Errorf("failed to create issue: %w", err)
	}

	if err := saveCustomValues(ctx, tx, created.ID, issue.CustomFieldValues); err != nil {
		return domain.Issue{}, err
	}
	created.CustomFieldValues = issue.CustomFieldValues

	if err := tx.Commit(ctx); err != nil {
		return domain.Issue{}, fmt.Errorf("failed to commit issue create: %w", err)
	}
	return created, nil
}

func (r *issueRepository) Update(ctx context.Context, issue domain.Issue) (domain.Issue, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`UPDATE issues SET project_id = $2, tracker_id = $3, author_id = $4, status_id = $5,
			priority_id = $6, category_id = $7, assigned_to_id = $8, fixed_version_id = $9,
			parent_issue_id = $10, subject = $11, description = $12, start_date = $13,
			due_date = $14, done_ratio = $15, estimated_hours = $16, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+selfColumns(issueColumns),
		issue.ID, issue.ProjectID, issue.TrackerID, issue.AuthorID, issue.StatusID,
		issue.PriorityID, issue.CategoryID, issue.AssignedToID, issue.FixedVersionID,
		issue.ParentIssueID, issue.Subject, issue.Description, issue.StartDate,
		issue.DueDate, issue.DoneRatio, issue.EstimatedHours)

	updated, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Issue{}, ErrNotFound
		}
		return domain.Issue{}, fmt.Errorf("failed to update issue: %w", err)
	}

	if err := saveCustomValues(ctx, tx, updated.ID, issue.CustomFieldValues); err != nil {
		return domain.Issue{}, err
	}
	updated.CustomFieldValues = issue.CustomFieldValues

	if err := tx.Commit(ctx); err != nil {
		return domain.Issue{}, fmt.Errorf("failed to commit issue update: %w", err)
	}
	return updated, nil
}

func (r *issueRepository) ListRelations(ctx context.Context, issueID int64) ([]domain.Relation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, issue_from_id, issue_to_id, relation_type
		 FROM relations
		 WHERE issue_from_id = $1 OR issue_to_id = $1
		 ORDER BY id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	relations := []domain.Relation{}
	for rows.Next() {
		var rel domain.Relation
		if scanErr := rows.Scan(&rel.ID, &rel.IssueFromID, &rel.IssueToID, &rel.Type); scanErr != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", scanErr)
		}
		relations = append(relations, rel)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate relations: %w", rowsErr)
	}
	return relations, nil
}

func (r *issueRepository) CreateRelation(ctx context.Context, relation domain.Relation) (domain.Relation, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO relations (issue_from_id, issue_to_id, relation_type)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		relation.IssueFromID, relation.IssueToID, relation.Type).Scan(&relation.ID)
	if err != nil {
		return domain.Relation{}, fmt.Errorf("failed to create relation: %w", err)
	}
	return relation, nil
}

func (r *issueRepository) ListWatchers(ctx context.Context, issueID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM watchers WHERE issue_id = $1 ORDER BY user_id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchers: %w", err)
	}
	defer rows.Close()

	watchers := []int64{}
	for rows.Next() {
		var userID int64
		if scanErr := rows.Scan(&userID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan watcher: %w", scanErr)
		}
		watchers = append(watchers, userID)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate watchers: %w", rowsErr)
	}
	return watchers, nil
}

func (r *issueRepository) AddWatcher(ctx context.Context, issueID, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO watchers (issue_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (issue_id, user_id) DO NOTHING`, issueID, userID)
	if err != nil {
		return fmt.Errorf("failed to add watcher: %w", err)
	}
	return nil
}

func (r *issueRepository) AddJournal(ctx context.Context, journal domain.Journal) (domain.Journal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Journal{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO journals (issue_id, user_id, notes)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		journal.IssueID, journal.UserID, journal.Notes).Scan(&journal.ID, &journal.CreatedAt)
	if err != nil {
		return domain.Journal{}, fmt.Errorf("failed to create journal: %w", err)
	}

	for _, detail := range journal.Details {
		_, err = tx.Exec(ctx,
			`INSERT INTO journal_details (journal_id, property, prop_key, old_value, new_value)
			 VALUES ($1, $2, $3, $4, $5)`,
			journal.ID, detail.Property, detail.PropKey, detail.OldValue, detail.NewValue)
		if err != nil {
			return domain.Journal{}, fmt.Errorf("failed to create journal detail: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Journal{}, fmt.Errorf("failed to commit journal: %w", err)
	}
	return journal, nil
}

func (r *issueRepository) loadCustomValues(ctx context.Context, issue *domain.Issue) error {
	rows, err := r.pool.Query(ctx,
		`SELECT custom_field_id, value FROM custom_values WHERE issue_id = $1 ORDER BY id`, issue.ID)
	if err != nil {
		return fmt.Errorf("failed to load custom values: %w", err)
	}
	defer rows.Close()

	values := map[int64][]string{}
	for rows.Next() {
		var fieldID int64
		var value string
		if scanErr := rows.Scan(&fieldID, &value); scanErr != nil {
			return fmt.Errorf("failed to scan custom value: %w", scanErr)
		}
		values[fieldID] = append(values[fieldID], value)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("failed to iterate custom values: %w", rowsErr)
	}

	issue.CustomFieldValues = values
	return nil
}

func saveCustomValues(ctx context.Context, tx pgx.Tx, issueID int64, values map[int64][]string) error {
	for fieldID, fieldValues := range values {
		if _, err := tx.Exec(ctx,
			`DELETE FROM custom_values WHERE issue_id = $1 AND custom_field_id = $2`,
			issueID, fieldID); err != nil {
			return fmt.Errorf("failed to clear custom values: %w", err)
		}
		for _, value := range fieldValues {
			if _, err := tx.Exec(ctx,
				`INSERT INTO custom_values (issue_id, custom_field_id, value) VALUES ($1, $2, $3)`,
				issueID, fieldID, value); err != nil {
				return fmt.Errorf("failed to save custom value: %w", err)
			}
		}
	}
	return nil
}

func scanIssue(row pgx.Row) (domain.Issue, error) {
	var (
		issue          domain.Issue
		categoryID     pgtype.Int8
		assignedToID   pgtype.Int8
		fixedVersionID pgtype.Int8
		parentIssueID  pgtype.Int8
		startDate      pgtype.Date
		dueDate        pgtype.Date
		doneRatio      pgtype.Int4
		estimatedHours pgtype.Float8
	)

	err := row.Scan(
		&issue.ID, &issue.ProjectID, &issue.TrackerID, &issue.AuthorID, &issue.StatusID, &issue.PriorityID,
		&categoryID, &assignedToID, &fixedVersionID, &parentIssueID,
		&issue.Subject, &issue.Description, &startDate, &dueDate, &doneRatio, &estimatedHours,
		&issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		return domain.Issue{}, err
	}

	if categoryID.Valid {
		issue.CategoryID = &categoryID.Int64
	}
	if assignedToID.Valid {
		issue.AssignedToID = &assignedToID.Int64
	}
	if fixedVersionID.Valid {
		issue.FixedVersionID = &fixedVersionID.Int64
	}
	if parentIssueID.Valid {
		issue.ParentIssueID = &parentIssueID.Int64
	}
	if startDate.Valid {
		value := startDate.Time
		issue.StartDate = &value
	}
	if dueDate.Valid {
		value := dueDate.Time
		issue.DueDate = &value
	}
	if doneRatio.Valid {
		value := int(doneRatio.Int32)
		issue.DoneRatio = &value
	}
	if estimatedHours.Valid {
		value := estimatedHours.Float64
		issue.EstimatedHours = &value
	}
	return issue, nil
}

// customFieldID parses a cf_<id> field identifier.
func customFieldID(field string) (int64, bool) {
	raw, ok := strings.CutPrefix(field, "cf_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// selfColumns strips the i. alias from the shared select list so it can be
// reused in RETURNING clauses.
func selfColumns(columns string) string {
	return strings.ReplaceAll(columns, "i.", "")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
