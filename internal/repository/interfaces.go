package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rpattn/issueimport/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateID is returned when an explicitly supplied issue id collides
// with an existing record.
var ErrDuplicateID = errors.New("issue id already taken")

// IssueRepository defines the record-store operations for issues and their
// attachments (relations, watchers, journals).
type IssueRepository interface {
	GetByID(ctx context.Context, id int64) (domain.Issue, error)
	// FindByUniqueField returns issues whose field equals value, restricted
	// to non-closed statuses, capped at limit. The field is a built-in
	// attribute name or a cf_<id> custom-field identifier.
	FindByUniqueField(ctx context.Context, field string, value string, limit int) ([]domain.Issue, error)
	Create(ctx context.Context, issue domain.Issue) (domain.Issue, error)
	Update(ctx context.Context, issue domain.Issue) (domain.Issue, error)

	ListRelations(ctx context.Context, issueID int64) ([]domain.Relation, error)
	CreateRelation(ctx context.Context, relation domain.Relation) (domain.Relation, error)

	ListWatchers(ctx context.Context, issueID int64) ([]int64, error)
	AddWatcher(ctx context.Context, issueID, userID int64) error

	AddJournal(ctx context.Context, journal domain.Journal) (domain.Journal, error)
}

// UserRepository resolves users by login for author/assignee/watcher columns.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByLogin(ctx context.Context, login string) (domain.User, error)
	// Anonymous returns the store's anonymous account, used as a fallback
	// when the configuration allows it.
	Anonymous(ctx context.Context) (domain.User, error)
}

// ProjectRepository resolves the target project and per-row project columns.
type ProjectRepository interface {
	GetByID(ctx context.Context, id int64) (domain.Project, error)
	GetByName(ctx context.Context, name string) (domain.Project, error)
}

// VersionRepository resolves and creates project versions.
type VersionRepository interface {
	// FindByName searches the versions visible to the project (its own and
	// shared ones).
	FindByName(ctx context.Context, projectID int64, name string) (domain.Version, error)
	Create(ctx context.Context, version domain.Version) (domain.Version, error)
}

// CategoryRepository resolves and creates per-project issue categories.
type CategoryRepository interface {
	FindByName(ctx context.Context, projectID int64, name string) (domain.Category, error)
	Create(ctx context.Context, category domain.Category) (domain.Category, error)
}

// LookupRepository resolves the fixed enumerations referenced by name in
// import columns, plus the custom fields available to a project.
type LookupRepository interface {
	TrackerByName(ctx context.Context, name string) (domain.Tracker, error)
	StatusByName(ctx context.Context, name string) (domain.Status, error)
	StatusByID(ctx context.Context, id int64) (domain.Status, error)
	PriorityByName(ctx context.Context, name string) (domain.Priority, error)
	ListCustomFields(ctx context.Context, projectID int64) ([]domain.CustomField, error)
}

// StagingRepository stores the transient import-in-progress record.
type StagingRepository interface {
	// Replace deletes any staging record held by the same user and inserts
	// the given one, so at most one import per user is in progress.
	Replace(ctx context.Context, iip domain.ImportInProgress) (domain.ImportInProgress, error)
	FindByUser(ctx context.Context, userID int64) (domain.ImportInProgress, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ImportLogRepository stores row-level import failures for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, projectID int64, limit int, offset int) ([]domain.ImportLogEntry, error)
}
