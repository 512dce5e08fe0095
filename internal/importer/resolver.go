package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/repository"
)

// ResolutionCache deduplicates reference lookups within one batch. An entry,
// once populated, is authoritative for the remainder of the batch: issues
// created by earlier rows are visible to later rows through it. Owned
// exclusively by one pipeline invocation and discarded at batch end.
type ResolutionCache struct {
	userIDByLogin      map[string]int64
	versionIDByName    map[string]int64
	issueByUniqueValue map[string]domain.Issue
}

// NewResolutionCache creates an empty per-batch cache.
func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{
		userIDByLogin:      map[string]int64{},
		versionIDByName:    map[string]int64{},
		issueByUniqueValue: map[string]domain.Issue{},
	}
}

func versionKey(projectID int64, name string) string {
	return fmt.Sprintf("%d/%s", projectID, name)
}

// StoreIssue registers a persisted issue under its unique-field value so
// later rows in the same batch can reference it without a storage query.
func (c *ResolutionCache) StoreIssue(uniqueValue string, issue domain.Issue) {
	c.issueByUniqueValue[uniqueValue] = issue
}

// Resolver looks up external entities from textual keys with per-batch
// caching and found / not-found / ambiguous outcomes.
type Resolver struct {
	users    repository.UserRepository
	versions repository.VersionRepository
	issues   repository.IssueRepository

	cache        *ResolutionCache
	useAnonymous bool
}

// NewResolver wires a resolver around the record store and one batch cache.
func NewResolver(
	users repository.UserRepository,
	versions repository.VersionRepository,
	issues repository.IssueRepository,
	cache *ResolutionCache,
	useAnonymous bool,
) *Resolver {
	return &Resolver{
		users:        users,
		versions:     versions,
		issues:       issues,
		cache:        cache,
		useAnonymous: useAnonymous,
	}
}

// UserByLogin resolves a login to a user id. On not-found it falls back to
// the anonymous account when the batch allows it, else signals
// NotFoundError. Successful and fallback results are cached.
func (r *Resolver) UserByLogin(ctx context.Context, login string) (int64, error) {
	if id, ok := r.cache.userIDByLogin[login]; ok {
		return id, nil
	}

	user, err := r.users.GetByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		if !r.useAnonymous {
			return 0, &NotFoundError{Kind: KindUser, Key: login}
		}
		user, err = r.users.Anonymous(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve anonymous user: %w", err)
		}
	}

	r.cache.userIDByLogin[login] = user.ID
	return user.ID, nil
}

// VersionByName resolves a version name within a project. On a cache and
// store miss, a non-empty name is created under the project when autoCreate
// is set; otherwise NotFoundError is signaled.
func (r *Resolver) VersionByName(ctx context.Context, projectID int64, name string, autoCreate bool) (int64, error) {
	key := versionKey(projectID, name)
	if id, ok := r.cache.versionIDByName[key]; ok {
		return id, nil
	}

	version, err := r.versions.FindByName(ctx, projectID, name)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		if !autoCreate || name == "" {
			return 0, &NotFoundError{Kind: KindVersion, Key: name}
		}
		version, err = r.versions.Create(ctx, domain.Version{ProjectID: projectID, Name: name})
		if err != nil {
			return 0, err
		}
	}

	r.cache.versionIDByName[key] = version.ID
	return version.ID, nil
}

// IssueByUniqueValue resolves the issue whose unique field carries value.
// The intra-batch cache is consulted first, covering issues created earlier
// in the same batch. Zero matches signal NotFoundError for the caller to
// apply policy; two or more matches are logged against the current row
// immediately and signal AmbiguousError.
func (r *Resolver) IssueByUniqueValue(ctx context.Context, uniqueAttr, value string, row SourceRow, report *BatchReport) (domain.Issue, error) {
	if issue, ok := r.cache.issueByUniqueValue[value]; ok {
		return issue, nil
	}

	var matches []domain.Issue
	if uniqueAttr == "id" {
		id, err := parseIssueID(value)
		if err == nil {
			issue, getErr := r.issues.GetByID(ctx, id)
			if getErr == nil {
				matches = []domain.Issue{issue}
			} else if !errors.Is(getErr, repository.ErrNotFound) {
				return domain.Issue{}, getErr
			}
		}
	} else {
		// Limit 2 distinguishes singular from ambiguous without an
		// unbounded scan.
		found, err := r.issues.FindByUniqueField(ctx, uniqueAttr, value, 2)
		if err != nil {
			return domain.Issue{}, err
		}
		matches = found
	}

	switch {
	case len(matches) > 1:
		ordinal := report.FailRow(row)
		report.Messagef("Warning: Unique field %s with value '%s' in issue %d has duplicate record",
			uniqueAttr, value, ordinal)
		return domain.Issue{}, &AmbiguousError{Field: uniqueAttr, Value: value}
	case len(matches) == 0:
		return domain.Issue{}, &NotFoundError{Kind: KindIssue, Key: value}
	default:
		return matches[0], nil
	}
}
