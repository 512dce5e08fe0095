package importer

import (
	"context"
	"errors"

	"github.com/rpattn/issueimport/internal/domain"
)

// RelationLinker resolves the parent column and the per-type relation
// columns against earlier rows of the batch and the record store. The parent
// is wired before the row persists; relations are wired after, so the row's
// own issue id exists.
type RelationLinker struct {
	issues   relationStore
	mapper   *FieldMapper
	resolver *Resolver
	cfg      domain.ImportConfiguration
}

// relationStore is the slice of the issue repository the linker touches.
type relationStore interface {
	ListRelations(ctx context.Context, issueID int64) ([]domain.Relation, error)
	CreateRelation(ctx context.Context, relation domain.Relation) (domain.Relation, error)
}

// NewRelationLinker wires a linker for one batch.
func NewRelationLinker(issues relationStore, mapper *FieldMapper, resolver *Resolver, cfg domain.ImportConfiguration) *RelationLinker {
	return &RelationLinker{issues: issues, mapper: mapper, resolver: resolver, cfg: cfg}
}

// LinkParent resolves the mapped parent value onto the candidate. A missing
// parent is skipped as an unresolved reference when the configuration
// tolerates those, and fails the row otherwise; an ambiguous parent always
// fails the row.
func (l *RelationLinker) LinkParent(ctx context.Context, cand *candidate, row SourceRow, uniqueAttr string, report *BatchReport) error {
	raw := l.mapper.Fetch("parent_issue", row)
	if raw == "" {
		return nil
	}

	parent, err := l.resolver.IssueByUniqueValue(ctx, uniqueAttr, raw, row, report)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			if l.cfg.IgnoreNonExist {
				report.ReferenceSkipped()
				return nil
			}
			ordinal := report.FailRow(row)
			report.Messagef("Warning: When setting the parent for issue %d below, no matches for the value %s were found",
				ordinal, raw)
			return errRowAborted
		}
		var ambiguous *AmbiguousError
		if errors.As(err, &ambiguous) {
			ordinal := report.FailRow(row)
			report.Messagef("Warning: When setting the parent for issue %d below, multiple matches for the value %s were found",
				ordinal, raw)
			return errRowAborted
		}
		return err
	}

	parentID := parent.ID
	cand.issue.ParentIssueID = &parentID
	return nil
}

// LinkRelations creates the relations named by the mapped relation-type
// columns. Tokens resolving to nothing are skipped or fail the row per the
// missing-reference policy; an ambiguous token fails the row. Either failure
// abandons the row's remaining relation work. Relations the store already
// holds are not duplicated, so re-running a batch is idempotent.
func (l *RelationLinker) LinkRelations(ctx context.Context, cand *candidate, row SourceRow, uniqueAttr string, report *BatchReport) error {
	issueID := cand.issue.ID

	var existing []domain.Relation
	loaded := false

	for _, relType := range domain.RelationTypes() {
		raw := l.mapper.Fetch(string(relType), row)
		if raw == "" {
			continue
		}

		for _, token := range splitList(raw) {
			other, err := l.resolver.IssueByUniqueValue(ctx, uniqueAttr, token, row, report)
			if err != nil {
				var notFound *NotFoundError
				if errors.As(err, &notFound) {
					if l.cfg.IgnoreNonExist {
						report.ReferenceSkipped()
						continue
					}
					ordinal := report.FailRow(row)
					report.Messagef("Warning: When adding a relation to issue %d below, no matches for the value %s were found",
						ordinal, token)
					return errRowAborted
				}
				var ambiguous *AmbiguousError
				if errors.As(err, &ambiguous) {
					ordinal := report.FailRow(row)
					report.Messagef("Warning: When adding a relation to issue %d below, multiple matches for the value %s were found",
						ordinal, token)
					return errRowAborted
				}
				return err
			}

			if !loaded {
				existing, err = l.issues.ListRelations(ctx, issueID)
				if err != nil {
					return err
				}
				loaded = true
			}
			if hasRelation(existing, issueID, other.ID, relType) {
				continue
			}

			created, err := l.issues.CreateRelation(ctx, domain.Relation{
				IssueFromID: issueID,
				IssueToID:   other.ID,
				Type:        relType,
			})
			if err != nil {
				return err
			}
			existing = append(existing, created)
		}
	}

	return nil
}

func hasRelation(relations []domain.Relation, issueID, otherID int64, relType domain.RelationType) bool {
	for _, rel := range relations {
		if rel.OtherIssue(issueID) == otherID && rel.TypeFor(issueID) == relType {
			return true
		}
	}
	return false
}
