package importer

import (
	"fmt"

	"github.com/rpattn/issueimport/internal/domain"
)

// issueAttributes are the fixed built-in target fields an import column can
// map to. Anything else is matched against the project's custom fields by
// display name, then the relation types.
var issueAttributes = []string{
	"id", "subject", "assigned_to", "fixed_version",
	"author", "description", "category", "priority", "tracker", "status",
	"start_date", "due_date", "done_ratio", "estimated_hours",
	"parent_issue", "watchers",
}

func isIssueAttribute(field string) bool {
	for _, attr := range issueAttributes {
		if attr == field {
			return true
		}
	}
	return false
}

// FieldMapper translates the user-supplied column mapping into per-row
// lookups. Every other component fetches values through it instead of
// touching rows directly.
type FieldMapper struct {
	mapping      map[string]string // target field -> source column
	uniqueColumn string
}

// NewFieldMapper builds a mapper from the batch configuration.
func NewFieldMapper(cfg domain.ImportConfiguration) *FieldMapper {
	mapping := make(map[string]string, len(cfg.Mapping))
	for field, column := range cfg.Mapping {
		mapping[field] = column
	}
	return &FieldMapper{mapping: mapping, uniqueColumn: cfg.UniqueColumn}
}

// Fetch returns the raw row value for a target field, or "" when the field
// is unmapped or the column is empty.
func (m *FieldMapper) Fetch(field string, row SourceRow) string {
	return row.Value(m.mapping[field])
}

// Mapped reports whether an explicit column mapping exists for the field.
func (m *FieldMapper) Mapped(field string) bool {
	return m.mapping[field] != ""
}

// UniqueColumn returns the source column designated as the unique field, or
// "" when none was configured.
func (m *FieldMapper) UniqueColumn() string {
	return m.uniqueColumn
}

// uniqueTarget returns the target field the unique column maps to, before
// custom-field translation. Empty when no unique column is set or the
// column is unmapped.
func (m *FieldMapper) uniqueTarget() string {
	if m.uniqueColumn == "" {
		return ""
	}
	for field, column := range m.mapping {
		if column == m.uniqueColumn {
			return field
		}
	}
	return ""
}

// UniqueAttribute resolves the unique column's target field for issue
// lookups. A target that is not a built-in attribute is matched against the
// available custom fields by display name and replaced with its cf_<id>
// identifier; otherwise it passes through unchanged.
func (m *FieldMapper) UniqueAttribute(customFields []domain.CustomField) string {
	target := m.uniqueTarget()
	if target == "" || isIssueAttribute(target) {
		return target
	}
	for _, field := range customFields {
		if field.Name == target {
			return fmt.Sprintf("cf_%d", field.ID)
		}
	}
	return target
}

// lookupAttributes are the built-in fields issues can be matched on when
// resolving the unique column. Other built-ins (dates, references) have no
// supported lookup, so they are rejected up front.
var lookupAttributes = map[string]bool{
	"id":          true,
	"subject":     true,
	"description": true,
}

// ValidateConfiguration rejects the batch before any row is processed when
// the mapping cannot support the requested options.
func (m *FieldMapper) ValidateConfiguration(cfg domain.ImportConfiguration) error {
	if target := m.uniqueTarget(); target != "" && isIssueAttribute(target) && !lookupAttributes[target] {
		return configErrorf("the %s attribute cannot be used as the unique field", target)
	}

	if m.uniqueTarget() == "" {
		if cfg.UpdateExisting {
			return configErrorf("a unique column must be specified when updating existing issues")
		}
		if m.Mapped("parent_issue") {
			return configErrorf("a unique column must be specified when mapping the parent_issue column")
		}
		for _, rtype := range domain.RelationTypes() {
			if m.Mapped(string(rtype)) {
				return configErrorf("a unique column must be specified when mapping the %s relation column", rtype)
			}
		}
	}

	if cfg.UseIssueID && !m.Mapped("id") {
		return configErrorf("a column mapping for id must be specified when importing using provided issue ids")
	}

	return nil
}
