package domain

// CustomFieldFormat determines how a raw column value is coerced.
type CustomFieldFormat string

const (
	FormatString  CustomFieldFormat = "string"
	FormatText    CustomFieldFormat = "text"
	FormatInt     CustomFieldFormat = "int"
	FormatFloat   CustomFieldFormat = "float"
	FormatList    CustomFieldFormat = "list"
	FormatDate    CustomFieldFormat = "date"
	FormatBool    CustomFieldFormat = "bool"
	FormatUser    CustomFieldFormat = "user"
	FormatVersion CustomFieldFormat = "version"
)

// CustomField describes one custom field available to a project's issues.
type CustomField struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Format   CustomFieldFormat `json:"format"`
	Multiple bool              `json:"multiple"`
}
