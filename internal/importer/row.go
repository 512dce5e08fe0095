package importer

// SourceRow is one input record: an ordered header list, the raw cell value
// per column, and the row's 1-based position in the file. Immutable once
// read.
type SourceRow struct {
	Number  int               `json:"number"`
	Headers []string          `json:"headers"`
	Values  map[string]string `json:"values"`
}

// Value returns the raw cell under the given column name, or "" when the
// column is absent.
func (r SourceRow) Value(column string) string {
	if column == "" {
		return ""
	}
	return r.Values[column]
}

// Cells returns the row's values in header order, for rendering and export.
func (r SourceRow) Cells() []string {
	cells := make([]string, len(r.Headers))
	for i, header := range r.Headers {
		cells[i] = r.Values[header]
	}
	return cells
}
