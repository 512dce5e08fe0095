package importer

import (
	"fmt"
	"sort"
)

// FailedRow pairs a failure ordinal with the offending source row.
type FailedRow struct {
	Ordinal int       `json:"ordinal"`
	Row     SourceRow `json:"row"`
}

// FailureLedger records which rows failed and why. Every failure ordinal
// maps to exactly one row, and a row occupies at most one ordinal for the
// whole batch: the first reporter wins the ordinal, later reporters for the
// same row only append messages.
type FailureLedger struct {
	rowsByOrdinal map[int]SourceRow
	ordinalByRow  map[int]int
	messages      []string
	nextOrdinal   int
}

// NewFailureLedger creates an empty ledger.
func NewFailureLedger() *FailureLedger {
	return &FailureLedger{
		rowsByOrdinal: map[int]SourceRow{},
		ordinalByRow:  map[int]int{},
	}
}

// Register associates the row with a failure ordinal, assigning the next
// ordinal on first registration. Idempotent per row.
func (l *FailureLedger) Register(row SourceRow) (ordinal int, registered bool) {
	if existing, ok := l.ordinalByRow[row.Number]; ok {
		return existing, false
	}
	l.nextOrdinal++
	l.ordinalByRow[row.Number] = l.nextOrdinal
	l.rowsByOrdinal[l.nextOrdinal] = row
	return l.nextOrdinal, true
}

// Append adds one human-readable message to the ordered message sequence.
func (l *FailureLedger) Append(message string) {
	l.messages = append(l.messages, message)
}

// Messages returns the ordered message sequence.
func (l *FailureLedger) Messages() []string {
	return l.messages
}

// Size returns the number of failed rows.
func (l *FailureLedger) Size() int {
	return len(l.rowsByOrdinal)
}

// FailedRows returns the failed rows sorted by failure ordinal.
func (l *FailureLedger) FailedRows() []FailedRow {
	rows := make([]FailedRow, 0, len(l.rowsByOrdinal))
	for ordinal, row := range l.rowsByOrdinal {
		rows = append(rows, FailedRow{Ordinal: ordinal, Row: row})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ordinal < rows[j].Ordinal })
	return rows
}

// BatchReport accumulates one batch's outcome: monotonic counters, the
// failure ledger, and the affected-project tallies. Counters are only ever
// incremented, and every row ends in exactly one of handled, skipped or
// failed.
type BatchReport struct {
	handled           int
	updated           int
	skipped           int
	failed            int
	skippedReferences int

	projectCounts map[string]int
	headers       []string
	ledger        *FailureLedger
}

// NewBatchReport creates an empty report for one batch.
func NewBatchReport(headers []string) *BatchReport {
	return &BatchReport{
		projectCounts: map[string]int{},
		headers:       headers,
		ledger:        NewFailureLedger(),
	}
}

// RowHandled records a successfully processed row.
func (r *BatchReport) RowHandled() { r.handled++ }

// RowUpdated records that a handled row updated an existing issue.
func (r *BatchReport) RowUpdated() { r.updated++ }

// RowSkipped records a row skipped by policy.
func (r *BatchReport) RowSkipped() { r.skipped++ }

// ReferenceSkipped records a relation or parent token skipped under the
// ignore-missing-references policy. Tracked apart from row outcomes so the
// handled/skipped/failed partition stays exact.
func (r *BatchReport) ReferenceSkipped() { r.skippedReferences++ }

// FailRow registers the row in the ledger and returns its failure ordinal.
// The failed counter moves only on the row's first registration.
func (r *BatchReport) FailRow(row SourceRow) int {
	ordinal, registered := r.ledger.Register(row)
	if registered {
		r.failed++
	}
	return ordinal
}

// FailedCount returns the number of failed rows so far.
func (r *BatchReport) FailedCount() int { return r.failed }

// LastMessage returns the most recently appended ledger message, or "".
func (r *BatchReport) LastMessage() string {
	messages := r.ledger.Messages()
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1]
}

// Messagef appends a formatted message to the ledger.
func (r *BatchReport) Messagef(format string, args ...any) {
	r.ledger.Append(fmt.Sprintf(format, args...))
}

// TouchProject bumps the issues-touched count for a project.
func (r *BatchReport) TouchProject(name string) {
	r.projectCounts[name]++
}

// Ledger exposes the failure ledger.
func (r *BatchReport) Ledger() *FailureLedger { return r.ledger }

// Headers returns the source column headers for rendering failed rows.
func (r *BatchReport) Headers() []string { return r.headers }

// Result is the final outcome handed back to the caller.
type Result struct {
	Handled           int            `json:"handled"`
	Updated           int            `json:"updated"`
	Skipped           int            `json:"skipped"`
	Failed            int            `json:"failed"`
	SkippedReferences int            `json:"skipped_references"`
	ProjectCounts     map[string]int `json:"project_counts"`
	FailedRows        []FailedRow    `json:"failed_rows,omitempty"`
	Messages          []string       `json:"messages,omitempty"`
	Headers           []string       `json:"headers,omitempty"`
}

// Result snapshots the report at batch end.
func (r *BatchReport) Result() Result {
	return Result{
		Handled:           r.handled,
		Updated:           r.updated,
		Skipped:           r.skipped,
		Failed:            r.failed,
		SkippedReferences: r.skippedReferences,
		ProjectCounts:     r.projectCounts,
		FailedRows:        r.ledger.FailedRows(),
		Messages:          r.ledger.Messages(),
		Headers:           r.headers,
	}
}
