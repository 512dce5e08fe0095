package importer

import "testing"

func testRow(number int) SourceRow {
	return SourceRow{Number: number, Headers: []string{"Subject"}, Values: map[string]string{"Subject": "x"}}
}

func TestFailRowAssignsOneOrdinalPerRow(t *testing.T) {
	report := NewBatchReport([]string{"Subject"})

	first := report.FailRow(testRow(4))
	second := report.FailRow(testRow(4))
	if first != second {
		t.Fatalf("expected the same ordinal for repeated failures, got %d and %d", first, second)
	}
	if report.FailedCount() != 1 {
		t.Fatalf("expected one failed row, got %d", report.FailedCount())
	}

	third := report.FailRow(testRow(2))
	if third != first+1 {
		t.Fatalf("expected ordinals assigned in failure order, got %d after %d", third, first)
	}
}

func TestFailedRowsSortedByOrdinal(t *testing.T) {
	report := NewBatchReport([]string{"Subject"})
	report.FailRow(testRow(9))
	report.FailRow(testRow(3))
	report.FailRow(testRow(6))

	rows := report.Result().FailedRows
	if len(rows) != 3 {
		t.Fatalf("expected 3 failed rows, got %d", len(rows))
	}
	wantNumbers := []int{9, 3, 6}
	for i, failed := range rows {
		if failed.Ordinal != i+1 {
			t.Fatalf("expected ordinal %d at position %d, got %d", i+1, i, failed.Ordinal)
		}
		if failed.Row.Number != wantNumbers[i] {
			t.Fatalf("expected row %d at ordinal %d, got %d", wantNumbers[i], i+1, failed.Row.Number)
		}
	}
}

func TestReportResultSnapshot(t *testing.T) {
	report := NewBatchReport([]string{"Subject"})
	report.RowHandled()
	report.RowHandled()
	report.RowUpdated()
	report.RowSkipped()
	report.ReferenceSkipped()
	report.FailRow(testRow(5))
	report.Messagef("Warning: issue %d below", 1)
	report.TouchProject("Main")
	report.TouchProject("Main")

	result := report.Result()
	if result.Handled != 2 || result.Updated != 1 || result.Skipped != 1 || result.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.SkippedReferences != 1 {
		t.Fatalf("unexpected skipped references: %d", result.SkippedReferences)
	}
	if result.ProjectCounts["Main"] != 2 {
		t.Fatalf("unexpected project counts: %v", result.ProjectCounts)
	}
	if report.LastMessage() != "Warning: issue 1 below" {
		t.Fatalf("unexpected last message: %q", report.LastMessage())
	}
}
