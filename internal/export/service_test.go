package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/issueimport/internal/importer"
)

func failedResult() importer.Result {
	headers := []string{"Subject", "Priority"}
	return importer.Result{
		Handled: 1,
		Failed:  2,
		Headers: headers,
		FailedRows: []importer.FailedRow{
			{Ordinal: 1, Row: importer.SourceRow{Number: 2, Headers: headers, Values: map[string]string{"Subject": "Broken", "Priority": "High"}}},
			{Ordinal: 2, Row: importer.SourceRow{Number: 5, Headers: headers, Values: map[string]string{"Subject": "Also broken", "Priority": ""}}},
		},
		Messages: []string{"Warning: issue 1 below failed"},
	}
}

func TestParseFormat(t *testing.T) {
	if format, err := ParseFormat(""); err != nil || format != FormatCSV {
		t.Fatalf("expected CSV default, got %v %v", format, err)
	}
	if format, err := ParseFormat("XLSX"); err != nil || format != FormatXLSX {
		t.Fatalf("expected xlsx, got %v %v", format, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}

func TestWriteCSVIsReimportable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewService().Write(&buf, FormatCSV, failedResult()); err != nil {
		t.Fatalf("write returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "Subject,Priority" {
		t.Fatalf("expected the original header line, got %q", lines[0])
	}
	if lines[1] != "Broken,High" {
		t.Fatalf("unexpected first failed row: %q", lines[1])
	}
	if lines[2] != "Also broken," {
		t.Fatalf("unexpected second failed row: %q", lines[2])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := NewService().Write(&buf, FormatXLSX, failedResult()); err != nil {
		t.Fatalf("write returned error: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows("Failed rows")
	if err != nil {
		t.Fatalf("failed to read rows sheet: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "Broken" {
		t.Fatalf("unexpected rows sheet: %v", rows)
	}

	messages, err := book.GetRows("Messages")
	if err != nil {
		t.Fatalf("failed to read messages sheet: %v", err)
	}
	if len(messages) != 1 || messages[0][0] != "Warning: issue 1 below failed" {
		t.Fatalf("unexpected messages sheet: %v", messages)
	}
}
