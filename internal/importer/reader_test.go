package importer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestDecodeRowsCSV(t *testing.T) {
	data := "\xEF\xBB\xBFSubject,Priority\nFirst, High \n\n,\nSecond,Low\n"
	headers, rows, err := DecodeRows("issues.csv", []byte(data), "", ',', '"')
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}

	if len(headers) != 2 || headers[0] != "Subject" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if len(rows) != 2 {
		t.Fatalf("expected blank lines skipped, got %d rows", len(rows))
	}
	if rows[0].Number != 1 || rows[1].Number != 2 {
		t.Fatalf("expected 1-based data row numbers, got %d and %d", rows[0].Number, rows[1].Number)
	}
	if rows[0].Value("Priority") != "High" {
		t.Fatalf("expected cell values trimmed, got %q", rows[0].Value("Priority"))
	}
}

func TestDecodeRowsCustomDelimiterAndQuote(t *testing.T) {
	data := "Subject;Description\n'hello; world';plain\n"
	_, rows, err := DecodeRows("issues.csv", []byte(data), "", ';', '\'')
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}

	if rows[0].Value("Subject") != "hello; world" {
		t.Fatalf("expected the quoted delimiter preserved, got %q", rows[0].Value("Subject"))
	}
	if rows[0].Value("Description") != "plain" {
		t.Fatalf("unexpected second cell: %q", rows[0].Value("Description"))
	}
}

func TestDecodeRowsLatin1(t *testing.T) {
	// "café" with an ISO-8859-1 encoded é.
	data := []byte("Subject\ncaf\xe9\n")
	_, rows, err := DecodeRows("issues.csv", data, "ISO-8859-1", ',', '"')
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if rows[0].Value("Subject") != "café" {
		t.Fatalf("unexpected decoded value: %q", rows[0].Value("Subject"))
	}
}

func TestDecodeRowsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"unnamed header column", "Subject,,Priority\nx,y,z\n"},
		{"no data lines", "Subject,Priority\n"},
		{"empty file", ""},
	}
	for _, tc := range cases {
		_, _, err := DecodeRows("issues.csv", []byte(tc.data), "", ',', '"')
		var configErr *ConfigurationError
		if !errors.As(err, &configErr) {
			t.Fatalf("%s: expected ConfigurationError, got %v", tc.name, err)
		}
	}

	_, _, err := DecodeRows("issues.csv", []byte("Subject\nx\n"), "EBCDIC", ',', '"')
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("unsupported encoding: expected ConfigurationError, got %v", err)
	}
}

func TestDecodeRowsShortRecordsPadded(t *testing.T) {
	data := "Subject,Priority,Category\nOnly subject\n"
	headers, rows, err := DecodeRows("issues.csv", []byte(data), "", ',', '"')
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	cells := rows[0].Cells()
	if len(cells) != len(headers) {
		t.Fatalf("expected %d cells, got %d", len(headers), len(cells))
	}
	if cells[1] != "" || cells[2] != "" {
		t.Fatalf("expected missing cells blank, got %v", cells)
	}
}

func TestDecodeRowsXLSX(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"Subject", "Priority"},
		{"First", "High"},
		{"Second", "Low"},
	}
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("failed to build cell name: %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
			t.Fatalf("failed to write sheet row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}

	headers, parsed, err := DecodeRows("issues.xlsx", buf.Bytes(), "", 0, 0)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if len(headers) != 2 || headers[1] != "Priority" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if len(parsed) != 2 || parsed[1].Value("Subject") != "Second" {
		t.Fatalf("unexpected rows: %+v", parsed)
	}
}
