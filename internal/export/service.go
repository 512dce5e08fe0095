package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/issueimport/internal/importer"
)

// Format selects the rendering of an exported failure report.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query-string value onto a Format, defaulting to CSV.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// FileName returns a download file name for the format.
func (f Format) FileName() string {
	return fmt.Sprintf("failed-rows.%s", f)
}

// Service renders a batch result's failed rows back into a tabular file.
// The CSV output reuses the original header line, so a corrected copy can be
// re-imported with the same column mapping.
type Service struct{}

// NewService builds the export renderer.
func NewService() *Service {
	return &Service{}
}

// Write renders the result in the requested format.
func (s *Service) Write(w io.Writer, format Format, result importer.Result) error {
	if format == FormatXLSX {
		return s.writeXLSX(w, result)
	}
	return s.writeCSV(w, result)
}

func (s *Service) writeCSV(w io.Writer, result importer.Result) error {
	writer := csv.NewWriter(w)

	if len(result.Headers) > 0 {
		if err := writer.Write(result.Headers); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, failed := range result.FailedRows {
		if err := writer.Write(rowCells(result.Headers, failed.Row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", failed.Row.Number, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

func (s *Service) writeXLSX(w io.Writer, result importer.Result) error {
	book := excelize.NewFile()
	defer book.Close()

	const rowsSheet = "Failed rows"
	index, err := book.NewSheet(rowsSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	book.SetActiveSheet(index)

	line := 1
	if len(result.Headers) > 0 {
		if err := writeSheetRow(book, rowsSheet, line, result.Headers); err != nil {
			return err
		}
		line++
	}
	for _, failed := range result.FailedRows {
		if err := writeSheetRow(book, rowsSheet, line, rowCells(result.Headers, failed.Row)); err != nil {
			return err
		}
		line++
	}

	const messagesSheet = "Messages"
	if _, err := book.NewSheet(messagesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	for i, message := range result.Messages {
		if err := writeSheetRow(book, messagesSheet, i+1, []string{message}); err != nil {
			return err
		}
	}

	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheetRow(book *excelize.File, sheet string, line int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", line, err)
	}
	values := make([]any, len(cells))
	for i, v := range cells {
		values[i] = v
	}
	if err := book.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", line, err)
	}
	return nil
}

func rowCells(headers []string, row importer.SourceRow) []string {
	cells := make([]string, len(headers))
	for i, header := range headers {
		cells[i] = row.Values[header]
	}
	return cells
}
