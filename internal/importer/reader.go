package importer

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeRows parses an uploaded tabular file into header names and source
// rows. CSV is selected unless the file name carries an xlsx extension.
// Row numbers are 1-based over the data lines, in file order.
func DecodeRows(fileName string, data []byte, encoding string, delimiter, quote rune) ([]string, []SourceRow, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return decodeXLSX(data)
	}
	return decodeCSV(data, encoding, delimiter, quote)
}

func decodeCSV(data []byte, encoding string, delimiter, quote rune) ([]string, []SourceRow, error) {
	decoded, err := decodeCharset(data, encoding)
	if err != nil {
		return nil, nil, err
	}
	if quote != 0 && quote != '"' {
		decoded = normalizeQuotes(decoded, quote)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, configErrorf("failed to parse CSV: %v", err)
		}
		records = append(records, record)
	}

	return buildRows(records)
}

func decodeXLSX(data []byte) ([]string, []SourceRow, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, configErrorf("failed to open XLSX file: %v", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, configErrorf("XLSX file has no sheets")
	}
	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, nil, configErrorf("failed to read XLSX sheet %q: %v", sheets[0], err)
	}

	return buildRows(records)
}

// decodeCharset converts the raw bytes to UTF-8 and strips a leading BOM.
func decodeCharset(data []byte, encoding string) ([]byte, error) {
	var err error
	switch normalizeEncoding(encoding) {
	case "", "UTF8":
		// already UTF-8
	case "ISO88591", "LATIN1":
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
	case "ISO885915", "LATIN9":
		data, err = charmap.ISO8859_15.NewDecoder().Bytes(data)
	case "WINDOWS1250", "CP1250":
		data, err = charmap.Windows1250.NewDecoder().Bytes(data)
	case "WINDOWS1251", "CP1251":
		data, err = charmap.Windows1251.NewDecoder().Bytes(data)
	case "WINDOWS1252", "CP1252":
		data, err = charmap.Windows1252.NewDecoder().Bytes(data)
	case "KOI8R":
		data, err = charmap.KOI8R.NewDecoder().Bytes(data)
	default:
		return nil, configErrorf("unsupported encoding %q", encoding)
	}
	if err != nil {
		return nil, configErrorf("failed to decode %s input: %v", encoding, err)
	}
	return bytes.TrimPrefix(data, utf8BOM), nil
}

func normalizeEncoding(encoding string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == ' ' {
			return -1
		}
		return r
	}, encoding)
	return strings.ToUpper(cleaned)
}

// normalizeQuotes rewrites a custom quote character to the double quote the
// CSV parser understands, escaping pre-existing double quotes on the way.
func normalizeQuotes(data []byte, quote rune) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	for _, r := range string(data) {
		switch r {
		case quote:
			out.WriteByte('"')
		case '"':
			out.WriteString(`""`)
		default:
			out.WriteRune(r)
		}
	}
	return out.Bytes()
}

func buildRows(records [][]string) ([]string, []SourceRow, error) {
	if len(records) == 0 {
		return nil, nil, configErrorf("the file has no header line")
	}

	headers := make([]string, len(records[0]))
	for i, header := range records[0] {
		header = strings.TrimSpace(header)
		if header == "" {
			return nil, nil, configErrorf("column %d of the header line has no name", i+1)
		}
		headers[i] = header
	}

	var rows []SourceRow
	number := 0
	for _, record := range records[1:] {
		if blankRecord(record) {
			continue
		}
		number++
		values := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				values[header] = strings.TrimSpace(record[i])
			} else {
				values[header] = ""
			}
		}
		rows = append(rows, SourceRow{Number: number, Headers: headers, Values: values})
	}

	if len(rows) == 0 {
		return nil, nil, configErrorf("the file has no data lines")
	}
	return headers, rows, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
