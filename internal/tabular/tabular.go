// Package tabular turns uploaded CSV and XLSX files into raw column→value
// rows for the person importer. It only parses; values are cleaned by
// ingest.Normalize.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrMissingEmail  = errors.New("mapping must contain the email field")
	ErrNeedsMapping  = errors.New("a mapping is required when the file has no header row")
	ErrUnsupported   = errors.New("unsupported file type, expected .csv or .xlsx")
	errUnknownColumn = errors.New("unknown field")
)

// Mapping assigns a 0-based column index to each person field.
type Mapping map[string]int

// Options control how rows are mapped to fields. With a nil Mapping the
// first row is the header and names the fields; SkipHeader is then
// implied.
type Options struct {
	Mapping    Mapping
	SkipHeader bool
}

// KnownFields lists the columns accepted by person imports.
func KnownFields() []string {
	return append([]string{domain.FieldEmail}, domain.PersonOptionalFields...)
}

// ValidateFields checks that email is present and every field is known.
func ValidateFields(fields []string) error {
	known := make(map[string]bool)
	for _, f := range KnownFields() {
		known[f] = true
	}
	hasEmail := false
	var unknown []string
	for _, f := range fields {
		if f == domain.FieldEmail {
			hasEmail = true
		}
		if !known[f] {
			unknown = append(unknown, f)
		}
	}
	if !hasEmail {
		return ErrMissingEmail
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w %s, supported fields: %s", errUnknownColumn,
			strings.Join(unknown, ", "), strings.Join(KnownFields(), ", "))
	}
	return nil
}

// Parse dispatches on the file extension.
func Parse(filename string, r io.Reader, opts Options) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", "":
		return ParseCSV(r, opts)
	case ".xlsx":
		return ParseXLSX(r, opts)
	}
	return nil, ErrUnsupported
}

// ParseCSV reads a CSV document. A UTF-8 BOM and spaces after delimiters
// are ignored. Empty lines after the first record come back as empty rows,
// so row numbers match the lines of the file.
func ParseCSV(r io.Reader, opts Options) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	lastLine := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if lastLine > 0 {
			for gap := line - lastLine - 1; gap > 0; gap-- {
				rows = append(rows, nil)
			}
		}
		last := len(rec) - 1
		endLine, _ := reader.FieldPos(last)
		lastLine = endLine + strings.Count(rec[last], "\n")
		rows = append(rows, rec)
	}
	return mapRows(rows, opts)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader, opts Options) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return mapRows(rows, opts)
}

func mapRows(rows [][]string, opts Options) ([]map[string]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	mapping := opts.Mapping
	data := rows
	if mapping == nil {
		if !opts.SkipHeader {
			return nil, ErrNeedsMapping
		}
		mapping = make(Mapping)
		var fields []string
		for i, h := range rows[0] {
			name := normalizeHeader(h)
			if name == "" {
				continue
			}
			mapping[name] = i
			fields = append(fields, name)
		}
		if err := ValidateFields(fields); err != nil {
			return nil, err
		}
		data = rows[1:]
	} else {
		fields := make([]string, 0, len(mapping))
		for f := range mapping {
			fields = append(fields, f)
		}
		if err := ValidateFields(fields); err != nil {
			return nil, err
		}
		if opts.SkipHeader {
			data = rows[1:]
		}
	}

	out := make([]map[string]string, 0, len(data))
	for _, row := range data {
		rec := make(map[string]string, len(mapping))
		for field, col := range mapping {
			if col >= 0 && col < len(row) {
				rec[field] = row[col]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// normalizeHeader cleans a header cell into a field name: quotes and BOM
// stripped, lower case, spaces and dashes as underscores.
func normalizeHeader(header string) string {
	h, ok := ingest.CleanValue(header)
	if !ok {
		return ""
	}
	h = strings.ToLower(h)
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}
