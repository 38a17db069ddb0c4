package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-payments/internal/platform/httpx"
)

// ErrUnsupportedFormat rejects files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = fmt.Errorf("unsupported import format, expected .csv or .xlsx: %w", httpx.ErrUnsupportedMedia)

// ErrEmptyTable indicates a file without a header row.
var ErrEmptyTable = fmt.Errorf("import file has no header row: %w", httpx.ErrValidation)

// Table is a header plus data rows as read from the source file. Lines holds
// the 1-based source line (CSV) or sheet row (XLSX) of each data row.
type Table struct {
	Header []string
	Rows   [][]string
	Lines  []int
}

// Line returns the source line of row i.
func (t Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// Record returns row i keyed by header name. Missing trailing cells are blank.
func (t Table) Record(i int) map[string]string {
	row := t.Rows[i]
	record := make(map[string]string, len(t.Header))
	for col, name := range t.Header {
		if name == "" {
			continue
		}
		if col < len(row) {
			record[name] = row[col]
		} else {
			record[name] = ""
		}
	}
	return record
}

// Supported reports whether name has an importable extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadTable parses r according to the extension of name.
func ReadTable(name string, r io.Reader) (Table, error) {
	var (
		rows  [][]string
		lines []int
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, lines, err = readCSV(r)
	case ".xlsx":
		rows, lines, err = readXLSX(r)
	default:
		return Table{}, ErrUnsupportedFormat
	}
	if err != nil {
		return Table{}, err
	}
	if len(rows) == 0 {
		return Table{}, ErrEmptyTable
	}
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	data, dataLines := dropBlank(rows[1:], lines[1:])
	return Table{Header: header, Rows: data, Lines: dataLines}, nil
}

func readCSV(r io.Reader) ([][]string, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var (
		rows  [][]string
		lines []int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return rows, lines, nil
}

func readXLSX(r io.Reader) ([][]string, []int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, errors.New("open xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx sheet %s: %w", sheet, err)
	}
	// GetRows keeps empty rows in place, so the index is the sheet row.
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

// dropBlank removes rows without any non-space cell, keeping lines aligned.
func dropBlank(rows [][]string, lines []int) ([][]string, []int) {
	out := make([][]string, 0, len(rows))
	outLines := make([]int, 0, len(rows))
	for i, row := range rows {
		blank := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, row)
			outLines = append(outLines, lines[i])
		}
	}
	return out, outLines
}
