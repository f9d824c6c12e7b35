package talent

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrEmptyInput is returned when a CSV export has no header row.
	ErrEmptyInput = errors.New("csv input is empty")
	// ErrMissingColumn is returned when a required column cannot be resolved.
	ErrMissingColumn = errors.New("required column is missing")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a CSV export held in memory. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadFile reads and parses a CSV file from disk.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	table, err := ReadTable(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return table, nil
}

// ReadTable parses CSV bytes. Input that is not valid UTF-8 is decoded as Latin-1.
func ReadTable(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decoding latin-1 input: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	table := &Table{Header: uniqueHeader(records[0])}
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		table.Rows = append(table.Rows, fit(record, len(table.Header)))
	}

	return table, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the column with the given name, compared
// case-insensitively, or -1.
func (t *Table) Index(column string) int {
	column = strings.TrimSpace(column)
	for i, name := range t.Header {
		if strings.EqualFold(name, column) {
			return i
		}
	}
	return -1
}

// Value returns the trimmed cell or an empty string for an out of range position.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// Record returns the row as a column name to value map.
func (t *Table) Record(row int) map[string]string {
	record := make(map[string]string, len(t.Header))
	for col, name := range t.Header {
		record[name] = t.Value(row, col)
	}
	return record
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}

	clone := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		clone.Rows[i] = append([]string(nil), row...)
	}
	return clone
}

// WriteCSV encodes the table as UTF-8 CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Bytes returns the CSV encoding of the table.
func (t *Table) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// uniqueHeader trims column names and suffixes repeated names with .1, .2 and so on.
func uniqueHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if n, ok := seen[key]; ok {
			seen[key] = n + 1
			name = name + "." + strconv.Itoa(n)
		} else {
			seen[key] = 1
		}
		header[i] = name
	}
	return header
}

func fit(record []string, width int) []string {
	row := make([]string, width)
	copy(row, record)
	return row
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
