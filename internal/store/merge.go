package store

import (
	"strings"

	"github.com/spigell/edge-shortlister/internal/talent"
)

// Merge appends incoming to existing and drops duplicate keys, keeping the last occurrence.
// Headers are the union of both tables: existing order first, then columns only incoming has.
// Rows with an empty key are never treated as duplicates.
func Merge(existing, incoming *talent.Table, keyColumn string) *talent.Table {
	if existing == nil {
		return incoming.Clone()
	}
	if incoming == nil {
		return existing.Clone()
	}

	header := unionHeader(existing.Header, incoming.Header)
	merged := &talent.Table{Header: header}
	merged.Rows = append(merged.Rows, project(existing, header)...)
	merged.Rows = append(merged.Rows, project(incoming, header)...)

	key := KeyColumn(header, keyColumn)
	if key < 0 {
		return merged
	}

	last := make(map[string]int, len(merged.Rows))
	for i, row := range merged.Rows {
		if k := strings.TrimSpace(row[key]); k != "" {
			last[k] = i
		}
	}

	rows := merged.Rows[:0]
	for i, row := range merged.Rows {
		k := strings.TrimSpace(row[key])
		if k == "" || last[k] == i {
			rows = append(rows, row)
		}
	}
	merged.Rows = rows

	return merged
}

// KeyColumn picks the de-duplication column: preferred when present, else the first column
// mentioning "id" or "name", else the first column. It returns -1 for an empty header.
func KeyColumn(header []string, preferred string) int {
	if len(header) == 0 {
		return -1
	}

	if preferred = strings.TrimSpace(preferred); preferred != "" {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), preferred) {
				return i
			}
		}
	}

	for i, name := range header {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "id") || strings.Contains(lower, "name") {
			return i
		}
	}
	return 0
}

func unionHeader(existing, incoming []string) []string {
	header := append([]string(nil), existing...)
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, name := range existing {
		seen[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, name := range incoming {
		key := strings.ToLower(strings.TrimSpace(name))
		if seen[key] {
			continue
		}
		seen[key] = true
		header = append(header, name)
	}
	return header
}

// project re-lays the rows of t onto header, leaving unknown columns empty.
func project(t *talent.Table, header []string) [][]string {
	positions := make([]int, len(header))
	for i, name := range header {
		positions[i] = t.Index(name)
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, src := range t.Rows {
		row := make([]string, len(header))
		for i, pos := range positions {
			if pos >= 0 && pos < len(src) {
				row[i] = src[pos]
			}
		}
		rows = append(rows, row)
	}
	return rows
}
