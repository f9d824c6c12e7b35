package talent

import (
	"sort"
	"strings"
)

// Candidate fields.
const (
	FieldID         = "id"
	FieldName       = "name"
	FieldEmail      = "email"
	FieldCountry    = "country"
	FieldGender     = "gender"
	FieldTag        = "tag"
	FieldResumeText = "resume_text"
	FieldResumeLink = "resume_link"
)

// Opportunity and feedback fields.
const (
	FieldPlacements = "placements"
	FieldStatus     = "status"
	FieldRating     = "rating"
)

// CanonicalNameColumn is the candidate name column vendor exports are normalized to.
const CanonicalNameColumn = "Candidate Name"

// FieldRule lists the header names a field may appear under. Exact names are
// tried first, in order, then substring matches against the header in column order.
type FieldRule struct {
	Names    []string `mapstructure:"names" json:"names,omitempty" yaml:"names,omitempty"`
	Contains []string `mapstructure:"contains" json:"contains,omitempty" yaml:"contains,omitempty"`
}

// Alias renames a vendor column to a canonical one.
type Alias struct {
	From string `mapstructure:"from" json:"from" yaml:"from"`
	To   string `mapstructure:"to" json:"to" yaml:"to"`
}

// TaskColumns selects the opportunity requirement columns. Explicit names or
// substrings win over the positional [From, To) range.
type TaskColumns struct {
	From     int      `mapstructure:"from" json:"from" yaml:"from"`
	To       int      `mapstructure:"to" json:"to" yaml:"to"`
	Names    []string `mapstructure:"names" json:"names,omitempty" yaml:"names,omitempty"`
	Contains []string `mapstructure:"contains" json:"contains,omitempty" yaml:"contains,omitempty"`
}

// ColumnMapping is the column discovery configuration for all input exports.
type ColumnMapping struct {
	Aliases     []Alias              `mapstructure:"aliases" json:"aliases" yaml:"aliases"`
	Candidate   map[string]FieldRule `mapstructure:"candidate" json:"candidate" yaml:"candidate"`
	Opportunity map[string]FieldRule `mapstructure:"opportunity" json:"opportunity" yaml:"opportunity"`
	Feedback    map[string]FieldRule `mapstructure:"feedback" json:"feedback" yaml:"feedback"`
	Tasks       TaskColumns          `mapstructure:"tasks" json:"tasks" yaml:"tasks"`
}

// DefaultMapping returns the mapping that fits the Salesforce-style exports.
func DefaultMapping() ColumnMapping {
	return ColumnMapping{
		Aliases: []Alias{
			{From: "Candidate: Candidate Name", To: CanonicalNameColumn},
			{From: "Contact: Full Name", To: CanonicalNameColumn},
		},
		Candidate: map[string]FieldRule{
			FieldID:         {Names: []string{"Candidate: ID", "Candidate ID", "ID"}, Contains: []string{": id", " id", "_id"}},
			FieldName:       {Names: []string{CanonicalNameColumn, "Full Name", "Name"}, Contains: []string{"name"}},
			FieldEmail:      {Names: []string{"Email"}, Contains: []string{"email", "e-mail"}},
			FieldCountry:    {Names: []string{"Country"}, Contains: []string{"country"}},
			FieldGender:     {Names: []string{"Gender"}, Contains: []string{"gender"}},
			FieldTag:        {Names: []string{"School/Industry", "Industry", "School"}, Contains: []string{"industry", "school"}},
			FieldResumeText: {Names: []string{"Resume Text"}, Contains: []string{"resume text", "cv text"}},
			FieldResumeLink: {Names: []string{"Resume Link", "Resume URL", "Resume"}, Contains: []string{"resume link", "resume url", "cv link", "attachment"}},
		},
		Opportunity: map[string]FieldRule{
			FieldName:       {Names: []string{"Opportunity: Opportunity Name", "Opportunity Name"}, Contains: []string{"opportunity name", "name"}},
			FieldCountry:    {Contains: []string{"country"}},
			FieldGender:     {Contains: []string{"gender"}},
			FieldTag:        {Contains: []string{"industry", "school"}},
			FieldPlacements: {Names: []string{"Placements Needed"}, Contains: []string{"placements", "positions", "headcount"}},
		},
		Feedback: map[string]FieldRule{
			FieldName:   {Names: []string{CanonicalNameColumn}, Contains: []string{"candidate", "name"}},
			FieldStatus: {Contains: []string{"status", "outcome"}},
			FieldRating: {Contains: []string{"rating", "feedback", "comment"}},
		},
		Tasks: TaskColumns{From: 10, To: 40},
	}
}

// Resolved maps fields to column positions in one concrete header.
type Resolved struct {
	header []string
	fields map[string]int
}

// Resolve looks every field rule up in the header once. Unresolved fields map to -1.
func Resolve(header []string, rules map[string]FieldRule) Resolved {
	r := Resolved{header: header, fields: make(map[string]int, len(rules))}
	for field, rule := range rules {
		r.fields[field] = findColumn(header, rule)
	}
	return r
}

// Index returns the column position of field or -1.
func (r Resolved) Index(field string) int {
	idx, ok := r.fields[field]
	if !ok {
		return -1
	}
	return idx
}

// Column returns the header name resolved for field, or "".
func (r Resolved) Column(field string) string {
	idx := r.Index(field)
	if idx < 0 || idx >= len(r.header) {
		return ""
	}
	return r.header[idx]
}

// Value returns the trimmed cell of row for field, or "".
func (r Resolved) Value(row []string, field string) string {
	idx := r.Index(field)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cleanCell(row[idx])
}

// Columns returns field to header name pairs, sorted by field.
func (r Resolved) Columns() map[string]string {
	out := make(map[string]string, len(r.fields))
	for field := range r.fields {
		out[field] = r.Column(field)
	}
	return out
}

// Fields returns resolved field names in a stable order.
func (r Resolved) Fields() []string {
	fields := make([]string, 0, len(r.fields))
	for field := range r.fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// TaskIndexes returns the requirement column positions of an opportunity header.
func (t TaskColumns) TaskIndexes(header []string) []int {
	var idx []int
	if len(t.Names) > 0 || len(t.Contains) > 0 {
		for i, name := range header {
			if matchesAny(name, t.Names, strings.EqualFold) || matchesAny(name, t.Contains, containsFold) {
				idx = append(idx, i)
			}
		}
		return idx
	}

	to := t.To
	if to <= 0 || to > len(header) {
		to = len(header)
	}
	for i := max(t.From, 0); i < to; i++ {
		idx = append(idx, i)
	}
	return idx
}

// NormalizeColumns renames vendor columns in place. An alias is skipped when
// its target column already exists. The renamed source columns are returned.
func NormalizeColumns(t *Table, aliases []Alias) []string {
	var renamed []string
	for _, alias := range aliases {
		if t.Index(alias.To) >= 0 {
			continue
		}
		if idx := t.Index(alias.From); idx >= 0 {
			renamed = append(renamed, t.Header[idx])
			t.Header[idx] = alias.To
		}
	}
	return renamed
}

func findColumn(header []string, rule FieldRule) int {
	for _, name := range rule.Names {
		for i, column := range header {
			if strings.EqualFold(strings.TrimSpace(column), strings.TrimSpace(name)) {
				return i
			}
		}
	}

	for _, sub := range rule.Contains {
		for i, column := range header {
			if containsFold(column, sub) {
				return i
			}
		}
	}

	return -1
}

func matchesAny(s string, patterns []string, match func(string, string) bool) bool {
	for _, p := range patterns {
		if match(s, p) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	sub = strings.ToLower(sub)
	if strings.TrimSpace(sub) == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), sub)
}

// cleanCell trims a cell and maps pandas-style missing markers to "".
func cleanCell(cell string) string {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "nan", "null", "none", "n/a", "#n/a":
		return ""
	}
	return cell
}
