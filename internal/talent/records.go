package talent

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Candidate is one row of the candidate table after column resolution.
type Candidate struct {
	Row        int               `mapstructure:"row"`
	ID         string            `mapstructure:"id"`
	Name       string            `mapstructure:"name"`
	Email      string            `mapstructure:"email"`
	Country    string            `mapstructure:"country"`
	Gender     string            `mapstructure:"gender"`
	Tag        string            `mapstructure:"tag"`
	ResumeText string            `mapstructure:"resume_text"`
	ResumeLink string            `mapstructure:"resume_link"`
	Raw        map[string]string `mapstructure:"raw"`
}

// HasResume reports whether the candidate carries resume text or a link to one.
func (c *Candidate) HasResume() bool {
	return strings.TrimSpace(c.ResumeText) != "" || strings.TrimSpace(c.ResumeLink) != ""
}

// Task is one requirement column of an opportunity.
type Task struct {
	Column string
	Value  string
}

// Opportunity describes one job to shortlist for.
type Opportunity struct {
	Row        int               `mapstructure:"row"`
	Name       string            `mapstructure:"name"`
	Country    string            `mapstructure:"country"`
	Gender     string            `mapstructure:"gender"`
	Tag        string            `mapstructure:"tag"`
	Placements int               `mapstructure:"placements"`
	Tasks      []Task            `mapstructure:"-"`
	Raw        map[string]string `mapstructure:"raw"`
}

var negativeFlags = map[string]bool{
	"no":    true,
	"n":     true,
	"false": true,
	"none":  true,
	"0":     true,
	"-":     true,
}

// Requirements renders the flagged task columns as "Column: value" lines.
// Tasks flagged no/none/false are left out.
func (o *Opportunity) Requirements() []string {
	var out []string
	for _, task := range o.Tasks {
		value := strings.TrimSpace(task.Value)
		if value == "" || negativeFlags[strings.ToLower(value)] {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", task.Column, value))
	}
	return out
}

// Feedback is the interview outcome recorded for a candidate.
type Feedback struct {
	Name   string `mapstructure:"name"`
	Status string `mapstructure:"status"`
	Rating string `mapstructure:"rating"`
}

// FeedbackIndex maps lowercased candidate names to their latest feedback.
type FeedbackIndex map[string]*Feedback

// Lookup returns the feedback recorded for name, or nil.
func (f FeedbackIndex) Lookup(name string) *Feedback {
	if f == nil {
		return nil
	}
	return f[nameKey(name)]
}

// Candidates decodes the candidate table. The name column is required.
func Candidates(t *Table, mapping ColumnMapping) ([]*Candidate, error) {
	NormalizeColumns(t, mapping.Aliases)

	resolved := Resolve(t.Header, mapping.Candidate)
	if resolved.Index(FieldName) < 0 {
		return nil, fmt.Errorf("candidate name: %w", ErrMissingColumn)
	}

	candidates := make([]*Candidate, 0, t.Len())
	for i, row := range t.Rows {
		values := map[string]any{
			"row":         i,
			"id":          resolved.Value(row, FieldID),
			"name":        resolved.Value(row, FieldName),
			"email":       resolved.Value(row, FieldEmail),
			"country":     resolved.Value(row, FieldCountry),
			"gender":      resolved.Value(row, FieldGender),
			"tag":         resolved.Value(row, FieldTag),
			"resume_text": resolved.Value(row, FieldResumeText),
			"resume_link": ExtractResumeLink(resolved.Value(row, FieldResumeLink)),
			"raw":         t.Record(i),
		}

		var candidate Candidate
		if err := decode(values, &candidate); err != nil {
			return nil, fmt.Errorf("decoding candidate row %d: %w", i+1, err)
		}
		candidates = append(candidates, &candidate)
	}

	return candidates, nil
}

// Opportunities decodes the opportunity table. The name column is required.
func Opportunities(t *Table, mapping ColumnMapping) ([]*Opportunity, error) {
	resolved := Resolve(t.Header, mapping.Opportunity)
	if resolved.Index(FieldName) < 0 {
		return nil, fmt.Errorf("opportunity name: %w", ErrMissingColumn)
	}

	taskIdx := mapping.Tasks.TaskIndexes(t.Header)

	opportunities := make([]*Opportunity, 0, t.Len())
	for i, row := range t.Rows {
		values := map[string]any{
			"row":        i,
			"name":       resolved.Value(row, FieldName),
			"country":    resolved.Value(row, FieldCountry),
			"gender":     resolved.Value(row, FieldGender),
			"tag":        resolved.Value(row, FieldTag),
			"placements": parseCount(resolved.Value(row, FieldPlacements)),
			"raw":        t.Record(i),
		}

		var opportunity Opportunity
		if err := decode(values, &opportunity); err != nil {
			return nil, fmt.Errorf("decoding opportunity row %d: %w", i+1, err)
		}

		for _, col := range taskIdx {
			if col == resolved.Index(FieldName) {
				continue
			}
			if value := cleanCell(row[col]); value != "" {
				opportunity.Tasks = append(opportunity.Tasks, Task{Column: t.Header[col], Value: value})
			}
		}

		opportunities = append(opportunities, &opportunity)
	}

	return opportunities, nil
}

// FeedbackFrom decodes the interview feedback table into an index keyed by
// candidate name. Later rows replace earlier ones.
func FeedbackFrom(t *Table, mapping ColumnMapping) (FeedbackIndex, error) {
	NormalizeColumns(t, mapping.Aliases)

	resolved := Resolve(t.Header, mapping.Feedback)
	if resolved.Index(FieldName) < 0 {
		return nil, fmt.Errorf("feedback candidate name: %w", ErrMissingColumn)
	}

	index := make(FeedbackIndex, t.Len())
	for i, row := range t.Rows {
		values := map[string]any{
			"name":   resolved.Value(row, FieldName),
			"status": resolved.Value(row, FieldStatus),
			"rating": resolved.Value(row, FieldRating),
		}

		var feedback Feedback
		if err := decode(values, &feedback); err != nil {
			return nil, fmt.Errorf("decoding feedback row %d: %w", i+1, err)
		}
		if key := nameKey(feedback.Name); key != "" {
			index[key] = &feedback
		}
	}

	return index, nil
}

// OpportunityNames returns the distinct opportunity names in table order.
func OpportunityNames(opportunities []*Opportunity) []string {
	seen := make(map[string]bool, len(opportunities))
	names := make([]string, 0, len(opportunities))
	for _, o := range opportunities {
		key := nameKey(o.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, o.Name)
	}
	return names
}

// FindOpportunity returns the first opportunity named name, compared case-insensitively.
func FindOpportunity(opportunities []*Opportunity, name string) *Opportunity {
	key := nameKey(name)
	for _, o := range opportunities {
		if nameKey(o.Name) == key {
			return o
		}
	}
	return nil
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// parseCount accepts "3", "3.0" and similar spreadsheet renderings.
func parseCount(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0
	}
	return int(f)
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
