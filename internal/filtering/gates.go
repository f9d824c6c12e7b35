package filtering

import (
	"context"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/edge-shortlister/internal/talent"
)

const (
	NameResumePresence  = "resume_presence"
	NameManualExclusion = "manual_exclusion"
	NameCountry         = "country"
	NameGender          = "gender"
	NameResumeText      = "resume_text"

	NoteNoResume         = "Disqualified: no resume"
	NoteCountryMismatch  = "Missed Country Requirement"
	NoteGenderMismatch   = "Missed Gender Requirement"
	NoteResumeUnreadable = "Disqualified: resume text unavailable"

	DefaultMinResumeRunes = 50
)

var (
	DefaultExclusionVerbs = []string{"remove", "exclude", "drop", "ignore", "skip"}
	DefaultCountryAny     = []string{"any"}
	DefaultGenderAny      = []string{"any", "no preference", "none", "either", "n/a", "all"}
)

// IsExclusion reports whether requirement reads as an instruction to drop someone.
// Verbs match whole words only, so "dropshipping" is not "drop". Empty verbs means DefaultExclusionVerbs.
func IsExclusion(requirement string, verbs []string) bool {
	if len(verbs) == 0 {
		verbs = DefaultExclusionVerbs
	}
	padded := " " + strings.Join(words(strings.ToLower(requirement)), " ") + " "
	for _, verb := range verbs {
		verb = strings.Join(words(strings.ToLower(verb)), " ")
		if verb != "" && strings.Contains(padded, " "+verb+" ") {
			return true
		}
	}
	return false
}

// Vetoes reports whether requirement is an exclusion instruction that names the candidate,
// by lowercased name substring or by ID as a whole word.
func Vetoes(requirement string, c *talent.Candidate, verbs []string) bool {
	if c == nil || !IsExclusion(requirement, verbs) {
		return false
	}
	lower := strings.ToLower(requirement)
	name := strings.ToLower(strings.TrimSpace(c.Name))
	id := strings.ToLower(strings.TrimSpace(c.ID))
	return (name != "" && strings.Contains(lower, name)) || (id != "" && hasToken(lower, id))
}

type resumePresenceFilter struct {
	gate
}

// NewResumePresence creates a filter that drops candidates without resume text or link.
func NewResumePresence() Filter {
	return &resumePresenceFilter{gate{name: NameResumePresence}}
}

func (f *resumePresenceFilter) Validate(*Config) error { return nil }

func (f *resumePresenceFilter) Apply(_ context.Context, in *Input) (*Rejection, error) {
	if in.Candidate.HasResume() {
		return nil, nil
	}
	return f.reject(NoteNoResume), nil
}

func (f *resumePresenceFilter) Status() Status { return f.status(nil) }

type manualExclusionFilter struct {
	gate
	verbs []string
}

// NewManualExclusion creates a filter that drops candidates named in an exclusion requirement.
func NewManualExclusion() Filter {
	return &manualExclusionFilter{gate: gate{name: NameManualExclusion}, verbs: DefaultExclusionVerbs}
}

func (f *manualExclusionFilter) Validate(cfg *Config) error {
	f.verbs = DefaultExclusionVerbs
	if cfg != nil && len(cfg.ExclusionVerbs) > 0 {
		f.verbs = cfg.ExclusionVerbs
	}
	return nil
}

func (f *manualExclusionFilter) Apply(_ context.Context, in *Input) (*Rejection, error) {
	for _, requirement := range in.Extra {
		if Vetoes(requirement, in.Candidate, f.verbs) {
			return f.reject(`Manually excluded: "` + requirement + `"`), nil
		}
	}
	return nil, nil
}

func (f *manualExclusionFilter) Status() Status {
	return f.status(map[string]string{"verbs": strings.Join(f.verbs, ",")})
}

// hasToken reports whether token appears in s as a whole alphanumeric word.
func hasToken(s, token string) bool {
	for _, word := range words(s) {
		if word == token {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
}

// matchFilter drops candidates whose attribute differs from the opportunity's preference.
type matchFilter struct {
	gate
	note     string
	wildcard map[string]bool
	defaults []string
	fromCfg  func(*Config) []string
	pick     func(*Input) (want, have string)
}

// NewCountry creates a filter that enforces the opportunity country.
func NewCountry() Filter {
	return &matchFilter{
		gate:     gate{name: NameCountry},
		note:     NoteCountryMismatch,
		wildcard: lowerSet(DefaultCountryAny),
		defaults: DefaultCountryAny,
		fromCfg:  func(c *Config) []string { return c.CountryAny },
		pick: func(in *Input) (string, string) {
			return in.Opportunity.Country, in.Candidate.Country
		},
	}
}

// NewGender creates a filter that enforces the opportunity gender preference.
func NewGender() Filter {
	return &matchFilter{
		gate:     gate{name: NameGender},
		note:     NoteGenderMismatch,
		wildcard: lowerSet(DefaultGenderAny),
		defaults: DefaultGenderAny,
		fromCfg:  func(c *Config) []string { return c.GenderAny },
		pick: func(in *Input) (string, string) {
			return in.Opportunity.Gender, in.Candidate.Gender
		},
	}
}

func (f *matchFilter) Validate(cfg *Config) error {
	values := f.defaults
	if cfg != nil && len(f.fromCfg(cfg)) > 0 {
		values = f.fromCfg(cfg)
	}
	f.wildcard = lowerSet(values)
	return nil
}

func (f *matchFilter) Apply(_ context.Context, in *Input) (*Rejection, error) {
	if in.Opportunity == nil {
		return nil, nil
	}
	want, have := f.pick(in)
	want = strings.TrimSpace(want)
	if want == "" || f.wildcard[strings.ToLower(want)] {
		return nil, nil
	}
	if strings.EqualFold(want, strings.TrimSpace(have)) {
		return nil, nil
	}
	return f.reject(f.note), nil
}

func (f *matchFilter) Status() Status {
	return f.status(map[string]string{"wildcards": strconv.Itoa(len(f.wildcard))})
}

type resumeTextFilter struct {
	gate
	minRunes int
}

// NewResumeText creates a filter that drops candidates whose resolved resume text is too short to classify.
func NewResumeText() Filter {
	return &resumeTextFilter{gate: gate{name: NameResumeText}, minRunes: DefaultMinResumeRunes}
}

func (f *resumeTextFilter) Validate(cfg *Config) error {
	f.minRunes = DefaultMinResumeRunes
	if cfg != nil && cfg.MinResumeRunes > 0 {
		f.minRunes = cfg.MinResumeRunes
	}
	return nil
}

func (f *resumeTextFilter) Apply(_ context.Context, in *Input) (*Rejection, error) {
	if utf8.RuneCountInString(strings.TrimSpace(in.ResumeText)) >= f.minRunes {
		return nil, nil
	}
	return f.reject(NoteResumeUnreadable), nil
}

func (f *resumeTextFilter) Status() Status {
	return f.status(map[string]string{"min_runes": strconv.Itoa(f.minRunes)})
}
