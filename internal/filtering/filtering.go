package filtering

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/talent"
)

// Filter is a hard gate applied to one candidate. A rejection ends scoring for that candidate.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, in *Input) (*Rejection, error)
}

// Input is what a filter inspects for a single candidate.
type Input struct {
	Candidate   *talent.Candidate
	Opportunity *talent.Opportunity
	Extra       []string

	// ResumeText is the resolved resume text. It is only set for filters run after resolution.
	ResumeText string
}

// Rejection names the filter that failed and the note shown to the operator.
type Rejection struct {
	Filter string
	Note   string
}

// Step accumulates how many candidates a filter has seen and dropped.
type Step struct {
	Checked int
	Dropped int
}

// Config contains the settings consumed by the filters.
type Config struct {
	ExclusionVerbs  []string `mapstructure:"exclusion-verbs"`
	CountryAny      []string `mapstructure:"country-any"`
	GenderAny       []string `mapstructure:"gender-any"`
	MinResumeRunes  int      `mapstructure:"min-resume-runes"`
	DisabledFilters []string `mapstructure:"disabled"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

type stepRecorder interface {
	record(dropped bool)
}

// Defaults returns the gates run before bonuses, in order.
func Defaults() []Filter {
	return []Filter{
		NewResumePresence(),
		NewManualExclusion(),
		NewCountry(),
		NewGender(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Prepare validates every enabled filter against cfg and disables the ones cfg turns off.
func Prepare(cfg *Config, steps []Filter) error {
	if cfg != nil {
		for _, name := range cfg.DisabledFilters {
			DisableByName(steps, strings.TrimSpace(name), "disabled in config")
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Run applies the enabled filters in order and returns the first rejection, or nil when all pass.
func Run(ctx context.Context, l *zap.Logger, steps []Filter, in *Input) (*Rejection, error) {
	l = logger.OrNop(l)

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rejection, err := step.Apply(ctx, in)
		if err != nil {
			return nil, err
		}

		if recorder, ok := step.(stepRecorder); ok {
			recorder.record(rejection != nil)
		}

		if rejection != nil {
			if rejection.Filter == "" {
				rejection.Filter = step.Name()
			}
			l.Debug("candidate rejected", append(
				logger.CandidateFields(in.Candidate.Name, in.Candidate.ID),
				zap.String("filter", rejection.Filter),
				zap.String("note", rejection.Note),
			)...)
			return rejection, nil
		}
	}
	return nil, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// gate carries the bookkeeping shared by all filters.
type gate struct {
	name     string
	disabled bool
	reason   string
	step     Step
}

func (g *gate) Name() string { return g.name }

func (g *gate) Disable(reason string) {
	g.disabled = true
	g.reason = reason
}

func (g *gate) IsEnabled() bool { return !g.disabled }

func (g *gate) record(dropped bool) {
	g.step.Checked++
	if dropped {
		g.step.Dropped++
	}
}

// Step returns the counters accumulated so far.
func (g *gate) Step() Step { return g.step }

func (g *gate) status(details map[string]string) Status {
	if details == nil {
		details = map[string]string{}
	}
	details["checked"] = strconv.Itoa(g.step.Checked)
	details["dropped"] = strconv.Itoa(g.step.Dropped)
	return Status{Name: g.name, Enabled: !g.disabled, Reason: g.reason, Details: details}
}

func (g *gate) reject(note string) *Rejection {
	return &Rejection{Filter: g.name, Note: note}
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = true
		}
	}
	return set
}
