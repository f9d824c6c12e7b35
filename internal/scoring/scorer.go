package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/ai"
	"github.com/spigell/edge-shortlister/internal/filtering"
	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/talent"
	"github.com/spigell/edge-shortlister/internal/utils"
)

// Fetcher turns a resume link into plain text. It returns "" when nothing usable was found.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Result is one scored candidate. It is never persisted.
type Result struct {
	Row           int
	ID            string
	Name          string
	Score         int
	Notes         []string
	Justification string
	ResumeLink    string
	Country       string
	Gender        string
	Email         string

	// Filter names the hard filter that rejected the candidate, if any.
	Filter string

	// AIError is set when the classifier call failed.
	AIError bool
}

// Disqualified reports whether a hard filter rejected the candidate.
func (r *Result) Disqualified() bool { return r.Filter != "" }

// Scorer applies hard filters, bonuses and the classifier to one candidate at a time.
type Scorer struct {
	cfg        Config
	classifier ai.Classifier
	fetcher    Fetcher
	gates      []filtering.Filter
	textGate   []filtering.Filter
	logger     *zap.Logger
}

// NewScorer validates cfg and prepares the hard filters. fetcher may be nil when all resumes are inline.
func NewScorer(cfg Config, classifier ai.Classifier, fetcher Fetcher, l *zap.Logger) (*Scorer, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	gates := filtering.Defaults()
	textGate := []filtering.Filter{filtering.NewResumeText()}
	if err := filtering.Prepare(&cfg.Filters, gates); err != nil {
		return nil, fmt.Errorf("preparing filters: %w", err)
	}
	if err := filtering.Prepare(&cfg.Filters, textGate); err != nil {
		return nil, fmt.Errorf("preparing filters: %w", err)
	}

	return &Scorer{
		cfg:        cfg,
		classifier: classifier,
		fetcher:    fetcher,
		gates:      gates,
		textGate:   textGate,
		logger:     logger.OrNop(l),
	}, nil
}

// Config returns the normalized configuration in use.
func (s *Scorer) Config() Config { return s.cfg }

// Filters returns every hard filter in evaluation order.
func (s *Scorer) Filters() []filtering.Filter {
	out := make([]filtering.Filter, 0, len(s.gates)+len(s.textGate))
	out = append(out, s.gates...)
	return append(out, s.textGate...)
}

// ErrNoOpportunity is returned when scoring is asked for without an opportunity.
var ErrNoOpportunity = errors.New("opportunity is required")

// Score evaluates one candidate. Apart from a missing candidate or opportunity only
// context cancellation is returned as an error; every other failure ends up as a note on the result.
func (s *Scorer) Score(ctx context.Context, c *talent.Candidate, opp *talent.Opportunity, feedback talent.FeedbackIndex, extra []string) (*Result, error) {
	if opp == nil {
		return nil, ErrNoOpportunity
	}
	if c == nil {
		return nil, errors.New("candidate is required")
	}

	result := &Result{
		Row:        c.Row,
		ID:         c.ID,
		Name:       c.Name,
		ResumeLink: c.ResumeLink,
		Country:    c.Country,
		Gender:     c.Gender,
		Email:      c.Email,
	}
	fields := logger.CandidateFields(c.Name, c.ID)

	in := &filtering.Input{Candidate: c, Opportunity: opp, Extra: extra}
	rejection, err := filtering.Run(ctx, s.logger, s.gates, in)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return disqualify(result, rejection), nil
	}

	bonus, notes := s.bonuses(c, opp, feedback)

	in.ResumeText = s.resumeText(ctx, c)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rejection, err = filtering.Run(ctx, s.logger, s.textGate, in)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return disqualify(result, rejection), nil
	}

	assessment, err := s.classifier.Classify(ctx, &ai.Request{
		CandidateID:   c.ID,
		CandidateName: c.Name,
		Opportunity:   opp.Name,
		Requirements:  opp.Requirements(),
		Extra:         s.promptRequirements(extra, c),
		ResumeText:    utils.Clip(in.ResumeText, s.cfg.MaxResumeChars),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("classifier failed", append(fields, zap.Error(err))...)

		result.AIError = true
		result.Justification = "AI Error: " + err.Error()
		result.Score = s.combine(bonus, 0)
		result.Notes = append(notes, result.Justification)
		return result, nil
	}

	result.Justification = assessment.Justification
	result.Score = s.combine(bonus, assessment.Score)
	result.Notes = append(notes, "AI: "+assessment.Justification)

	s.logger.Debug("candidate scored", append(fields,
		zap.Int("score", result.Score),
		zap.Int("classifier_score", assessment.Score),
		zap.Int("bonus", bonus),
	)...)

	return result, nil
}

func disqualify(result *Result, rejection *filtering.Rejection) *Result {
	result.Score = 0
	result.Filter = rejection.Filter
	result.Notes = []string{rejection.Note}
	return result
}

func (s *Scorer) bonuses(c *talent.Candidate, opp *talent.Opportunity, feedback talent.FeedbackIndex) (int, []string) {
	b := s.cfg.Bonuses
	total := 0
	var notes []string

	add := func(points int, label string) {
		total += points
		note := fmt.Sprintf("%s (%+d)", label, points)
		if s.cfg.Policy == PolicyClassifierOnly {
			note += " (informational)"
		}
		notes = append(notes, note)
	}

	oppTag := strings.TrimSpace(opp.Tag)
	if oppTag != "" && strings.EqualFold(oppTag, strings.TrimSpace(c.Tag)) {
		add(b.Industry, "Industry/School match")
	}

	if fb := feedback.Lookup(c.Name); fb != nil {
		status := strings.ToLower(strings.TrimSpace(fb.Status))
		switch {
		case strings.Contains(status, "not selected"):
			add(b.NotSelected, "Interview: not selected")
		case strings.Contains(status, "selected"):
			add(b.Selected, "Interview: selected")
		}

		if hasToken(fb.Rating, b.RatingTokens) {
			add(b.Rating, "Positive interview rating")
		}
	}

	return total, notes
}

// resumeText prefers the inline resume column and falls back to fetching the link.
func (s *Scorer) resumeText(ctx context.Context, c *talent.Candidate) string {
	inline := strings.TrimSpace(c.ResumeText)
	if utf8.RuneCountInString(inline) >= s.cfg.Filters.MinResumeRunes {
		return inline
	}

	link := strings.TrimSpace(c.ResumeLink)
	if link == "" || s.fetcher == nil {
		return inline
	}

	fetched := strings.TrimSpace(s.fetcher.Fetch(ctx, link))
	if utf8.RuneCountInString(fetched) > utf8.RuneCountInString(inline) {
		return fetched
	}
	return inline
}

// promptRequirements keeps every operator requirement except the ones vetoing c.
// A requirement that vetoes nobody is a constraint for the classifier.
func (s *Scorer) promptRequirements(extra []string, c *talent.Candidate) []string {
	var out []string
	for _, requirement := range extra {
		requirement = strings.TrimSpace(requirement)
		if requirement == "" || filtering.Vetoes(requirement, c, s.cfg.Filters.ExclusionVerbs) {
			continue
		}
		out = append(out, requirement)
	}
	return out
}

func (s *Scorer) combine(bonus, classifierScore int) int {
	var total int
	switch s.cfg.Policy {
	case PolicyClassifierOnly:
		total = classifierScore
	default:
		total = bonus + int(math.Round(float64(classifierScore)*s.cfg.Factor))
	}
	return max(total, 0)
}

// hasToken reports whether any token appears in text as a word not negated by a directly preceding "not" or "no".
func hasToken(text string, tokens []string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r < 0x80
	})
	for i, word := range words {
		if i > 0 && (words[i-1] == "not" || words[i-1] == "no") {
			continue
		}
		for _, token := range tokens {
			if word == strings.ToLower(strings.TrimSpace(token)) {
				return true
			}
		}
	}
	return false
}
