package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/ai"
	"github.com/spigell/edge-shortlister/internal/filtering"
	"github.com/spigell/edge-shortlister/internal/talent"
)

var longResume = strings.Repeat("Seasoned auditor with Go and SQL experience. ", 3)

type stubClassifier struct {
	score    int
	err      error
	failFor  map[string]bool
	calls    int
	requests []*ai.Request
}

func (s *stubClassifier) Classify(_ context.Context, req *ai.Request) (*ai.Assessment, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil || s.failFor[req.CandidateName] {
		err := s.err
		if err == nil {
			err = errors.New("model unavailable")
		}
		return nil, err
	}
	return &ai.Assessment{Score: s.score, Justification: "fits " + req.CandidateName}, nil
}

type stubFetcher struct {
	texts map[string]string
	calls int
}

func (s *stubFetcher) Fetch(_ context.Context, url string) string {
	s.calls++
	return s.texts[url]
}

func newTestScorer(t *testing.T, cfg Config, classifier ai.Classifier, fetcher Fetcher) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg, classifier, fetcher, zap.NewNop())
	require.NoError(t, err)
	return s
}

func person(name string) *talent.Candidate {
	return &talent.Candidate{Name: name, Country: "US", Gender: "F", ResumeText: longResume}
}

func TestScoreHardFiltersSkipClassifier(t *testing.T) {
	cases := []struct {
		name   string
		cand   *talent.Candidate
		opp    *talent.Opportunity
		extra  []string
		filter string
		note   string
	}{
		{
			name:   "no resume",
			cand:   &talent.Candidate{Name: "A", Country: "US"},
			opp:    &talent.Opportunity{Name: "Audit"},
			filter: filtering.NameResumePresence,
			note:   "Disqualified: no resume",
		},
		{
			name:   "manual exclusion",
			cand:   person("Mary Major"),
			opp:    &talent.Opportunity{Name: "Audit", Tag: "Finance"},
			extra:  []string{"exclude Mary Major please"},
			filter: filtering.NameManualExclusion,
			note:   `Manually excluded: "exclude Mary Major please"`,
		},
		{
			name:   "country",
			cand:   person("B"),
			opp:    &talent.Opportunity{Name: "Audit", Country: "CA"},
			filter: filtering.NameCountry,
			note:   "Missed Country Requirement",
		},
		{
			name:   "gender",
			cand:   person("C"),
			opp:    &talent.Opportunity{Name: "Audit", Gender: "M"},
			filter: filtering.NameGender,
			note:   "Missed Gender Requirement",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classifier := &stubClassifier{score: 90}
			fetcher := &stubFetcher{}
			s := newTestScorer(t, Config{}, classifier, fetcher)

			got, err := s.Score(context.Background(), tc.cand, tc.opp, nil, tc.extra)
			require.NoError(t, err)

			assert.Equal(t, 0, got.Score)
			assert.Equal(t, []string{tc.note}, got.Notes)
			assert.Equal(t, tc.filter, got.Filter)
			assert.True(t, got.Disqualified())
			assert.Zero(t, classifier.calls)
			assert.Zero(t, fetcher.calls)
		})
	}
}

func TestScoreAdditiveBonuses(t *testing.T) {
	classifier := &stubClassifier{score: 61}
	s := newTestScorer(t, Config{Factor: 0.5}, classifier, nil)

	cand := person("Ada Lovelace")
	cand.Tag = "finance "
	opp := &talent.Opportunity{Name: "Audit", Tag: "Finance"}
	feedback := talent.FeedbackIndex{"ada lovelace": {Name: "Ada Lovelace", Status: "Selected", Rating: "Strong communicator"}}

	got, err := s.Score(context.Background(), cand, opp, feedback, nil)
	require.NoError(t, err)

	// 20 + 30 + 10 + round(61 * 0.5)
	assert.Equal(t, 91, got.Score)
	assert.Equal(t, []string{
		"Industry/School match (+20)",
		"Interview: selected (+30)",
		"Positive interview rating (+10)",
		"AI: fits Ada Lovelace",
	}, got.Notes)
	assert.Equal(t, "fits Ada Lovelace", got.Justification)
	assert.False(t, got.Disqualified())
}

func TestScoreNotSelectedPenaltyClampsAtZero(t *testing.T) {
	classifier := &stubClassifier{score: 4}
	s := newTestScorer(t, Config{}, classifier, nil)

	feedback := talent.FeedbackIndex{"bo": {Name: "Bo", Status: "Not Selected", Rating: "weak"}}
	got, err := s.Score(context.Background(), person("Bo"), &talent.Opportunity{Name: "Audit"}, feedback, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, []string{"Interview: not selected (-10)", "AI: fits Bo"}, got.Notes)
}

func TestScoreClassifierOnlyPolicy(t *testing.T) {
	classifier := &stubClassifier{score: 77}
	s := newTestScorer(t, Config{Policy: "Classifier-Only"}, classifier, nil)

	cand := person("Ada")
	cand.Tag = "Finance"
	got, err := s.Score(context.Background(), cand, &talent.Opportunity{Name: "Audit", Tag: "finance"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 77, got.Score)
	assert.Equal(t, []string{"Industry/School match (+20) (informational)", "AI: fits Ada"}, got.Notes)
}

func TestNewScorerRejectsUnknownPolicy(t *testing.T) {
	_, err := NewScorer(Config{Policy: "multiplicative"}, &stubClassifier{}, nil, nil)
	require.ErrorContains(t, err, "unknown scoring policy")

	_, err = NewScorer(Config{}, nil, nil, nil)
	require.Error(t, err)
}

func TestScoreClassifierFailureBecomesNote(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("parse gemini response: missing score")}
	s := newTestScorer(t, Config{}, classifier, nil)

	cand := person("Ada")
	cand.Tag = "Finance"
	got, err := s.Score(context.Background(), cand, &talent.Opportunity{Name: "Audit", Tag: "Finance"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 20, got.Score)
	assert.True(t, got.AIError)
	assert.Equal(t, "AI Error: parse gemini response: missing score", got.Justification)
	assert.Equal(t, []string{"Industry/School match (+20)", "AI Error: parse gemini response: missing score"}, got.Notes)
}

func TestScoreFetchesShortInlineResume(t *testing.T) {
	classifier := &stubClassifier{score: 50}
	fetcher := &stubFetcher{texts: map[string]string{"http://ok/a.pdf": longResume}}
	s := newTestScorer(t, Config{MaxResumeChars: 20}, classifier, fetcher)

	cand := &talent.Candidate{Name: "A", ResumeText: "see link", ResumeLink: "http://ok/a.pdf"}
	got, err := s.Score(context.Background(), cand, &talent.Opportunity{Name: "Audit"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 50, got.Score)
	assert.Equal(t, 1, fetcher.calls)
	require.Len(t, classifier.requests, 1)
	assert.Equal(t, []rune(longResume)[:20], []rune(classifier.requests[0].ResumeText))
}

func TestScoreUnreadableResumeIsHardFilter(t *testing.T) {
	classifier := &stubClassifier{score: 50}
	fetcher := &stubFetcher{}
	s := newTestScorer(t, Config{}, classifier, fetcher)

	cand := &talent.Candidate{Name: "A", ResumeLink: "http://broken/a.pdf", Tag: "Finance"}
	got, err := s.Score(context.Background(), cand, &talent.Opportunity{Name: "Audit", Tag: "Finance"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, []string{filtering.NoteResumeUnreadable}, got.Notes, "bonus notes are dropped on disqualification")
	assert.Equal(t, filtering.NameResumeText, got.Filter)
	assert.Equal(t, 1, fetcher.calls)
	assert.Zero(t, classifier.calls)
}

func TestScoreBuildsClassifierRequest(t *testing.T) {
	classifier := &stubClassifier{score: 10}
	s := newTestScorer(t, Config{}, classifier, nil)

	opp := &talent.Opportunity{
		Name: "Audit",
		Tasks: []talent.Task{
			{Column: "Task: Reconciliation", Value: "Yes"},
			{Column: "Task: Payroll", Value: "No"},
			{Column: "Task: Reporting", Value: "Occasional"},
		},
	}
	cand := person("Ada")
	cand.ID = "C-1"

	_, err := s.Score(context.Background(), cand, opp, nil, []string{"Must speak Swahili", "remove Bob", "  "})
	require.NoError(t, err)

	require.Len(t, classifier.requests, 1)
	req := classifier.requests[0]
	assert.Equal(t, "C-1", req.CandidateID)
	assert.Equal(t, "Audit", req.Opportunity)
	assert.Equal(t, []string{"Task: Reconciliation: Yes", "Task: Reporting: Occasional"}, req.Requirements)
	assert.Equal(t, []string{"Must speak Swahili", "remove Bob"}, req.Extra)
}

func TestScorePassesNonVetoingRequirementsToClassifier(t *testing.T) {
	classifier := &stubClassifier{score: 70}
	s := newTestScorer(t, Config{}, classifier, nil)

	extra := []string{
		"Must have dropshipping experience",
		"Skip candidates without Excel skills",
		"Ignore employment gaps",
	}
	got, err := s.Score(context.Background(), person("Ann Lee"), &talent.Opportunity{Name: "Audit"}, nil, extra)
	require.NoError(t, err)

	assert.Equal(t, 70, got.Score)
	require.Len(t, classifier.requests, 1)
	assert.Equal(t, extra, classifier.requests[0].Extra)
}

func TestScoreWithholdsVetoFromPromptWhenGateDisabled(t *testing.T) {
	classifier := &stubClassifier{score: 40}
	cfg := Config{Filters: filtering.Config{DisabledFilters: []string{filtering.NameManualExclusion}}}
	s := newTestScorer(t, cfg, classifier, nil)

	got, err := s.Score(context.Background(), person("Ann Lee"), &talent.Opportunity{Name: "Audit"}, nil,
		[]string{"drop Ann Lee", "Knows IFRS"})
	require.NoError(t, err)

	assert.Equal(t, 40, got.Score)
	require.Len(t, classifier.requests, 1)
	assert.Equal(t, []string{"Knows IFRS"}, classifier.requests[0].Extra)
}

func TestScoreNegatedRatingEarnsNoBonus(t *testing.T) {
	cases := []struct {
		rating string
		bonus  bool
	}{
		{rating: "Good", bonus: true},
		{rating: "not good", bonus: false},
		{rating: "no strong signals", bonus: false},
		{rating: "Not bad, strong in SQL", bonus: true},
	}

	for _, tc := range cases {
		t.Run(tc.rating, func(t *testing.T) {
			s := newTestScorer(t, Config{}, &stubClassifier{score: 50}, nil)
			feedback := talent.FeedbackIndex{"ada": {Name: "Ada", Rating: tc.rating}}

			got, err := s.Score(context.Background(), person("Ada"), &talent.Opportunity{Name: "Audit"}, feedback, nil)
			require.NoError(t, err)

			if tc.bonus {
				assert.Equal(t, 60, got.Score)
				assert.Contains(t, got.Notes, "Positive interview rating (+10)")
			} else {
				assert.Equal(t, 50, got.Score)
				assert.NotContains(t, got.Notes, "Positive interview rating (+10)")
			}
		})
	}
}

func TestScoreRequiresOpportunity(t *testing.T) {
	classifier := &stubClassifier{score: 50}
	s := newTestScorer(t, Config{}, classifier, nil)

	_, err := s.Score(context.Background(), person("Ada"), nil, nil, nil)
	require.ErrorIs(t, err, ErrNoOpportunity)
	assert.Zero(t, classifier.calls)
}

func TestScoreReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := ai.ClassifierFunc(func(context.Context, *ai.Request) (*ai.Assessment, error) {
		cancel()
		return nil, context.Canceled
	})
	s := newTestScorer(t, Config{}, classifier, nil)

	_, err := s.Score(ctx, person("Ada"), &talent.Opportunity{Name: "Audit"}, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigLimit(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 7, cfg.Limit(7, 3))
	assert.Equal(t, 12, cfg.Limit(0, 3))
	assert.Equal(t, 20, cfg.Limit(-1, 0))
	assert.Equal(t, 20, Config{}.Limit(0, 0))
}

func TestConfigNormalizeFillsBonusTable(t *testing.T) {
	cfg, err := Config{Bonuses: Bonuses{RatingTokens: []string{"stellar"}}}.normalize()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Bonuses.Industry)
	assert.Equal(t, -10, cfg.Bonuses.NotSelected)
	assert.Equal(t, []string{"stellar"}, cfg.Bonuses.RatingTokens)

	custom, err := Config{Bonuses: Bonuses{Industry: 5}}.normalize()
	require.NoError(t, err)
	assert.Equal(t, 5, custom.Bonuses.Industry)
	assert.Zero(t, custom.Bonuses.Selected)
}
