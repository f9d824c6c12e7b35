package scoring

import (
	"cmp"
	"context"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/talent"
)

// Progress is called before each candidate is scored, with a zero-based index.
type Progress func(index, total int, name string)

type candidateScorer interface {
	Score(ctx context.Context, c *talent.Candidate, opp *talent.Opportunity, feedback talent.FeedbackIndex, extra []string) (*Result, error)
}

// Shortlist is the outcome of one build.
type Shortlist struct {
	Opportunity string
	Limit       int

	// Entries is the ranked, truncated shortlist.
	Entries []*Result

	// Scored holds every evaluated candidate in input order.
	Scored []*Result

	Total        int
	Evaluated    int
	Passed       int
	Disqualified int
	AIErrors     int
	Duration     time.Duration
}

// Builder scores a batch of candidates and ranks the survivors.
type Builder struct {
	scorer   candidateScorer
	cfg      Config
	progress Progress
	logger   *zap.Logger
}

// NewBuilder creates a Builder. cfg supplies the threshold, limit and shuffle settings.
func NewBuilder(scorer candidateScorer, cfg Config, l *zap.Logger) *Builder {
	return &Builder{scorer: scorer, cfg: cfg, logger: logger.OrNop(l)}
}

// OnProgress registers a progress callback.
func (b *Builder) OnProgress(p Progress) *Builder {
	b.progress = p
	return b
}

// Build scores every candidate sequentially and returns the top of the ranking.
// Cancellation of ctx stops the batch and is returned as the error.
func (b *Builder) Build(ctx context.Context, candidates []*talent.Candidate, opp *talent.Opportunity, feedback talent.FeedbackIndex, extra []string, limit int) (*Shortlist, error) {
	if opp == nil {
		return nil, ErrNoOpportunity
	}
	started := time.Now()
	name := opp.Name

	list := &Shortlist{
		Opportunity: name,
		Limit:       b.cfg.Limit(limit, opp.Placements),
		Total:       len(candidates),
		Scored:      make([]*Result, 0, len(candidates)),
	}

	b.logger.Info("building shortlist",
		zap.String(logger.FieldOpportunity, name),
		zap.Int("candidates", list.Total),
		zap.Int("limit", list.Limit),
		zap.Int("extra_requirements", len(extra)),
	)

	passing := make([]*Result, 0, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.progress != nil {
			b.progress(i, list.Total, c.Name)
		}

		result, err := b.scorer.Score(ctx, c, opp, feedback, extra)
		if err != nil {
			return nil, err
		}

		list.Evaluated++
		list.Scored = append(list.Scored, result)
		if result.Disqualified() {
			list.Disqualified++
		}
		if result.AIError {
			list.AIErrors++
		}
		if b.keep(result) {
			passing = append(passing, result)
		}
	}
	list.Passed = len(passing)

	if b.cfg.Shuffle {
		seed := b.cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(passing), func(i, j int) { passing[i], passing[j] = passing[j], passing[i] })
	}

	slices.SortStableFunc(passing, func(x, y *Result) int {
		return cmp.Compare(y.Score, x.Score)
	})

	if len(passing) > list.Limit {
		passing = passing[:list.Limit]
	}
	list.Entries = passing
	list.Duration = time.Since(started)

	b.logger.Info("shortlist ready",
		zap.String(logger.FieldOpportunity, name),
		zap.Int("evaluated", list.Evaluated),
		zap.Int("passed", list.Passed),
		zap.Int("disqualified", list.Disqualified),
		zap.Int("ai_errors", list.AIErrors),
		zap.Int("shortlisted", len(list.Entries)),
		zap.Duration("duration", list.Duration),
	)

	return list, nil
}

func (b *Builder) keep(r *Result) bool {
	if b.cfg.KeepDisqualified {
		return r.Score >= 0
	}
	return r.Score > 0
}
