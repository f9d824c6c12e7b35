package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/ai"
	"github.com/spigell/edge-shortlister/internal/ai/gemini"
	"github.com/spigell/edge-shortlister/internal/export"
	"github.com/spigell/edge-shortlister/internal/filtering"
	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/resume"
	"github.com/spigell/edge-shortlister/internal/scoring"
	"github.com/spigell/edge-shortlister/internal/secrets"
	"github.com/spigell/edge-shortlister/internal/session"
	"github.com/spigell/edge-shortlister/internal/store"
	"github.com/spigell/edge-shortlister/internal/talent"
)

const (
	PromptAddRequirement    = "Add requirement and rerun"
	PromptClearRequirements = "Clear requirements and rerun"
	PromptExportCSV         = "Export shortlist to CSV"
	PromptExportXLSX        = "Export shortlist to XLSX"
	PromptReport            = "Report filters and counts"
	PromptResetSession      = "Reset session and reload inputs"
	PromptExit              = "Exit"

	notesPreviewRunes = 80
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "Next step?",
	Items: []string{PromptAddRequirement, PromptClearRequirements, PromptExportCSV, PromptExportXLSX, PromptReport, PromptResetSession, PromptExit},
}

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Score candidates against an opportunity and rank the best fits",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		if err := shortlist(ctx, cmd, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("shortlist failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(shortlistCmd)

	shortlistCmd.Flags().String("candidates", "", "candidate export (default: the master table from the store)")
	shortlistCmd.Flags().String("opportunities", "", "opportunity export")
	shortlistCmd.Flags().String("feedback", "", "optional interview feedback export")
	shortlistCmd.Flags().StringP("opportunity", "o", "", "opportunity name; asked interactively when empty")
	shortlistCmd.Flags().IntP("limit", "l", 0, "shortlist size (default: placements x multiplier, else scoring.default-limit)")
	shortlistCmd.Flags().StringArrayP("requirement", "r", nil, "extra requirement; repeatable. Use remove/exclude/drop/ignore/skip <name> to veto a candidate")
	shortlistCmd.Flags().String("output", "", "write the shortlist to this .csv or .xlsx file and exit")
	shortlistCmd.Flags().Bool("no-interactive", false, "print the shortlist and exit without the action menu")

	viper.BindPFlag("inputs.candidates", shortlistCmd.Flags().Lookup("candidates"))
	viper.BindPFlag("inputs.opportunities", shortlistCmd.Flags().Lookup("opportunities"))
	viper.BindPFlag("inputs.feedback", shortlistCmd.Flags().Lookup("feedback"))
}

// shortlistRun is the state kept between reruns of the interactive loop.
type shortlistRun struct {
	config  *Config
	logger  *zap.Logger
	session *session.Session
	scorer  *scoring.Scorer
	builder *scoring.Builder

	candidates  []*talent.Candidate
	opportunity *talent.Opportunity
	feedback    talent.FeedbackIndex
	limit       int
}

func shortlist(ctx context.Context, cmd *cobra.Command, l *zap.Logger) error {
	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	l.Info("starting the edge-shortlister", zap.String("version", resolvedVersion()))

	// Fail on a missing credential before any input is read.
	classifier, err := newClassifier(ctx, &config.AI, config.Scoring.MaxResumeChars, l)
	if err != nil {
		return fmt.Errorf("building classifier: %w", err)
	}

	sess := session.New()
	l = l.With(zap.String("session", sess.ID()))

	run := &shortlistRun{config: config, logger: l, session: sess}
	run.limit, _ = cmd.Flags().GetInt("limit")

	opportunity, _ := cmd.Flags().GetString("opportunity")
	if err := run.load(ctx, opportunity); err != nil {
		return err
	}

	fetcher := resume.New(config.Fetcher, l.Named("fetcher"))
	run.scorer, err = scoring.NewScorer(config.Scoring, classifier, fetcher, l.Named("scorer"))
	if err != nil {
		return fmt.Errorf("building scorer: %w", err)
	}
	run.builder = scoring.NewBuilder(run.scorer, run.scorer.Config(), l).OnProgress(func(index, total int, name string) {
		l.Info("scoring candidate", zap.Int("index", index+1), zap.Int("total", total), zap.String(logger.FieldCandidate, name))
	})

	requirements, _ := cmd.Flags().GetStringArray("requirement")
	for _, requirement := range requirements {
		if err := sess.AddRequirement(requirement); err != nil {
			l.Warn("skipping requirement", zap.String("requirement", requirement), zap.Error(err))
		}
	}

	if err := run.build(ctx); err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		return run.save(output)
	}
	if noInteractive, _ := cmd.Flags().GetBool("no-interactive"); noInteractive {
		return nil
	}

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return errExit
			}
			return err
		}

		if err := run.handleAction(ctx, action); err != nil {
			return err
		}
	}
}

func (r *shortlistRun) load(ctx context.Context, opportunity string) error {
	candidates, err := r.candidateTable(ctx)
	if err != nil {
		return err
	}
	r.candidates, err = talent.Candidates(candidates, r.config.Columns)
	if err != nil {
		return fmt.Errorf("reading candidates: %w", err)
	}

	path := r.config.Inputs.Opportunities
	if path == "" {
		return errors.New("an opportunity export is required (--opportunities or inputs.opportunities)")
	}
	table, err := r.session.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading opportunities: %w", err)
	}
	opportunities, err := talent.Opportunities(table, r.config.Columns)
	if err != nil {
		return fmt.Errorf("reading opportunities: %w", err)
	}

	if path := r.config.Inputs.Feedback; path != "" {
		table, err := r.session.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading feedback: %w", err)
		}
		r.feedback, err = talent.FeedbackFrom(table, r.config.Columns)
		if err != nil {
			return fmt.Errorf("reading feedback: %w", err)
		}
	}

	r.opportunity, err = chooseOpportunity(opportunities, opportunity)
	if err != nil {
		return err
	}

	r.logger.Info("inputs loaded",
		zap.Int("candidates", len(r.candidates)),
		zap.Int("opportunities", len(opportunities)),
		zap.Int("feedback", len(r.feedback)),
		zap.String(logger.FieldOpportunity, r.opportunity.Name),
		zap.Int("requirements", len(r.opportunity.Requirements())),
	)
	return nil
}

// candidateTable reads the candidate export, or the master table when no export is given.
func (r *shortlistRun) candidateTable(ctx context.Context) (*talent.Table, error) {
	if path := r.config.Inputs.Candidates; path != "" {
		t, err := r.session.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading candidates: %w", err)
		}
		return t, nil
	}

	st, err := store.Open(ctx, r.config.Store, r.logger)
	if err != nil {
		return nil, fmt.Errorf("opening master store: %w", err)
	}
	t, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("master table %s is empty: pass --candidates or run sync first", st.Location())
	}
	return t, nil
}

func chooseOpportunity(opportunities []*talent.Opportunity, name string) (*talent.Opportunity, error) {
	names := talent.OpportunityNames(opportunities)
	if len(names) == 0 {
		return nil, errors.New("no opportunities found in the export")
	}

	if strings.TrimSpace(name) == "" {
		selector := promptui.Select{
			Label: "Choose an opportunity and press ENTER",
			Items: names,
			Size:  15,
			Searcher: func(input string, index int) bool {
				return strings.Contains(strings.ToLower(names[index]), strings.ToLower(input))
			},
		}
		_, selected, err := selector.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return nil, errExit
			}
			return nil, err
		}
		name = selected
	}

	opportunity := talent.FindOpportunity(opportunities, name)
	if opportunity == nil {
		return nil, fmt.Errorf("opportunity %q not found", name)
	}
	return opportunity, nil
}

func (r *shortlistRun) build(ctx context.Context) error {
	list, err := r.builder.Build(ctx, r.candidates, r.opportunity, r.feedback, r.session.Requirements(), r.limit)
	if err != nil {
		return fmt.Errorf("building shortlist: %w", err)
	}
	r.session.SetLast(list)

	if len(list.Entries) == 0 {
		r.logger.Info("no candidates passed the filters", zap.Int("evaluated", list.Evaluated))
	}
	return printShortlist(os.Stdout, list)
}

func (r *shortlistRun) handleAction(ctx context.Context, action string) error {
	switch action {
	case PromptAddRequirement:
		input := promptui.Prompt{Label: "Requirement"}
		requirement, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return nil
			}
			return err
		}
		if err := r.session.AddRequirement(requirement); err != nil {
			r.logger.Warn("requirement not added", zap.Error(err))
			return nil
		}
		r.logger.Info("requirement added",
			zap.String("requirement", requirement),
			zap.Bool("exclusion", filtering.IsExclusion(requirement, r.scorer.Config().Filters.ExclusionVerbs)),
		)
		return r.build(ctx)
	case PromptClearRequirements:
		r.session.ClearRequirements()
		r.logger.Info("requirements cleared")
		return r.build(ctx)
	case PromptExportCSV:
		return r.save(filepath.Join(r.config.Export.Dir, export.FileName(r.opportunity.Name, "csv")))
	case PromptExportXLSX:
		return r.save(filepath.Join(r.config.Export.Dir, export.FileName(r.opportunity.Name, "xlsx")))
	case PromptReport:
		return r.report()
	case PromptResetSession:
		return r.reset(ctx)
	case PromptExit:
		r.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// reset drops requirements, the last shortlist and the table cache, then rereads the exports
// for the same opportunity so refreshed files are picked up.
func (r *shortlistRun) reset(ctx context.Context) error {
	previous := r.session.ID()
	r.session.Clear()
	r.logger.Info("session reset",
		zap.String("previous_session", previous),
		zap.String("new_session", r.session.ID()),
	)

	if err := r.load(ctx, r.opportunity.Name); err != nil {
		return err
	}
	return r.build(ctx)
}

func (r *shortlistRun) save(path string) error {
	list := r.session.Last()
	if list == nil {
		return errors.New("nothing to export yet")
	}
	if err := export.Save(path, list, r.config.Export.Columns); err != nil {
		return fmt.Errorf("exporting shortlist: %w", err)
	}
	r.logger.Info("shortlist exported", zap.String("filename", path), zap.Int("rows", len(list.Entries)))
	return nil
}

type filterReport struct {
	Name    string            `yaml:"name"`
	Enabled bool              `yaml:"enabled"`
	Reason  string            `yaml:"reason,omitempty"`
	Details map[string]string `yaml:"details,omitempty"`
}

func (r *shortlistRun) report() error {
	list := r.session.Last()
	if list == nil {
		return errors.New("no shortlist built yet")
	}

	filters := make([]filterReport, 0)
	for _, status := range filtering.Describe(r.scorer.Filters()) {
		filters = append(filters, filterReport(status))
	}

	entries, hits := r.session.CacheStats()
	return writeYAML(map[string]any{
		"session":      r.session.ID(),
		"started":      r.session.Started().Format(time.RFC3339),
		"opportunity":  list.Opportunity,
		"requirements": r.session.Requirements(),
		"policy":       string(r.scorer.Config().Policy),
		"counts": map[string]int{
			"candidates":   list.Total,
			"evaluated":    list.Evaluated,
			"disqualified": list.Disqualified,
			"ai_errors":    list.AIErrors,
			"passed":       list.Passed,
			"shortlisted":  len(list.Entries),
			"limit":        list.Limit,
		},
		"duration": list.Duration.String(),
		"filters":  filters,
		"table_cache": map[string]int{
			"entries": entries,
			"hits":    hits,
		},
	})
}

func printShortlist(w io.Writer, list *scoring.Shortlist) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tNAME\tSCORE\tNOTES\n")
	for i, r := range list.Entries {
		notes := strings.Join(r.Notes, export.NotesSeparator)
		if runes := []rune(notes); len(runes) > notesPreviewRunes {
			notes = string(runes[:notesPreviewRunes]) + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, r.Name, r.Score, notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s: %d shortlisted of %d passed, %d evaluated, %d disqualified, %d classifier errors in %s\n",
		list.Opportunity, len(list.Entries), list.Passed, list.Evaluated, list.Disqualified, list.AIErrors, list.Duration.Round(time.Millisecond))
	return err
}

func newClassifier(ctx context.Context, cfg *AIConfig, maxResumeChars int, l *zap.Logger) (ai.Classifier, error) {
	gcfg := cfg.Gemini

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gcfg.APIKey,
		File:  gcfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, ai.gemini.api-key or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(l, "gemini", gcfg.Model).With(zap.Int("ai_retry_attempts", gcfg.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	if gcfg.MaxResumeChars > 0 {
		maxResumeChars = gcfg.MaxResumeChars
	}

	return gemini.NewClassifier(generator, maxResumeChars, gcfg.MaxLogLength, logger.WithCommonFields(l, "gemini", generator.Model())), nil
}
