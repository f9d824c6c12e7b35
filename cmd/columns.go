package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/talent"
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Show how the configured column mapping resolves against export headers",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		out, err := runColumns(cmd)
		if err != nil {
			logger.Fatal("resolving columns", zap.Error(err))
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(columnsCmd)

	columnsCmd.Flags().String("candidates", "", "candidate export to resolve")
	columnsCmd.Flags().String("opportunities", "", "opportunity export to resolve")
	columnsCmd.Flags().String("feedback", "", "interview feedback export to resolve")
	columnsCmd.Flags().Bool("defaults", false, "print the effective mapping configuration instead")
}

type resolvedColumns struct {
	Source   string            `yaml:"source"`
	Renamed  []string          `yaml:"renamed,omitempty"`
	Fields   map[string]string `yaml:"fields"`
	Tasks    []string          `yaml:"tasks,omitempty"`
	Unmapped []string          `yaml:"unmapped,omitempty"`
}

func runColumns(cmd *cobra.Command) (string, error) {
	config, err := getConfig()
	if err != nil {
		return "", fmt.Errorf("getting a config: %w", err)
	}

	if defaults, _ := cmd.Flags().GetBool("defaults"); defaults {
		out, err := yaml.Marshal(map[string]any{"columns": config.Columns})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	report := map[string]*resolvedColumns{}

	sources := []struct {
		flag  string
		rules map[string]talent.FieldRule
		tasks bool
	}{
		{flag: "candidates", rules: config.Columns.Candidate},
		{flag: "opportunities", rules: config.Columns.Opportunity, tasks: true},
		{flag: "feedback", rules: config.Columns.Feedback},
	}

	for _, src := range sources {
		path, _ := cmd.Flags().GetString(src.flag)
		if path == "" {
			continue
		}

		t, err := talent.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}

		entry := &resolvedColumns{Source: path, Fields: map[string]string{}}
		entry.Renamed = talent.NormalizeColumns(t, config.Columns.Aliases)

		resolved := talent.Resolve(t.Header, src.rules)
		for _, field := range resolved.Fields() {
			column := resolved.Column(field)
			if column == "" {
				entry.Unmapped = append(entry.Unmapped, field)
				continue
			}
			entry.Fields[field] = column
		}

		if src.tasks {
			for _, idx := range config.Columns.Tasks.TaskIndexes(t.Header) {
				entry.Tasks = append(entry.Tasks, t.Header[idx])
			}
		}

		report[src.flag] = entry
	}

	if len(report) == 0 {
		return "", fmt.Errorf("nothing to resolve: pass --candidates, --opportunities or --feedback")
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// writeYAML prints v to stdout.
func writeYAML(v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
