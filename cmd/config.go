package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/spigell/edge-shortlister/internal/ai/gemini"
	"github.com/spigell/edge-shortlister/internal/export"
	"github.com/spigell/edge-shortlister/internal/resume"
	"github.com/spigell/edge-shortlister/internal/scoring"
	"github.com/spigell/edge-shortlister/internal/store"
	"github.com/spigell/edge-shortlister/internal/talent"
)

type Config struct {
	Inputs  InputsConfig         `mapstructure:"inputs"`
	Columns talent.ColumnMapping `mapstructure:"columns"`
	Scoring scoring.Config       `mapstructure:"scoring"`
	AI      AIConfig             `mapstructure:"ai"`
	Fetcher resume.Config        `mapstructure:"fetcher"`
	Store   store.Config         `mapstructure:"store"`
	Export  ExportConfig         `mapstructure:"export"`
}

// InputsConfig holds default paths for the exports; flags override them.
type InputsConfig struct {
	Candidates    string `mapstructure:"candidates"`
	Opportunities string `mapstructure:"opportunities"`
	Feedback      string `mapstructure:"feedback"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
	MaxResumeChars int    `mapstructure:"max-resume-chars"`
}

type ExportConfig struct {
	Dir     string         `mapstructure:"dir"`
	Columns export.Options `mapstructure:"columns"`
}

func defaultConfig() Config {
	return Config{
		Columns: talent.DefaultMapping(),
		Scoring: scoring.DefaultConfig(),
		AI: AIConfig{
			Provider: "gemini",
			Gemini: &GeminiConfig{
				Model:          gemini.DefaultModel,
				MaxRetries:     3,
				MaxLogLength:   200,
				MaxResumeChars: 5000,
			},
		},
		Store: store.Config{
			Backend:   "file",
			KeyColumn: store.DefaultKeyColumn,
			Path:      "data/master_candidates.csv",
		},
		Export: ExportConfig{Dir: "."},
	}
}

// setDefaults registers the scalar keys with viper so EDGE_* variables reach Unmarshal.
func setDefaults() {
	d := defaultConfig()

	viper.SetDefault("inputs.candidates", "")
	viper.SetDefault("inputs.opportunities", "")
	viper.SetDefault("inputs.feedback", "")

	viper.SetDefault("scoring.policy", string(d.Scoring.Policy))
	viper.SetDefault("scoring.factor", d.Scoring.Factor)
	viper.SetDefault("scoring.keep-disqualified", d.Scoring.KeepDisqualified)
	viper.SetDefault("scoring.default-limit", d.Scoring.DefaultLimit)
	viper.SetDefault("scoring.placements-multiplier", d.Scoring.PlacementsMultiplier)
	viper.SetDefault("scoring.max-resume-chars", d.Scoring.MaxResumeChars)
	viper.SetDefault("scoring.shuffle", false)
	viper.SetDefault("scoring.seed", 0)

	viper.SetDefault("ai.provider", d.AI.Provider)
	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", d.AI.Gemini.Model)
	viper.SetDefault("ai.gemini.max-retries", d.AI.Gemini.MaxRetries)

	viper.SetDefault("fetcher.user-agent", "")
	viper.SetDefault("fetcher.timeout", "20s")

	viper.SetDefault("store.backend", d.Store.Backend)
	viper.SetDefault("store.key-column", d.Store.KeyColumn)
	viper.SetDefault("store.path", d.Store.Path)
	viper.SetDefault("store.s3.bucket", "")
	viper.SetDefault("store.s3.key", "")
	viper.SetDefault("store.s3.region", "")
	viper.SetDefault("store.s3.endpoint", "")
	viper.SetDefault("store.s3.access-key-id", "")
	viper.SetDefault("store.s3.secret-access-key", "")

	viper.SetDefault("export.dir", d.Export.Dir)
}

func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.AI.Gemini == nil {
		config.AI.Gemini = defaultConfig().AI.Gemini
	}

	if provider := strings.ToLower(strings.TrimSpace(config.AI.Provider)); provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	return &config, nil
}
