package scoring

import (
	"fmt"
	"strings"

	"github.com/spigell/edge-shortlister/internal/filtering"
)

// Policy decides how the classifier score and the bonuses combine.
type Policy string

const (
	// PolicyAdditive adds the scaled classifier score to the bonuses.
	PolicyAdditive Policy = "additive"
	// PolicyClassifierOnly uses the classifier score as the whole score. Bonuses become informational notes.
	PolicyClassifierOnly Policy = "classifier-only"

	defaultFactor               = 1.0
	defaultLimit                = 20
	defaultPlacementsMultiplier = 4
	defaultMaxResumeChars       = 5000
)

// Config holds the scoring knobs read from the scoring section of the config file.
type Config struct {
	Policy               Policy           `mapstructure:"policy"`
	Factor               float64          `mapstructure:"factor"`
	KeepDisqualified     bool             `mapstructure:"keep-disqualified"`
	DefaultLimit         int              `mapstructure:"default-limit"`
	PlacementsMultiplier int              `mapstructure:"placements-multiplier"`
	MaxResumeChars       int              `mapstructure:"max-resume-chars"`
	Shuffle              bool             `mapstructure:"shuffle"`
	Seed                 int64            `mapstructure:"seed"`
	Bonuses              Bonuses          `mapstructure:"bonuses"`
	Filters              filtering.Config `mapstructure:"filters"`
}

// Bonuses are the fixed adjustments applied before the classifier runs.
type Bonuses struct {
	Industry     int      `mapstructure:"industry"`
	Selected     int      `mapstructure:"selected"`
	NotSelected  int      `mapstructure:"not-selected"`
	Rating       int      `mapstructure:"rating"`
	RatingTokens []string `mapstructure:"rating-tokens"`
}

// DefaultConfig returns the scoring settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Policy:               PolicyAdditive,
		Factor:               defaultFactor,
		DefaultLimit:         defaultLimit,
		PlacementsMultiplier: defaultPlacementsMultiplier,
		MaxResumeChars:       defaultMaxResumeChars,
		Bonuses:              DefaultBonuses(),
	}
}

// DefaultBonuses returns the stock bonus table.
func DefaultBonuses() Bonuses {
	return Bonuses{
		Industry:     20,
		Selected:     30,
		NotSelected:  -10,
		Rating:       10,
		RatingTokens: []string{"excellent", "strong", "great", "good", "positive", "outstanding", "recommended"},
	}
}

// normalize fills zero values with defaults and rejects unknown policies.
func (c Config) normalize() (Config, error) {
	policy := Policy(strings.ToLower(strings.TrimSpace(string(c.Policy))))
	switch policy {
	case "":
		policy = PolicyAdditive
	case PolicyAdditive, PolicyClassifierOnly:
	default:
		return c, fmt.Errorf("unknown scoring policy %q (want %q or %q)", c.Policy, PolicyAdditive, PolicyClassifierOnly)
	}
	c.Policy = policy

	if c.Factor <= 0 {
		c.Factor = defaultFactor
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = defaultLimit
	}
	if c.PlacementsMultiplier <= 0 {
		c.PlacementsMultiplier = defaultPlacementsMultiplier
	}
	if c.MaxResumeChars <= 0 {
		c.MaxResumeChars = defaultMaxResumeChars
	}
	// An all-zero point table means the stock one.
	if b := c.Bonuses; b.Industry == 0 && b.Selected == 0 && b.NotSelected == 0 && b.Rating == 0 {
		c.Bonuses = DefaultBonuses()
		if len(b.RatingTokens) > 0 {
			c.Bonuses.RatingTokens = b.RatingTokens
		}
	}
	if len(c.Bonuses.RatingTokens) == 0 {
		c.Bonuses.RatingTokens = DefaultBonuses().RatingTokens
	}
	if c.Filters.MinResumeRunes <= 0 {
		c.Filters.MinResumeRunes = filtering.DefaultMinResumeRunes
	}
	return c, nil
}

// Limit resolves the shortlist size: an explicit positive limit wins, then placements times the multiplier, then the default.
func (c Config) Limit(limit, placements int) int {
	if limit > 0 {
		return limit
	}
	multiplier := c.PlacementsMultiplier
	if multiplier <= 0 {
		multiplier = defaultPlacementsMultiplier
	}
	if placements > 0 {
		return placements * multiplier
	}
	if c.DefaultLimit > 0 {
		return c.DefaultLimit
	}
	return defaultLimit
}
