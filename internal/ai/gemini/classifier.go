package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/ai"
	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var systemPrompt string

const (
	defaultMaxLogLength   = 200
	defaultMaxResumeChars = 5000
	maxRequirementRunes   = 300
)

// Classifier implements ai.Classifier on top of a Gemini content generator.
type Classifier struct {
	generator      contentGenerator
	logger         *zap.Logger
	maxResumeChars int
	maxLogLen      int
}

var _ ai.Classifier = (*Classifier)(nil)

func NewClassifier(generator contentGenerator, maxResumeChars, maxLogLength int, l *zap.Logger) *Classifier {
	if maxResumeChars <= 0 {
		maxResumeChars = defaultMaxResumeChars
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Classifier{
		generator:      generator,
		logger:         logger.OrNop(l),
		maxResumeChars: maxResumeChars,
		maxLogLen:      maxLogLength,
	}
}

func (c *Classifier) Classify(ctx context.Context, req *ai.Request) (*ai.Assessment, error) {
	if req == nil {
		return nil, errors.New("classification request is required")
	}
	if c.generator == nil {
		return nil, errors.New("content generator is not configured")
	}

	message := buildMessage(req, c.maxResumeChars)
	candidate := logger.CandidateFields(req.CandidateName, req.CandidateID)

	c.logger.Debug("gemini classify request", append(candidate,
		zap.String(logger.FieldOpportunity, req.Opportunity),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, c.maxLogLen)),
	)...)

	raw, err := c.generator.GenerateContent(ctx, systemPrompt, message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini classify response", append(candidate,
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)...)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	assessment.Raw = raw
	return assessment, nil
}

func buildMessage(req *ai.Request, maxResumeChars int) string {
	var b strings.Builder

	if name := sanitizeLine(req.Opportunity); name != "" {
		fmt.Fprintf(&b, "Job: %s\n\n", name)
	}

	b.WriteString("Job requirements:\n")
	writeList(&b, req.Requirements)

	b.WriteString("\nAdditional requirements:\n")
	writeList(&b, req.Extra)

	b.WriteString("\nResume text:\n")
	b.WriteString(utils.Clip(strings.TrimSpace(req.ResumeText), maxResumeChars))
	b.WriteString("\n")

	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	written := 0
	for _, item := range items {
		line := sanitizeLine(item)
		if line == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
		written++
	}
	if written == 0 {
		b.WriteString("- none\n")
	}
}

// sanitizeLine flattens recruiter input to one bounded line that cannot open a fake prompt section.
func sanitizeLine(s string) string {
	s = strings.NewReplacer("[", "(", "]", ")").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return utils.Clip(s, maxRequirementRunes)
}

func parseResponse(raw string) (*ai.Assessment, error) {
	cleaned := extractJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("parse gemini response: no json object in %q", utils.TruncateForLog(raw, defaultMaxLogLength))
		}
		cleaned = cleaned[start : end+1]
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	rawScore, ok := data["score"]
	if !ok {
		return nil, errors.New("parse gemini response: missing score")
	}
	score := coerceFloat(rawScore)
	if math.IsNaN(score) {
		return nil, fmt.Errorf("parse gemini response: invalid score %v", rawScore)
	}

	rawJustification, ok := data["justification"]
	if !ok {
		return nil, errors.New("parse gemini response: missing justification")
	}

	return &ai.Assessment{
		Score:         clampScore(score),
		Justification: coerceString(rawJustification),
	}, nil
}

// clampScore bounds the float before converting so huge or infinite scores do not overflow.
func clampScore(score float64) int {
	return int(math.Round(math.Min(math.Max(score, 0), 100)))
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
