// Package classifier assigns collected artifacts to one of the five
// automation-impact categories, following the same prompt -> structured
// parse -> validated result pattern as the source scorer.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/model"
	"github.com/impactwatch/intel-cli/internal/ratelimit"
	"github.com/impactwatch/intel-cli/pkg/anthropic"
)

const classifySystemPrompt = `You classify evidence about automation's impact on a profession into exactly one category:
- replace: automation substitutes for the profession's core tasks
- augment: automation assists the profession without replacing it
- new_tasks: automation creates new tasks or roles for the profession
- human_only: the evidence argues the work resists automation
- general: broad discussion not fitting one impact direction

Respond with a valid JSON object and nothing else:
{"category": "<category>", "confidence": <0.0-1.0>, "rationale": "<one sentence>"}`

const classifyUserPrompt = `Title: %s
URL: %s

Content excerpt:
%s`

// contentBudget bounds the excerpt embedded in the prompt.
const contentBudget = 3000

// apiType tags classifier calls in the cost ledger.
const apiType = "anthropic_classifier"

// Config configures the Classifier.
type Config struct {
	Model     string
	MaxTokens int64
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-haiku-4-5-20251001"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	return c
}

// Classifier assigns impact categories to artifacts.
type Classifier struct {
	ai      anthropic.Client
	limiter *ratelimit.Registry
	costs   *cost.Tracker
	calc    *cost.Calculator
	cfg     Config

	nowFunc func() time.Time
}

// New creates a Classifier.
func New(ai anthropic.Client, limiter *ratelimit.Registry, costs *cost.Tracker, calc *cost.Calculator, cfg Config) *Classifier {
	return &Classifier{
		ai:      ai,
		limiter: limiter,
		costs:   costs,
		calc:    calc,
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// classifyResult is the expected JSON shape of the model response.
type classifyResult struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Classify assigns one impact category to the artifact. It never returns an
// error: call or parse failures resolve to category "general" with zero
// confidence and a rationale noting the failure.
func (c *Classifier) Classify(ctx context.Context, artifact model.Artifact) model.Classification {
	cls, err := c.classify(ctx, artifact)
	if err != nil {
		zap.L().Warn("classifier: classification failed, returning fallback",
			zap.String("artifact_id", artifact.ID),
			zap.Error(err),
		)
		return model.Classification{
			ArtifactID:   artifact.ID,
			Category:     model.CategoryGeneral,
			Confidence:   0,
			Rationale:    fmt.Sprintf("classification failed: %v", err),
			ModelUsed:    c.cfg.Model,
			ClassifiedAt: c.nowFunc().UTC(),
		}
	}
	return cls
}

func (c *Classifier) classify(ctx context.Context, artifact model.Artifact) (model.Classification, error) {
	excerpt := artifact.Content
	if len(excerpt) > contentBudget {
		cut := contentBudget
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	if err := c.limiter.Wait(ctx, "anthropic"); err != nil {
		return model.Classification{}, err
	}

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(classifyUserPrompt, artifact.Title, artifact.URL, excerpt),
		}},
	})
	if err != nil {
		return model.Classification{}, err
	}

	resp.Usage.Log(c.cfg.Model, "classify")
	c.costs.Record(apiType, resp.Usage.Total(),
		c.calc.Claude(c.cfg.Model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)))

	result, err := parseResult(resp.Text())
	if err != nil {
		return model.Classification{}, err
	}

	cls := model.Classification{
		ArtifactID:   artifact.ID,
		Category:     model.Category(result.Category),
		Confidence:   clamp01(result.Confidence),
		Rationale:    result.Rationale,
		ModelUsed:    c.cfg.Model,
		ClassifiedAt: c.nowFunc().UTC(),
	}
	if !cls.Category.Valid() {
		return model.Classification{}, fmt.Errorf("unknown category %q", result.Category)
	}

	zap.L().Info("classifier: classified artifact",
		zap.String("artifact_id", artifact.ID),
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence),
	)
	return cls, nil
}

// parseResult extracts the JSON object from the response text, tolerating
// surrounding prose or code fences.
func parseResult(text string) (classifyResult, error) {
	var result classifyResult

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return result, fmt.Errorf("no JSON object in response")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
