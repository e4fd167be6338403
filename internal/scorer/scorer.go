// Package scorer produces reproducible, doctrine-based credibility judgments
// for collected artifacts: an LLM grades each artifact against a structured
// reliability/credibility doctrine, and a pure weighted composite turns the
// grades into an overall score.
package scorer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/model"
	"github.com/impactwatch/intel-cli/internal/ratelimit"
	"github.com/impactwatch/intel-cli/pkg/anthropic"
)

// contentBudget bounds the artifact excerpt embedded in the prompt to keep
// token cost predictable.
const contentBudget = 4000

// apiType tags scorer calls in the cost ledger.
const apiType = "anthropic_scorer"

// Config configures the SourceScorer.
type Config struct {
	Model     string
	MaxTokens int64
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-haiku-4-5-20251001"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	return c
}

// SourceScorer evaluates artifacts against the credibility doctrine.
type SourceScorer struct {
	ai      anthropic.Client
	limiter *ratelimit.Registry
	costs   *cost.Tracker
	calc    *cost.Calculator
	cfg     Config

	nowFunc func() time.Time
}

// New creates a SourceScorer.
func New(ai anthropic.Client, limiter *ratelimit.Registry, costs *cost.Tracker, calc *cost.Calculator, cfg Config) *SourceScorer {
	return &SourceScorer{
		ai:      ai,
		limiter: limiter,
		costs:   costs,
		calc:    calc,
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// Score produces a SourceScore for one artifact. It never returns an error:
// any failure during the API call or parsing yields a sentinel score so a
// scoring failure cannot abort a batch run.
func (s *SourceScorer) Score(ctx context.Context, artifact model.Artifact) model.SourceScore {
	score, err := s.score(ctx, artifact)
	if err != nil {
		zap.L().Warn("scorer: scoring failed, returning sentinel",
			zap.String("artifact_id", artifact.ID),
			zap.Error(err),
		)
		return s.sentinel(artifact.ID, err)
	}
	return score
}

func (s *SourceScorer) score(ctx context.Context, artifact model.Artifact) (model.SourceScore, error) {
	excerpt := artifact.Content
	if len(excerpt) > contentBudget {
		cut := contentBudget
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	if err := s.limiter.Wait(ctx, "anthropic"); err != nil {
		return model.SourceScore{}, err
	}

	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(doctrineSystemPrompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(scoreUserPrompt, artifact.URL, artifact.Title, artifact.SourceType, excerpt),
		}},
	})
	if err != nil {
		return model.SourceScore{}, err
	}

	resp.Usage.Log(s.cfg.Model, "score")
	s.costs.Record(apiType, resp.Usage.Total(),
		s.calc.Claude(s.cfg.Model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)))

	p := parseResponse(resp.Text())

	score := model.SourceScore{
		ArtifactID:        artifact.ID,
		SourceReliability: p.Reliability,
		InfoCredibility:   p.Credibility,
		Specificity:       p.Specificity,
		Recency:           p.Recency,
		Evidence:          p.Evidence,
		Expert:            p.Expert,
		OverallScore:      Composite(p.Reliability, p.Credibility, p.Specificity, p.Recency, p.Evidence, p.Expert),
		Rationale:         p.Rationale,
		ModelUsed:         s.cfg.Model,
		ScoredAt:          s.nowFunc().UTC(),
	}

	zap.L().Info("scorer: scored artifact",
		zap.String("artifact_id", artifact.ID),
		zap.String("reliability", string(score.SourceReliability)),
		zap.Int("credibility", int(score.InfoCredibility)),
		zap.Float64("overall", score.OverallScore),
	)
	return score, nil
}

// sentinel is the well-formed score emitted when scoring fails outright.
func (s *SourceScorer) sentinel(artifactID string, cause error) model.SourceScore {
	return model.SourceScore{
		ArtifactID:        artifactID,
		SourceReliability: model.ReliabilityF,
		InfoCredibility:   6,
		Specificity:       0,
		Recency:           0,
		Evidence:          0,
		Expert:            0,
		OverallScore:      0,
		Rationale:         fmt.Sprintf("scoring failed: %v", cause),
		ModelUsed:         s.cfg.Model,
		ScoredAt:          s.nowFunc().UTC(),
	}
}
