package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/impactwatch/intel-cli/internal/classifier"
	"github.com/impactwatch/intel-cli/internal/collector"
	"github.com/impactwatch/intel-cli/internal/config"
	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/ratelimit"
	"github.com/impactwatch/intel-cli/internal/scorer"
	"github.com/impactwatch/intel-cli/internal/store"
	anthropicpkg "github.com/impactwatch/intel-cli/pkg/anthropic"
	"github.com/impactwatch/intel-cli/pkg/perplexity"
)

// deps holds the shared collaborators every command wires the same way. The
// cost tracker and rate limiter registry are process-scoped so the session
// ledger covers all calls a command makes.
type deps struct {
	limiter *ratelimit.Registry
	costs   *cost.Tracker
	calc    *cost.Calculator
}

func newDeps(cfg *config.Config) *deps {
	return &deps{
		limiter: ratelimit.NewRegistry(cfg.RateLimits),
		costs:   cost.NewTracker(),
		calc:    cost.NewCalculator(cfg.Pricing),
	}
}

func (d *deps) searchCollector(cfg *config.Config) *collector.SearchCollector {
	client := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)
	return collector.New(client, d.limiter, d.costs, d.calc,
		collector.NewHTTPTitleResolver(10*time.Second),
		collector.Config{
			APIKey:        cfg.Perplexity.Key,
			Profession:    cfg.Collector.Profession,
			Model:         cfg.Perplexity.Model,
			MaxTokens:     cfg.Collector.MaxTokens,
			Temperature:   cfg.Collector.Temperature,
			TemplatePause: time.Duration(cfg.Collector.TemplatePauseSecs) * time.Second,
		})
}

func (d *deps) sourceScorer(cfg *config.Config) *scorer.SourceScorer {
	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return scorer.New(ai, d.limiter, d.costs, d.calc, scorer.Config{
		Model: cfg.Anthropic.ScorerModel,
	})
}

func (d *deps) impactClassifier(cfg *config.Config) *classifier.Classifier {
	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return classifier.New(ai, d.limiter, d.costs, d.calc, classifier.Config{
		Model: cfg.Anthropic.ClassifierModel,
	})
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "intel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
