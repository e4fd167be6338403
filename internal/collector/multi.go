package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactwatch/intel-cli/internal/model"
	"github.com/impactwatch/intel-cli/internal/resilience"
)

// CollectMulti issues every query template for a category in order, merging
// de-duplicated results into one bounded set. The seen set is owned by the
// caller, so URLs already persisted from earlier runs can be pre-loaded to
// skip historical duplicates.
//
// Iteration stops as soon as maxResults unique artifacts are gathered or all
// templates are exhausted. A failure on one template is logged and the loop
// continues; only a configuration failure aborts the run. Artifacts are
// appended in template order, and within a template in citation order.
func (c *SearchCollector) CollectMulti(ctx context.Context, category model.Category, timeframe string, maxResults int, seen map[string]struct{}) ([]model.Artifact, error) {
	if c.cfg.APIKey == "" {
		return nil, resilience.NewConfigError(c.Name(), fmt.Errorf("missing API key"))
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}

	templates := TemplatesFor(category)
	if len(templates) == 0 {
		return nil, eris.Errorf("collector: no templates for category %q", category)
	}

	var out []model.Artifact
	for ti, tpl := range templates {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		if c.breaker.Open() {
			zap.L().Warn("collector: upstream circuit open, stopping template loop",
				zap.Int("templates_issued", ti),
				zap.Int("artifacts", len(out)),
			)
			break
		}

		query := BuildQuery(tpl, c.cfg.Profession, timeframe)

		remaining := 0
		if maxResults > 0 {
			remaining = maxResults - len(out)
		}

		artifacts, err := c.collectOnce(ctx, query, remaining, category)
		if err != nil {
			if resilience.IsConfigError(err) {
				return out, err
			}
			zap.L().Warn("collector: template query failed, continuing",
				zap.Int("template_index", ti),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}

		for _, a := range artifacts {
			if _, dup := seen[a.URL]; dup {
				zap.L().Debug("collector: duplicate url skipped",
					zap.String("url", a.URL),
				)
				continue
			}
			seen[a.URL] = struct{}{}
			out = append(out, a)
			if maxResults > 0 && len(out) >= maxResults {
				break
			}
		}

		// A short pause between templates smooths request bursts on top of
		// the rate limiter.
		if ti < len(templates)-1 && (maxResults <= 0 || len(out) < maxResults) {
			select {
			case <-ctx.Done():
				return out, eris.Wrap(ctx.Err(), "collector: multi-query canceled")
			case <-time.After(c.cfg.TemplatePause):
			}
		}
	}

	zap.L().Info("collector: multi-query complete",
		zap.String("category", string(category)),
		zap.Int("unique_artifacts", len(out)),
	)
	return out, nil
}
