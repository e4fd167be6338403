package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impactwatch/intel-cli/internal/collector"
	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/model"
)

var (
	collectCategory   string
	collectTimeframe  string
	collectMaxResults int
	collectQuery      string
)

// collectSummary is the JSON report printed after a collection run.
type collectSummary struct {
	Category   string                `json:"category"`
	Collected  int                   `json:"collected"`
	Saved      int                   `json:"saved"`
	ByCategory map[string]int        `json:"by_category"`
	Costs      map[string]cost.Usage `json:"costs"`
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect, classify, and score artifacts for an impact category",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("collect"); err != nil {
			return err
		}

		category := model.Category(collectCategory)
		if !category.Valid() {
			return eris.Errorf("unknown category: %s", collectCategory)
		}

		timeframe := collectTimeframe
		if timeframe == "" {
			timeframe = cfg.Collector.Timeframe
		}
		maxResults := collectMaxResults
		if maxResults <= 0 {
			maxResults = cfg.Collector.MaxResults
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		d := newDeps(cfg)
		col := d.searchCollector(cfg)

		// Fail fast on unusable credentials before burning query budget.
		if !col.ValidateConfig(ctx) {
			return eris.Errorf("connector %s failed config validation", col.Name())
		}

		// Seed the dedup set with every URL already stored so re-runs only
		// add new evidence.
		urls, err := st.ListArtifactURLs(ctx)
		if err != nil {
			return eris.Wrap(err, "list stored urls")
		}
		seen := make(map[string]struct{}, len(urls))
		for _, u := range urls {
			seen[u] = struct{}{}
		}

		var artifacts []model.Artifact
		if collectQuery != "" {
			artifacts, err = collectSingle(ctx, col, collectQuery, maxResults, collector.Options{
				Category:  category,
				Timeframe: timeframe,
			}, seen)
		} else {
			artifacts, err = col.CollectMulti(ctx, category, timeframe, maxResults, seen)
		}
		if err != nil {
			return eris.Wrap(err, "collect")
		}

		saved, err := st.SaveArtifacts(ctx, artifacts)
		if err != nil {
			return eris.Wrap(err, "save artifacts")
		}

		cls := d.impactClassifier(cfg)
		sc := d.sourceScorer(cfg)
		byCategory := make(map[string]int)
		for _, a := range artifacts {
			c := cls.Classify(ctx, a)
			if err := st.SaveClassification(ctx, &c); err != nil {
				return eris.Wrapf(err, "save classification for %s", a.ID)
			}
			byCategory[string(c.Category)]++

			s := sc.Score(ctx, a)
			if err := st.SaveSourceScore(ctx, &s); err != nil {
				return eris.Wrapf(err, "save source score for %s", a.ID)
			}
		}

		zap.L().Info("collection complete",
			zap.String("category", string(category)),
			zap.Int("collected", len(artifacts)),
			zap.Int("saved", saved),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(collectSummary{
			Category:   string(category),
			Collected:  len(artifacts),
			Saved:      saved,
			ByCategory: byCategory,
			Costs:      d.costs.ByType(),
		})
	},
}

// collectSingle runs one explicit query and applies the same URL dedup the
// multi-query path does.
func collectSingle(ctx context.Context, col *collector.SearchCollector, query string, maxResults int, opts collector.Options, seen map[string]struct{}) ([]model.Artifact, error) {
	artifacts, err := col.Collect(ctx, query, maxResults, opts)
	if err != nil {
		return nil, err
	}
	out := artifacts[:0]
	for _, a := range artifacts {
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

func init() {
	collectCmd.Flags().StringVar(&collectCategory, "category", string(model.CategoryGeneral), "impact category (replace, augment, new_tasks, human_only, general)")
	collectCmd.Flags().StringVar(&collectTimeframe, "timeframe", "", "timeframe to scope queries to (defaults to config)")
	collectCmd.Flags().IntVar(&collectMaxResults, "max-results", 0, "maximum artifacts to collect (defaults to config)")
	collectCmd.Flags().StringVar(&collectQuery, "query", "", "explicit query instead of category templates")
	rootCmd.AddCommand(collectCmd)
}
