package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impactwatch/intel-cli/internal/model"
)

var (
	scoreArtifactID string
	scoreAll        bool
	scoreLimit      int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score source credibility of stored artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("score"); err != nil {
			return err
		}
		if scoreArtifactID == "" && !scoreAll {
			return eris.New("either --artifact or --all-unscored is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var artifacts []model.Artifact
		if scoreArtifactID != "" {
			a, err := st.GetArtifact(ctx, scoreArtifactID)
			if err != nil {
				return err
			}
			artifacts = []model.Artifact{*a}
		} else {
			artifacts, err = st.ListUnscored(ctx, scoreLimit)
			if err != nil {
				return err
			}
		}

		d := newDeps(cfg)
		sc := d.sourceScorer(cfg)

		var results []model.SourceScore
		for _, a := range artifacts {
			s := sc.Score(ctx, a)
			if err := st.SaveSourceScore(ctx, &s); err != nil {
				return eris.Wrapf(err, "save source score for %s", a.ID)
			}
			results = append(results, s)
		}

		zap.L().Info("scoring complete", zap.Int("artifacts", len(results)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreArtifactID, "artifact", "", "score a single artifact by id")
	scoreCmd.Flags().BoolVar(&scoreAll, "all-unscored", false, "score every artifact without a source score")
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", 100, "maximum artifacts to score with --all-unscored")
	rootCmd.AddCommand(scoreCmd)
}
