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
	classifyArtifactID string
	classifyAll        bool
	classifyLimit      int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Assign impact categories to stored artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}
		if classifyArtifactID == "" && !classifyAll {
			return eris.New("either --artifact or --all-unclassified is required")
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
		if classifyArtifactID != "" {
			a, err := st.GetArtifact(ctx, classifyArtifactID)
			if err != nil {
				return err
			}
			artifacts = []model.Artifact{*a}
		} else {
			artifacts, err = st.ListUnclassified(ctx, classifyLimit)
			if err != nil {
				return err
			}
		}

		d := newDeps(cfg)
		cls := d.impactClassifier(cfg)

		var results []model.Classification
		for _, a := range artifacts {
			c := cls.Classify(ctx, a)
			if err := st.SaveClassification(ctx, &c); err != nil {
				return eris.Wrapf(err, "save classification for %s", a.ID)
			}
			results = append(results, c)
		}

		zap.L().Info("classification complete", zap.Int("artifacts", len(results)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyArtifactID, "artifact", "", "classify a single artifact by id")
	classifyCmd.Flags().BoolVar(&classifyAll, "all-unclassified", false, "classify every artifact without a classification")
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 100, "maximum artifacts to classify with --all-unclassified")
	rootCmd.AddCommand(classifyCmd)
}
