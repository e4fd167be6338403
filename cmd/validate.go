package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/impactwatch/intel-cli/internal/collector"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every connector's credentials with a cheap round trip",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		d := newDeps(cfg)
		connectors := []collector.Connector{
			d.searchCollector(cfg),
		}

		var mu sync.Mutex
		results := make(map[string]bool, len(connectors))

		g, gctx := errgroup.WithContext(ctx)
		for _, c := range connectors {
			g.Go(func() error {
				ok := c.ValidateConfig(gctx)
				mu.Lock()
				results[c.Name()] = ok
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}

		for name, ok := range results {
			if !ok {
				return eris.Errorf("connector %s failed validation", name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
