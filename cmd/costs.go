package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/impactwatch/intel-cli/internal/cost"
)

// costsReport is the JSON shape printed by the costs command.
type costsReport struct {
	Session cost.Usage            `json:"session"`
	ByType  map[string]cost.Usage `json:"by_type"`
}

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Print the session cost ledger",
	Long:  "Prints accumulated API usage for this process. The ledger starts empty; standalone invocations report zeros until calls are made.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d := newDeps(cfg)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(costsReport{
			Session: d.costs.Session(),
			ByType:  d.costs.ByType(),
		})
	},
}

func init() {
	rootCmd.AddCommand(costsCmd)
}
