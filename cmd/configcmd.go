package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Redact credentials before printing.
		printable := *cfg
		printable.Perplexity.Key = redact(cfg.Perplexity.Key)
		printable.Anthropic.Key = redact(cfg.Anthropic.Key)
		printable.Store.DatabaseURL = redact(cfg.Store.DatabaseURL)

		out, err := yaml.Marshal(printable)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

func init() {
	rootCmd.AddCommand(configCmd)
}
