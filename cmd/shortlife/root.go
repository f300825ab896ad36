package main

import (
	"github.com/spf13/cobra"
)

// Global flag values.
var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "shortlife",
	Short: "ShortLife is a short-link manager with access limits and expiry",
	Long: `ShortLife maps long URLs to short tokens. Every link has an access limit
and a lifetime; links that run out of either are removed. Links live in
memory for the lifetime of the process and are managed from a text menu.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: config.yaml in . or ./config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}
