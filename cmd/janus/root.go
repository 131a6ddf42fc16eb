package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "janus",
	Short: "Janus - authenticating reverse proxy",
	Long: `Janus is an authenticating reverse proxy for API traffic.

Every inbound request is checked against a configured set of per-identity
bearer keys. Authorized requests are forwarded to a single upstream server
with the response streamed back as it arrives; denied requests are answered
with 401 before any upstream contact. Every disposition is recorded in a
durable usage log queryable via /api_usage or the usage subcommand.

For more information, visit: https://github.com/mercator-hq/janus`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
