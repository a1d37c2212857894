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
	Use:   "gatehouse",
	Short: "Gatehouse - admission control for metered conversational endpoints",
	Long: `Gatehouse protects a metered LLM-backed endpoint with layered,
per-client admission control:

  - a short burst window that rejects rapid-fire request storms
  - a main request-rate window
  - a usage budget in estimated units, reserved before downstream work
  - a cap on concurrently open conversation sessions

Rejections are structured 429 responses carrying the rejecting dimension,
the caller's standing, and retry guidance.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
