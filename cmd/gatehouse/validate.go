package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parkside-labs/gatehouse/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate the configuration file without starting the server.

Exits non-zero when the file is missing, malformed, or fails validation.

Examples:
  gatehouse validate --config config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
		fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  requests:       %d per %s (burst %d per %s)\n",
			cfg.Limits.Requests.Limit, cfg.Limits.Requests.Window,
			cfg.Limits.Requests.BurstLimit, cfg.Limits.Requests.BurstWindow)
		fmt.Printf("  usage budget:   %d units per %s\n",
			cfg.Limits.Usage.Limit, cfg.Limits.Usage.Window)
		if cfg.Limits.Sessions.Window > 0 {
			fmt.Printf("  sessions:       %d concurrent, reset every %s\n",
				cfg.Limits.Sessions.Limit, cfg.Limits.Sessions.Window)
		} else {
			fmt.Printf("  sessions:       %d concurrent, explicit release only\n",
				cfg.Limits.Sessions.Limit)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
