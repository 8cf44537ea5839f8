package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfidc/gateway/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides,
and run the same validation the gateway runs on start.

Exits non-zero when the configuration is invalid.

Examples:
  # Validate the default config
  fidc-gateway config validate

  # Validate a specific file
  fidc-gateway config validate --config /etc/fidc-gateway/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration is valid (%d route(s))\n", len(cfg.Routes))
	return nil
}
