package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openfidc/gateway/internal/cli/output"
	"github.com/openfidc/gateway/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the effective gateway configuration after defaults and
environment overrides are applied. The Redis password is redacted.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show effective config as YAML
  fidc-gateway config show

  # Show as JSON
  fidc-gateway config show --output json

  # Show specific config file
  fidc-gateway config show --config /etc/fidc-gateway/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Never echo credentials back to the terminal
	redacted := *cfg
	if redacted.Redis.Password != "" {
		redacted.Redis.Password = "********"
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, redacted)
	default:
		return output.PrintYAML(os.Stdout, redacted)
	}
}
