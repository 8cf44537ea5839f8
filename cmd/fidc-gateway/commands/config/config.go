// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage gateway configuration files.

Use 'fidc-gateway init' to create a new configuration file.

Subcommands:
  show      Display the effective configuration
  validate  Validate a configuration file
  path      Print the default configuration path`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(pathCmd)
}
