// Package commands implements the CLI commands for the gateway.
package commands

import (
	configcmd "github.com/openfidc/gateway/cmd/fidc-gateway/commands/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fidc-gateway",
	Short: "FIDC session gateway",
	Long: `fidc-gateway is a session-validating reverse proxy for FIDC partner
APIs. It authenticates each request against a Redis-backed session
store, verifies the token signature with the per-session secret, checks
partner agreement and route permissions, then rewrites the headers and
forwards the request to the configured upstream service.

Use "fidc-gateway [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/fidc-gateway/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(configcmd.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
