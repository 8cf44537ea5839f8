package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfidc/gateway/internal/cli/prompt"
	"github.com/openfidc/gateway/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a gateway configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/fidc-gateway/config.yaml with a sample route.
Use --config to specify a custom path, or --interactive to be prompted
for the listener, Redis connection and route table.

Examples:
  # Initialize with default location
  fidc-gateway init

  # Initialize with custom path
  fidc-gateway init --config /etc/fidc-gateway/config.yaml

  # Walk through the settings interactively
  fidc-gateway init --interactive

  # Force overwrite existing config
  fidc-gateway init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for configuration values")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		ok, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Configuration file %s exists, overwrite?", configPath), initForce)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.GetDefaultConfig()
	if initInteractive {
		if err := promptConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	} else {
		// Sample route so the file validates and shows the shape
		cfg.Routes = []config.RouteConfig{{
			ID:                  "simulation",
			Path:                "/api/simulation",
			Upstream:            "http://localhost:8081",
			RequiredPermissions: []string{"VIEW_SIMULATION_RESULTS"},
		}}
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the route table to point at your upstream services")
	fmt.Println("  2. Start the gateway with: fidc-gateway start")
	fmt.Printf("  3. Or specify custom config: fidc-gateway start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  Store the Redis password outside the file for production:")
	fmt.Println("    export FIDC_GATEWAY_REDIS_PASSWORD=...")

	return nil
}

// promptConfig walks the user through the settings that commonly differ
// between deployments. Everything else keeps its default.
func promptConfig(cfg *config.Config) error {
	level, err := prompt.Select("Log level", []prompt.SelectOption{
		{Label: "INFO", Value: "INFO", Description: "Production default"},
		{Label: "DEBUG", Value: "DEBUG", Description: "Per-request validation detail"},
		{Label: "WARN", Value: "WARN", Description: "Degradations and failures only"},
		{Label: "ERROR", Value: "ERROR", Description: "Failures only"},
	})
	if err != nil {
		return err
	}
	cfg.Logging.Level = level

	format, err := prompt.SelectString("Log format", []string{"text", "json"})
	if err != nil {
		return err
	}
	cfg.Logging.Format = format

	if cfg.Server.Port, err = prompt.InputPort("Listener port", cfg.Server.Port); err != nil {
		return err
	}

	metricsEnabled, err := prompt.Confirm("Enable Prometheus metrics", true)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = metricsEnabled
	if metricsEnabled {
		if cfg.Metrics.Port, err = prompt.InputPort("Metrics port", cfg.Metrics.Port); err != nil {
			return err
		}
	}

	if cfg.Redis.Host, err = prompt.Input("Redis host", cfg.Redis.Host); err != nil {
		return err
	}
	if cfg.Redis.Port, err = prompt.InputPort("Redis port", cfg.Redis.Port); err != nil {
		return err
	}
	if cfg.Redis.Password, err = prompt.Password("Redis password (empty for none)"); err != nil {
		return err
	}
	if cfg.Redis.DB, err = prompt.InputInt("Redis database", cfg.Redis.DB); err != nil {
		return err
	}

	for {
		route, err := promptRoute(len(cfg.Routes) + 1)
		if err != nil {
			return err
		}
		cfg.Routes = append(cfg.Routes, route)

		more, err := prompt.Confirm("Add another route", false)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}

	return nil
}

func promptRoute(n int) (config.RouteConfig, error) {
	var route config.RouteConfig
	var err error

	fmt.Printf("Route #%d\n", n)

	if route.ID, err = prompt.InputWithValidation("Route id", func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("route id is required")
		}
		return nil
	}); err != nil {
		return route, err
	}

	if route.Path, err = prompt.InputWithValidation("Path prefix (e.g. /api/simulation)", func(s string) error {
		if !strings.HasPrefix(s, "/") {
			return fmt.Errorf("path must start with /")
		}
		return nil
	}); err != nil {
		return route, err
	}

	if route.Upstream, err = prompt.InputWithValidation("Upstream base URL", func(s string) error {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return fmt.Errorf("upstream must be an http(s) URL")
		}
		return nil
	}); err != nil {
		return route, err
	}

	public, err := prompt.Confirm("Public route (skip session validation)", false)
	if err != nil {
		return route, err
	}
	route.Public = public

	if !public {
		perms, err := prompt.Input("Required permissions (comma-separated, empty for none)", "")
		if err != nil {
			return route, err
		}
		for _, p := range strings.Split(perms, ",") {
			if p = strings.TrimSpace(p); p != "" {
				route.RequiredPermissions = append(route.RequiredPermissions, p)
			}
		}
	}

	return route, nil
}
