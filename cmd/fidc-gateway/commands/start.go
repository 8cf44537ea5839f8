package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/telemetry"
	"github.com/openfidc/gateway/pkg/config"
	"github.com/openfidc/gateway/pkg/gateway"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

The process runs in the foreground and stops gracefully on SIGINT or
SIGTERM, draining in-flight requests up to the configured shutdown
timeout.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/fidc-gateway/config.yaml.

Examples:
  # Start with default config location
  fidc-gateway start

  # Start with custom config file
  fidc-gateway start --config /etc/fidc-gateway/config.yaml

  # Start with environment variable overrides
  FIDC_GATEWAY_LOGGING_LEVEL=DEBUG fidc-gateway start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry (if enabled)
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fidc-gateway",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "fidc-gateway",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err.Error())
		}
	}()

	logger.Info("configuration loaded",
		"source", getConfigSource(GetConfigFile()),
		"routes", len(cfg.Routes),
		"log_level", cfg.Logging.Level)
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble gateway: %w", err)
	}

	if err := gw.Run(ctx); err != nil {
		logger.Error("gateway stopped with error", logger.KeyError, err.Error())
		return err
	}

	logger.Info("gateway stopped gracefully")
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
