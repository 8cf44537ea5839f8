// Package config loads, defaults and validates the gateway
// configuration from file, environment, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the FIDC gateway configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FIDC_GATEWAY_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Server configures the main listener
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics configures the Prometheus metrics server
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Redis configures the session store connection
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`

	// Workers bounds the CPU-bound validation work
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	// Breakers overrides circuit breaker policies by name. Unnamed
	// policies keep their built-in defaults.
	Breakers map[string]BreakerConfig `mapstructure:"breakers" yaml:"breakers,omitempty"`

	// Security tunes the validation pipeline
	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	// Routes is the route table: path prefix, upstream, permissions
	Routes []RouteConfig `mapstructure:"routes" validate:"required,min=1,dive" yaml:"routes"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// ServerConfig configures the main HTTP listener.
type ServerConfig struct {
	// Port is the listener port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout bounds reading the request head and body
	// Default: 15s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Must exceed the largest
	// per-route upstream timeout or slow upstreams are cut off early.
	// Default: 60s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections
	// Default: 120s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// Default: 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// PathMode selects how request paths are normalized into metric
	// labels. Valid values: operations, prefix.
	// Default: operations
	PathMode string `mapstructure:"path_mode" validate:"omitempty,oneof=operations prefix" yaml:"path_mode"`
}

// RedisConfig configures the session store connection.
type RedisConfig struct {
	// Host is the Redis server host
	// Default: localhost
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Port is the Redis server port
	// Default: 6379
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Password authenticates the connection (optional)
	// Override: FIDC_GATEWAY_REDIS_PASSWORD
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// DB is the Redis logical database number
	DB int `mapstructure:"db" validate:"omitempty,gte=0" yaml:"db"`

	// Timeout bounds one session read, inside the breaker
	// Default: 3s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// DialTimeout bounds establishing a new connection
	// (0 = go-redis default)
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout,omitempty"`

	// ReadTimeout bounds one socket read (0 = go-redis default)
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout,omitempty"`

	// PoolSize is the connection pool size (0 = go-redis default)
	PoolSize int `mapstructure:"pool_size" validate:"omitempty,gte=0" yaml:"pool_size"`
}

// WorkersConfig bounds the CPU-bound validation work (JSON decode,
// HMAC verification).
type WorkersConfig struct {
	// Multiplier scales GOMAXPROCS to size the worker pool
	// Default: 4
	Multiplier int `mapstructure:"multiplier" validate:"omitempty,gte=1" yaml:"multiplier"`
}

// BreakerConfig overrides one circuit breaker policy. Zero fields keep
// the built-in default for that policy.
type BreakerConfig struct {
	// FailureRateThreshold opens the breaker when exceeded (percent)
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold" validate:"omitempty,gt=0,lte=100" yaml:"failure_rate_threshold,omitempty"`

	// SlowRateThreshold opens the breaker on slow-call rate (percent)
	SlowRateThreshold float64 `mapstructure:"slow_rate_threshold" validate:"omitempty,gt=0,lte=100" yaml:"slow_rate_threshold,omitempty"`

	// SlowCallDuration is the latency above which a call counts as slow
	SlowCallDuration time.Duration `mapstructure:"slow_call_duration" yaml:"slow_call_duration,omitempty"`

	// OpenStateWait is how long the breaker stays open before probing
	OpenStateWait time.Duration `mapstructure:"open_state_wait" yaml:"open_state_wait,omitempty"`

	// WindowSize is the sliding count window length
	WindowSize int `mapstructure:"window_size" validate:"omitempty,gt=0" yaml:"window_size,omitempty"`

	// MinCalls is the minimum calls before rates are evaluated
	MinCalls int `mapstructure:"min_calls" validate:"omitempty,gt=0" yaml:"min_calls,omitempty"`

	// HalfOpenProbes is the number of trial calls in half-open state
	HalfOpenProbes int `mapstructure:"half_open_probes" validate:"omitempty,gt=0" yaml:"half_open_probes,omitempty"`
}

// SecurityConfig tunes the validation pipeline.
type SecurityConfig struct {
	// PartnerClaimCheck also compares the optional partner claim inside
	// the token against the partner header. Older token revisions carry
	// the claim; when present it must agree.
	// Default: true
	PartnerClaimCheck *bool `mapstructure:"partner_claim_check" yaml:"partner_claim_check"`
}

// RouteConfig declares one proxied route.
type RouteConfig struct {
	// ID names the route in logs and metrics
	ID string `mapstructure:"id" validate:"required" yaml:"id"`

	// Path is the route prefix mounted on the router, e.g.
	// "/api/simulation"
	Path string `mapstructure:"path" validate:"required,startswith=/" yaml:"path"`

	// Upstream is the target base URL, e.g. "http://simulation:8080"
	Upstream string `mapstructure:"upstream" validate:"required,url" yaml:"upstream"`

	// RequiredPermissions must all be present in the session.
	// Empty means authenticated but unrestricted.
	RequiredPermissions []string `mapstructure:"required_permissions" yaml:"required_permissions,omitempty"`

	// Timeout bounds one upstream exchange (0 = 30s default)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`

	// Public skips session validation for this route. Use only for
	// upstream endpoints that carry no user context.
	Public bool `mapstructure:"public" yaml:"public,omitempty"`
}

// PartnerClaimCheckEnabled resolves the SecurityConfig default.
func (c *Config) PartnerClaimCheckEnabled() bool {
	if c.Security.PartnerClaimCheck == nil {
		return true
	}
	return *c.Security.PartnerClaimCheck
}

// ServiceNames returns the distinct service segment of each route path,
// for metric label normalization.
func (c *Config) ServiceNames() []string {
	seen := make(map[string]struct{}, len(c.Routes))
	names := make([]string, 0, len(c.Routes))
	for _, route := range c.Routes {
		parts := strings.Split(strings.Trim(route.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "api" {
			continue
		}
		svc := strings.ToLower(parts[1])
		if _, ok := seen[svc]; ok {
			continue
		}
		seen[svc] = struct{}{}
		names = append(names, svc)
	}
	return names
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FIDC_GATEWAY_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks that the config file exists and points the user at
// `fidc-gateway init` when it does not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  fidc-gateway init\n\n"+
				"Or specify a custom config file:\n"+
				"  fidc-gateway <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  fidc-gateway init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML
// format. File permissions are restricted to the owner because the
// config may carry the Redis password.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FIDC_GATEWAY_ prefix and underscores
	// Example: FIDC_GATEWAY_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FIDC_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "30s", "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fidc-gateway")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fidc-gateway")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
