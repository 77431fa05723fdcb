// Package config loads vcsmeta configuration from a YAML file, VCSMETA_*
// environment variables and built-in defaults, in increasing precedence of
// defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("invalid log format")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be in (0, 1]")
	ErrEmptyRepositoryPath = errors.New("repository path must not be empty")
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const (
	configName = "vcsmeta"
	envPrefix  = "VCSMETA"
)

// Config holds all vcsmeta configuration.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Status     StatusConfig     `mapstructure:"status"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Watch      WatchConfig      `mapstructure:"watch"`
}

// RepositoryConfig selects the repository and history options.
type RepositoryConfig struct {
	Path          string `mapstructure:"path"`
	DetectRenames bool   `mapstructure:"detect_renames"`
}

// StatusConfig holds working-tree status options.
type StatusConfig struct {
	IncludeIgnored bool `mapstructure:"include_ignored"`
}

// OutputConfig holds CLI output options.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LoggingConfig holds logging options.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export options.
type TelemetryConfig struct {
	Environment     string  `mapstructure:"environment"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string  `mapstructure:"otlp_headers"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	MetricsAddr     string  `mapstructure:"metrics_addr"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	DebugTrace      bool    `mapstructure:"debug_trace"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout_sec"`
}

// WatchConfig holds options of the watch command.
type WatchConfig struct {
	Ignore    []string `mapstructure:"ignore"`
	Recursive bool     `mapstructure:"recursive"`
	Gitignore bool     `mapstructure:"gitignore"`
}

// LoadConfig loads configuration. An empty configPath searches for
// vcsmeta.yaml in ".", "./config" and "/etc/vcsmeta"; a missing file is not
// an error in that case.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/vcsmeta")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.path", DefaultRepositoryPath)
	viperCfg.SetDefault("repository.detect_renames", DefaultDetectRenames)

	viperCfg.SetDefault("status.include_ignored", DefaultIncludeIgnored)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.shutdown_timeout_sec", DefaultShutdownTimeout)

	viperCfg.SetDefault("watch.ignore", DefaultWatchIgnore())
	viperCfg.SetDefault("watch.recursive", DefaultWatchRecursive)
	viperCfg.SetDefault("watch.gitignore", DefaultWatchGitignore)
}

func validateConfig(config *Config) error {
	if config.Repository.Path == "" {
		return ErrEmptyRepositoryPath
	}

	if _, err := ParseLogLevel(config.Logging.Level); err != nil {
		return err
	}

	if !slices.Contains([]string{LogFormatText, LogFormatJSON}, config.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if !slices.Contains([]string{FormatTable, FormatJSON, FormatYAML}, config.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, config.Output.Format)
	}

	if config.Telemetry.SampleRatio <= 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}

// Observability builds the telemetry configuration for a process started in
// the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	level, err := ParseLogLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = c.Telemetry.Environment
	cfg.Mode = mode
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.Prometheus = c.Telemetry.MetricsAddr != ""
	cfg.DebugTrace = c.Telemetry.DebugTrace
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.LogLevel = level
	cfg.LogJSON = c.Logging.Format == LogFormatJSON

	if c.Telemetry.ShutdownTimeout > 0 {
		cfg.ShutdownTimeoutSec = c.Telemetry.ShutdownTimeout
	}

	return cfg
}
