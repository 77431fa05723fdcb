package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/config"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vcsmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultRepositoryPath, cfg.Repository.Path)
	assert.Equal(t, config.DefaultDetectRenames, cfg.Repository.DetectRenames)
	assert.Equal(t, config.DefaultIncludeIgnored, cfg.Status.IncludeIgnored)
	assert.Equal(t, config.FormatTable, cfg.Output.Format)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, config.LogFormatText, cfg.Logging.Format)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Empty(t, cfg.Telemetry.MetricsAddr)
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Telemetry.SampleRatio, 0.0001)
	assert.Equal(t, config.DefaultWatchIgnore(), cfg.Watch.Ignore)
	assert.True(t, cfg.Watch.Recursive)
	assert.True(t, cfg.Watch.Gitignore)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `repository:
  path: /srv/project
  detect_renames: true
status:
  include_ignored: true
output:
  format: yaml
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_headers: "api-key=secret"
  otlp_insecure: true
  metrics_addr: ":9464"
  sample_ratio: 0.25
watch:
  ignore: [".git", "node_modules"]
  recursive: false
  gitignore: false
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/project", cfg.Repository.Path)
	assert.True(t, cfg.Repository.DetectRenames)
	assert.True(t, cfg.Status.IncludeIgnored)
	assert.Equal(t, config.FormatYAML, cfg.Output.Format)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, ":9464", cfg.Telemetry.MetricsAddr)
	assert.Equal(t, []string{".git", "node_modules"}, cfg.Watch.Ignore)
	assert.False(t, cfg.Watch.Recursive)
	assert.False(t, cfg.Watch.Gitignore)

	obs := cfg.Observability(observability.ModeWatch, "1.0.0")
	assert.Equal(t, observability.ModeWatch, obs.Mode)
	assert.Equal(t, "1.0.0", obs.ServiceVersion)
	assert.Equal(t, slog.LevelDebug, obs.LogLevel)
	assert.True(t, obs.LogJSON)
	assert.True(t, obs.Prometheus)
	assert.True(t, obs.OTLPInsecure)
	assert.Equal(t, map[string]string{"api-key": "secret"}, obs.OTLPHeaders)
	assert.InDelta(t, 0.25, obs.SampleRatio, 0.0001)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "output:\n  format: json\n")

	t.Setenv("VCSMETA_OUTPUT_FORMAT", "yaml")
	t.Setenv("VCSMETA_REPOSITORY_DETECT_RENAMES", "true")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, config.FormatYAML, cfg.Output.Format)
	assert.True(t, cfg.Repository.DetectRenames)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"log_level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"log_format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"output_format", "output:\n  format: csv\n", config.ErrInvalidOutputFormat},
		{"sample_ratio", "telemetry:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
		{"repository_path", "repository:\n  path: \"\"\n", config.ErrEmptyRepositoryPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "repository: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for input, want := range tests {
		got, err := config.ParseLogLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}
