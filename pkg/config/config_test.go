package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codemod/pkg/config"
	"github.com/Sumatoshi-tech/codemod/pkg/observability"
)

const (
	testWorkers     = 6
	testMaxFileSize = 2 * 1000 * 1000
	testCacheSize   = 16 * 1024 * 1024
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".codemod.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, int64(1000*1000), cfg.MaxFileSizeBytes())
	assert.Equal(t, config.DefaultSkipVendor, cfg.SkipVendor)
	assert.Equal(t, config.DefaultExclude, cfg.Exclude)
	assert.Empty(t, cfg.Include)
	assert.Empty(t, cfg.Rules)
	assert.False(t, cfg.Strict)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLogFormat, cfg.Logging.Format)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, int64(64*1000*1000), cfg.CacheMaxBytes())
	assert.Empty(t, cfg.Telemetry.Endpoint)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
rules: [rules/streams.yaml]
workers: 6
max_file_size: 2MB
include: ["*.java"]
exclude: [generated]
skip_vendor: false
strict: true
logging:
  level: debug
  format: json
cache:
  enabled: false
  max_size: 16MiB
telemetry:
  endpoint: localhost:4317
  insecure: true
  headers: "api-key=secret"
  environment: ci
  sample_ratio: 0.5
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"rules/streams.yaml"}, cfg.Rules)
	assert.Equal(t, testWorkers, cfg.Workers)
	assert.Equal(t, int64(testMaxFileSize), cfg.MaxFileSizeBytes())
	assert.Equal(t, []string{"*.java"}, cfg.Include)
	assert.Equal(t, []string{"generated"}, cfg.Exclude)
	assert.False(t, cfg.SkipVendor)
	assert.True(t, cfg.Strict)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, int64(testCacheSize), cfg.CacheMaxBytes())

	obs := cfg.Observability(observability.ModeMCP, "1.2.3")

	assert.Equal(t, observability.ModeMCP, obs.Mode)
	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, "localhost:4317", obs.OTLPEndpoint)
	assert.True(t, obs.OTLPInsecure)
	assert.Equal(t, map[string]string{"api-key": "secret"}, obs.OTLPHeaders)
	assert.Equal(t, "ci", obs.Environment)
	assert.InDelta(t, 0.5, obs.SampleRatio, 1e-9)
	assert.True(t, obs.LogJSON)
	assert.Equal(t, slog.LevelDebug, obs.LogLevel)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CODEMOD_WORKERS", "3")
	t.Setenv("CODEMOD_LOGGING_LEVEL", "warn")
	t.Setenv("CODEMOD_TELEMETRY_ENDPOINT", "collector:4317")

	cfg, err := config.LoadConfig(writeConfig(t, "workers: 6\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "negative workers", body: "workers: -1\n", want: config.ErrInvalidWorkers},
		{name: "bad size", body: "max_file_size: lots\n", want: config.ErrInvalidSize},
		{name: "bad cache size", body: "cache:\n  max_size: '-'\n", want: config.ErrInvalidSize},
		{name: "bad level", body: "logging:\n  level: loud\n", want: config.ErrInvalidLogLevel},
		{name: "bad format", body: "logging:\n  format: xml\n", want: config.ErrInvalidLogFormat},
		{name: "bad glob", body: "include: ['[']\n", want: config.ErrInvalidGlob},
		{name: "bad ratio", body: "telemetry:\n  sample_ratio: 2\n", want: config.ErrInvalidRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.body))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "workers: [\n"))
	require.Error(t, err)
}

func TestLoadConfig_ExplicitPathNotFound(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Equal(t, int64(1000*1000), cfg.MaxFileSizeBytes())
	assert.Equal(t, observability.ModeCLI, cfg.Observability(observability.ModeCLI, "").Mode)
}
