// Package config loads codemod settings from .codemod.yaml and CODEMOD_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/codemod/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers   = errors.New("workers must not be negative")
	ErrInvalidSize      = errors.New("invalid size")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidGlob      = errors.New("invalid glob")
	ErrInvalidRatio     = errors.New("sample ratio must be within [0, 1]")
)

const (
	configName = ".codemod"
	envPrefix  = "CODEMOD"
)

// Config holds all codemod settings.
type Config struct {
	// Rules are rule files loaded when no --rules flag is given.
	Rules       []string `mapstructure:"rules"`
	Workers     int      `mapstructure:"workers"`
	MaxFileSize string   `mapstructure:"max_file_size"`
	Include     []string `mapstructure:"include"`
	Exclude     []string `mapstructure:"exclude"`
	SkipVendor  bool     `mapstructure:"skip_vendor"`
	// Strict turns rule authoring errors into load failures instead of
	// skipping the offending rule.
	Strict bool `mapstructure:"strict"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	maxFileSize  uint64
	cacheMaxSize uint64
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	MaxSize string `mapstructure:"max_size"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Endpoint        string  `mapstructure:"endpoint"`
	Insecure        bool    `mapstructure:"insecure"`
	Headers         string  `mapstructure:"headers"`
	Environment     string  `mapstructure:"environment"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	Verbose         bool    `mapstructure:"verbose"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout"`
}

// LoadConfig reads configPath, or .codemod.yaml from the working directory
// when configPath is empty, layers CODEMOD_* environment variables on top
// and validates the result. A missing implicit config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	return decode(v)
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}

	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	err = validateConfig(&cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rules", []string{})
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("max_file_size", DefaultMaxFileSize)
	v.SetDefault("skip_vendor", DefaultSkipVendor)
	v.SetDefault("strict", DefaultStrict)
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", DefaultExclude)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.max_size", DefaultCacheMaxSize)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", DefaultTelemetryInsecure)
	v.SetDefault("telemetry.headers", "")
	v.SetDefault("telemetry.environment", "")
	v.SetDefault("telemetry.sample_ratio", 0.0)
	v.SetDefault("telemetry.verbose", DefaultTelemetryVerbose)
	v.SetDefault("telemetry.shutdown_timeout", DefaultShutdownTimeout)
}

func validateConfig(cfg *Config) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Workers)
	}

	var err error

	cfg.maxFileSize, err = parseSize("max_file_size", cfg.MaxFileSize)
	if err != nil {
		return err
	}

	cfg.cacheMaxSize, err = parseSize("cache.max_size", cfg.Cache.MaxSize)
	if err != nil {
		return err
	}

	_, err = parseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Logging.Format)
	}

	for _, glob := range slices.Concat(cfg.Include, cfg.Exclude) {
		if _, matchErr := path.Match(glob, ""); matchErr != nil {
			return fmt.Errorf("%w: %q", ErrInvalidGlob, glob)
		}
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRatio, cfg.Telemetry.SampleRatio)
	}

	return nil
}

func parseSize(key, raw string) (uint64, error) {
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidSize, key, raw)
	}

	return n, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, raw)
	}

	return level, nil
}

// MaxFileSizeBytes returns max_file_size in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.maxFileSize)
}

// CacheMaxBytes returns cache.max_size in bytes.
func (c *Config) CacheMaxBytes() int64 {
	return int64(c.cacheMaxSize)
}

// LogLevel returns logging.level as an slog level.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// Observability maps the logging and telemetry settings onto an
// observability configuration for mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()

	obs.Mode = mode
	obs.ServiceVersion = version
	obs.Environment = c.Telemetry.Environment
	obs.OTLPEndpoint = c.Telemetry.Endpoint
	obs.OTLPInsecure = c.Telemetry.Insecure
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.Headers)
	obs.SampleRatio = c.Telemetry.SampleRatio
	obs.TraceVerbose = c.Telemetry.Verbose
	obs.LogLevel = c.LogLevel()
	obs.LogJSON = c.Logging.Format == "json"

	if c.Telemetry.ShutdownTimeout > 0 {
		obs.ShutdownTimeoutSec = c.Telemetry.ShutdownTimeout
	}

	return obs
}
