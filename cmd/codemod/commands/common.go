// Package commands implements CLI command handlers for codemod.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codemod/pkg/cache"
	"github.com/Sumatoshi-tech/codemod/pkg/config"
	"github.com/Sumatoshi-tech/codemod/pkg/observability"
	"github.com/Sumatoshi-tech/codemod/pkg/ruleset"
	"github.com/Sumatoshi-tech/codemod/pkg/runner"
	"github.com/Sumatoshi-tech/codemod/pkg/version"
)

var (
	// ErrNoRuleFiles is returned when neither --rules nor the config names a rule file.
	ErrNoRuleFiles = errors.New("no rule files: pass --rules or set rules in .codemod.yaml")
	// ErrFilesFailed is returned when at least one file could not be processed.
	ErrFilesFailed = errors.New("some files failed")
	// ErrMatchesFound is returned by scan --error-on-match when anything matched.
	ErrMatchesFound = errors.New("matches found")
	// ErrFixturesFailed is returned when a fixture case fails.
	ErrFixturesFailed = errors.New("fixture tests failed")
)

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Rules      []string
	Strict     bool
	Verbose    bool
	NoColor    bool
}

// Bind registers the persistent flags on root.
func (o *GlobalOptions) Bind(root *cobra.Command) {
	flags := root.PersistentFlags()

	flags.StringVarP(&o.ConfigPath, "config", "c", "", "Config file (default: .codemod.yaml in the working directory)")
	flags.StringSliceVarP(&o.Rules, "rules", "r", nil, "Rule files (repeatable; overrides rules from the config)")
	flags.BoolVar(&o.Strict, "strict", false, "Fail on the first invalid rule instead of skipping it")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "Debug logging")
	flags.BoolVar(&o.NoColor, "no-color", false, "Disable colored output")
}

// session is the per-invocation state built from config and flags.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	metrics   *observability.RewriteMetrics
	cache     *cache.LRU
	strict    bool
}

func (o *GlobalOptions) open(cmd *cobra.Command, mode observability.AppMode, tune func(*observability.Config)) (*session, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(mode, version.Version)
	if o.Verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	if tune != nil {
		tune(&obsCfg)
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{
		cfg:       cfg,
		providers: providers,
		logger:    observability.NewLogger(obsCfg, cmd.ErrOrStderr()),
		strict:    o.Strict || cfg.Strict,
	}

	s.metrics, err = observability.NewRewriteMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	if cfg.Cache.Enabled {
		s.cache = cache.New(cfg.CacheMaxBytes())
	}

	return s, nil
}

func (s *session) close() {
	err := s.providers.Shutdown(context.Background())
	if err != nil {
		s.logger.Warn("observability shutdown failed", "error", err)
	}
}

// loadRules loads the rule files from flags, falling back to the config.
func (s *session) loadRules(ctx context.Context, fromFlags []string) (*ruleset.Set, error) {
	paths := fromFlags
	if len(paths) == 0 {
		paths = s.cfg.Rules
	}

	if len(paths) == 0 {
		return nil, ErrNoRuleFiles
	}

	ctx, span := s.providers.Tracer.Start(ctx, observability.SpanLoadRules)
	defer span.End()

	set, err := ruleset.LoadFiles(ctx, nil, paths, ruleset.Options{Strict: s.strict, Logger: s.logger})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "rules loaded",
		"rules", set.Len(),
		"skipped", len(set.Skipped),
		"languages", set.Languages(),
		"fingerprint", set.Fingerprint,
	)

	return set, nil
}

// walkFlags are the file selection flags of run and scan.
type walkFlags struct {
	workers int
	include []string
	exclude []string
}

func (w *walkFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&w.workers, "workers", "w", 0, "Number of parallel workers (0 = config, then CPU count)")
	cmd.Flags().StringSliceVar(&w.include, "include", nil, "Only process files matching these globs")
	cmd.Flags().StringSliceVar(&w.exclude, "exclude", nil, "Skip files and directories matching these globs")
}

func (s *session) runner(set *ruleset.Set, w walkFlags, dryRun bool) *runner.Runner {
	workers := s.cfg.Workers
	if w.workers > 0 {
		workers = w.workers
	}

	return runner.New(set, runner.Options{
		Workers:     workers,
		Include:     slices.Concat(s.cfg.Include, w.include),
		Exclude:     slices.Concat(s.cfg.Exclude, w.exclude),
		SkipVendor:  s.cfg.SkipVendor,
		MaxFileSize: s.cfg.MaxFileSizeBytes(),
		DryRun:      dryRun,
		Cache:       s.cache,
		Metrics:     s.metrics,
		Tracer:      s.providers.Tracer,
		Logger:      s.logger,
	})
}

func rootsOf(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}

	return args
}
