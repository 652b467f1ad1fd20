// Package runner applies a rule set to files on disk. Files are processed in
// parallel, each with its own syntax tree; a file is written back only after
// every patch for it applied cleanly.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/codemod/pkg/cache"
	"github.com/Sumatoshi-tech/codemod/pkg/observability"
	"github.com/Sumatoshi-tech/codemod/pkg/ruleset"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Options configure a Runner. The zero value processes every supported file
// with GOMAXPROCS workers, writes changes and keeps no cache.
type Options struct {
	Workers     int
	Include     []string
	Exclude     []string
	SkipVendor  bool
	MaxFileSize int64
	// DryRun computes rewrites without writing files.
	DryRun bool

	Cache   *cache.LRU
	Metrics *observability.RewriteMetrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// Runner applies one rule set to many files. It is safe for concurrent use.
type Runner struct {
	set    *ruleset.Set
	parser *syntax.Parser
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Runner for set.
func New(set *ruleset.Set, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	r := &Runner{
		set:    set,
		parser: syntax.NewParser(),
		opts:   opts,
		logger: opts.Logger,
		tracer: opts.Tracer,
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	if r.tracer == nil {
		r.tracer = otel.Tracer(observability.TracerName)
	}

	return r
}

// Run discovers the files under roots and processes them. Per-file failures
// are reported in the summary; the returned error is set only when discovery
// fails or ctx is canceled.
func (r *Runner) Run(ctx context.Context, roots []string) (*Summary, error) {
	ctx, span := r.tracer.Start(ctx, observability.SpanRun)
	defer span.End()

	start := time.Now()

	targets, err := r.Discover(roots)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("codemod.files", len(targets)),
		attribute.Int("codemod.workers", r.opts.Workers),
		attribute.Bool("codemod.dry_run", r.opts.DryRun),
	)

	results := make([]FileResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i] = r.processFile(gctx, t)

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("run: %w", err)
	}

	summary := &Summary{}
	for _, res := range results {
		summary.add(res)
	}

	summary.Duration = time.Since(start)

	r.logger.InfoContext(ctx, "run finished",
		"files", summary.Files,
		"changed", summary.Changed,
		"matches", summary.Matches,
		"failed", summary.Failed,
		"cached", summary.Cached,
		"duration", summary.Duration,
	)

	return summary, nil
}

func (r *Runner) processFile(ctx context.Context, t Target) FileResult {
	res := FileResult{Path: t.Path, Language: t.Language}

	info, err := os.Stat(t.Path)
	if err != nil {
		res.Skipped = SkipUnreadable
		res.Err = err

		return r.finish(ctx, res, time.Now())
	}

	if r.opts.MaxFileSize > 0 && info.Size() > r.opts.MaxFileSize {
		res.Skipped = SkipTooLarge
		r.logger.DebugContext(ctx, "skipping large file", "path", t.Path, "size", info.Size())

		return r.finish(ctx, res, time.Now())
	}

	source, err := os.ReadFile(t.Path)
	if err != nil {
		res.Skipped = SkipUnreadable
		res.Err = err

		return r.finish(ctx, res, time.Now())
	}

	res = r.Process(ctx, t.Path, t.Language, source)

	if res.Err == nil && res.Changed && !r.opts.DryRun {
		err = os.WriteFile(t.Path, res.Output, info.Mode().Perm())
		if err != nil {
			res.Err = fmt.Errorf("write: %w", err)
		} else {
			res.Written = true
		}
	}

	if res.Err != nil {
		res.Error = res.Err.Error()
		r.logger.WarnContext(ctx, "file failed", "path", t.Path, "error", res.Err)
	}

	return res
}

// Process rewrites one in-memory source. It never touches the file system.
func (r *Runner) Process(ctx context.Context, path, language string, source []byte) FileResult {
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, observability.SpanFile, trace.WithAttributes(
		attribute.String("file.path", path),
		attribute.String("codemod.language", language),
	))
	defer span.End()

	res := FileResult{Path: path, Language: language}

	engine, ok := r.set.Engine(language)
	if !ok {
		res.Skipped = SkipNoRules

		return r.finish(ctx, res, started)
	}

	key := cache.NewKey(r.set.Fingerprint, language, source)

	if r.opts.Cache != nil {
		payload, hit := r.opts.Cache.Get(key)
		r.opts.Metrics.RecordCache(ctx, hit)

		if hit && res.restore(payload, source) == nil {
			res.Cached = true

			return r.finish(ctx, res, started)
		}
	}

	_, parseSpan := r.tracer.Start(ctx, observability.SpanParse)

	tree, err := r.parser.Parse(ctx, language, source)

	parseSpan.End()

	if err != nil {
		res.Err = fmt.Errorf("parse: %w", err)

		return r.finish(ctx, res, started)
	}

	res.Partial = syntax.FirstError(tree.Root) != nil
	if res.Partial {
		r.logger.DebugContext(ctx, "parsed with errors", "path", path)
	}

	out, matches, err := engine.Fix(tree)
	if err != nil {
		res.Err = err

		return r.finish(ctx, res, started)
	}

	res.Matches = matchInfos(tree, engine, matches)

	if !bytes.Equal(out, source) {
		res.Changed = true
		res.Source = source
		res.Output = out
	}

	if r.opts.Cache != nil {
		payload, encErr := res.snapshot()
		if encErr == nil {
			r.opts.Cache.Put(key, payload)
		}
	}

	for _, m := range res.Matches {
		r.opts.Metrics.RecordMatches(ctx, m.RuleID, 1)
	}

	return r.finish(ctx, res, started)
}

func (r *Runner) finish(ctx context.Context, res FileResult, started time.Time) FileResult {
	outcome := observability.OutcomeUnchanged

	switch {
	case res.Err != nil:
		outcome = observability.OutcomeFailed
		res.Error = res.Err.Error()

		trace.SpanFromContext(ctx).SetStatus(codes.Error, res.Error)
	case res.Skipped != "":
		outcome = observability.OutcomeSkipped
	case res.Changed:
		outcome = observability.OutcomeRewritten
		r.opts.Metrics.RecordRewritten(ctx, len(res.Output))
	case len(res.Matches) > 0:
		outcome = observability.OutcomeMatched
	}

	r.opts.Metrics.RecordFile(ctx, res.Language, outcome, time.Since(started))

	return res
}

// cachedResult is the cache payload for one processed source.
type cachedResult struct {
	Changed bool        `json:"c,omitempty"`
	Output  []byte      `json:"o,omitempty"`
	Matches []MatchInfo `json:"m,omitempty"`
	Partial bool        `json:"p,omitempty"`
}

func (res *FileResult) snapshot() ([]byte, error) {
	c := cachedResult{Changed: res.Changed, Matches: res.Matches, Partial: res.Partial}
	if res.Changed {
		c.Output = res.Output
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}

	return data, nil
}

func (res *FileResult) restore(payload, source []byte) error {
	var c cachedResult

	err := json.Unmarshal(payload, &c)
	if err != nil {
		return fmt.Errorf("decode cache entry: %w", err)
	}

	res.Matches = c.Matches
	res.Partial = c.Partial

	if c.Changed {
		res.Changed = true
		res.Source = source
		res.Output = c.Output
	}

	return nil
}
