package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "codemod.requests.total"
	metricRequestDuration  = "codemod.request.duration.seconds"
	metricErrorsTotal      = "codemod.errors.total"
	metricInflightRequests = "codemod.inflight.requests"

	metricFilesTotal     = "codemod.files.total"
	metricFileDuration   = "codemod.file.duration.seconds"
	metricMatchesTotal   = "codemod.matches.total"
	metricFileErrors     = "codemod.file.errors.total"
	metricCacheLookups   = "codemod.cache.lookups.total"
	metricBytesRewritten = "codemod.rewritten.bytes.total"

	attrOp       = "op"
	attrStatus   = "status"
	attrLanguage = "language"
	attrRule     = "rule"
	attrOutcome  = "outcome"
	attrResult   = "result"

	// StatusOK and StatusError are the status values of RecordRequest.
	StatusOK    = "ok"
	StatusError = "error"

	// File outcomes recorded by RewriteMetrics.RecordFile.
	OutcomeUnchanged = "unchanged"
	OutcomeRewritten = "rewritten"
	OutcomeMatched   = "matched"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// requestBuckets covers 1ms to 60s tool calls.
var requestBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// fileBuckets covers sub-millisecond parses up to multi-second large files.
var fileBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// REDMetrics holds Rate, Error and Duration instruments for request-style
// operations such as MCP tool calls.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", requestBuckets...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of failed requests", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records one completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight counter and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// RewriteMetrics counts the work of a codemod run: files by outcome, per-file
// latency, matches per rule, cache effectiveness and bytes rewritten.
type RewriteMetrics struct {
	files        metric.Int64Counter
	fileDuration metric.Float64Histogram
	matches      metric.Int64Counter
	errors       metric.Int64Counter
	cacheLookups metric.Int64Counter
	bytes        metric.Int64Counter
}

// NewRewriteMetrics creates the rewrite instruments from mt.
func NewRewriteMetrics(mt metric.Meter) (*RewriteMetrics, error) {
	b := newMetricBuilder(mt)

	m := &RewriteMetrics{
		files:        b.counter(metricFilesTotal, "Files processed", "{file}"),
		fileDuration: b.histogram(metricFileDuration, "Per-file parse, match and rewrite time", "s", fileBuckets...),
		matches:      b.counter(metricMatchesTotal, "Accepted rule matches", "{match}"),
		errors:       b.counter(metricFileErrors, "Files that failed to process", "{file}"),
		cacheLookups: b.counter(metricCacheLookups, "Result cache lookups", "{lookup}"),
		bytes:        b.counter(metricBytesRewritten, "Bytes of rewritten output", "By"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return m, nil
}

// RecordFile records one processed file. A nil receiver is a no-op.
func (m *RewriteMetrics) RecordFile(ctx context.Context, language, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrLanguage, language),
		attribute.String(attrOutcome, outcome),
	)

	m.files.Add(ctx, 1, attrs)
	m.fileDuration.Record(ctx, duration.Seconds(), attrs)

	if outcome == OutcomeFailed {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrLanguage, language)))
	}
}

// RecordMatches adds count matches of rule.
func (m *RewriteMetrics) RecordMatches(ctx context.Context, rule string, count int) {
	if m == nil || count == 0 {
		return
	}

	m.matches.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrRule, rule)))
}

// RecordCache records a cache hit or miss.
func (m *RewriteMetrics) RecordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordRewritten adds n rewritten output bytes.
func (m *RewriteMetrics) RecordRewritten(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}

	m.bytes.Add(ctx, int64(n))
}
