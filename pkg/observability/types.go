// Package observability provides metrics, tracing and health checks for the
// docqa service. Providers are interfaces so pipelines can be instrumented in
// tests with in-memory recorders and in production with Prometheus and OTLP.
package observability

import (
	"context"
	"time"
)

// Metric names emitted by the service.
const (
	MetricIngestChunks     = "docqa_ingest_chunks_total"
	MetricIngestBatches    = "docqa_ingest_batches_total"
	MetricIngestDuration   = "docqa_ingest_duration_seconds"
	MetricIngestErrors     = "docqa_ingest_errors_total"
	MetricQueryTotal       = "docqa_query_total"
	MetricQueryDuration    = "docqa_query_duration_seconds"
	MetricQueryChunks      = "docqa_query_chunks_retrieved"
	MetricEmbedCacheHits   = "docqa_embed_cache_hits_total"
	MetricEmbedCacheMisses = "docqa_embed_cache_misses_total"
	MetricHTTPRequests     = "docqa_http_requests_total"
	MetricHTTPDuration     = "docqa_http_request_duration_seconds"
)

// MetricsProvider collects counters, gauges and histograms.
//
// A metric name must always be used with the same set of label keys.
type MetricsProvider interface {
	// Counter increments a cumulative counter by value.
	Counter(ctx context.Context, name string, value int64, labels map[string]string)

	// Gauge adds value to a gauge; pass a negative value to decrease it.
	Gauge(ctx context.Context, name string, value float64, labels map[string]string)

	// Histogram records one observation.
	Histogram(ctx context.Context, name string, value float64, labels map[string]string)

	// RecordDuration records duration in seconds as a histogram observation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string)
}

// TracerProvider starts spans.
//
// Example usage:
//
//	ctx, span := tracer.StartSpan(ctx, "ingest")
//	defer func() { span.End(err) }()
type TracerProvider interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	Shutdown(ctx context.Context) error
}

// Span is a single traced operation. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttribute(key string, value any)
	AddEvent(name string, attrs map[string]any)
	SetStatus(code SpanStatus, description string)
	SpanContext() SpanContext
}

// SpanContext identifies a span for log correlation.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// SpanStatus represents the status of a span
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

// SpanKind describes the relationship between the Span, its parents, and its children
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// SpanOption configures span creation
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{kind: SpanKindInternal, attributes: make(map[string]any)}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSpanKind sets the kind of span
func WithSpanKind(kind SpanKind) SpanOption {
	return func(cfg *spanConfig) {
		cfg.kind = kind
	}
}

// WithAttributes sets initial attributes on the span
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *spanConfig) {
		for k, v := range attrs {
			cfg.attributes[k] = v
		}
	}
}

// Labels is a convenience type for metric labels.
type Labels map[string]string

// Merge combines two label maps into a new map; other wins on conflicts.
func (l Labels) Merge(other Labels) Labels {
	result := make(Labels, len(l)+len(other))
	for k, v := range l {
		result[k] = v
	}
	for k, v := range other {
		result[k] = v
	}
	return result
}
