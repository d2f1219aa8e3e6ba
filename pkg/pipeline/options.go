// Package pipeline implements document ingestion (extract, chunk, embed, store)
// and grounded question answering (embed, retrieve, generate) on top of the
// collaborator contracts in package rag.
package pipeline

import (
	"time"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/observability"
)

// DefaultBatchSize is the number of chunks embedded and stored per call.
const DefaultBatchSize = 10

// MaxTopK caps the number of chunks retrieved per question.
const MaxTopK = 5

// DefaultResults is the number of chunks requested when the caller asks for 0.
const DefaultResults = 3

type options struct {
	log       *logger.Logger
	metrics   observability.MetricsProvider
	tracer    observability.TracerProvider
	now       func() time.Time
	batchSize int
}

func defaultOptions() options {
	return options{
		log:       logger.Nop(),
		metrics:   observability.NoopMetricsProvider{},
		tracer:    observability.NoopTracerProvider{},
		now:       time.Now,
		batchSize: DefaultBatchSize,
	}
}

// Option configures an Ingestor, Querier or Service.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m observability.MetricsProvider) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer provider.
func WithTracer(t observability.TracerProvider) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBatchSize overrides DefaultBatchSize. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
