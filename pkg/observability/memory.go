package observability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoopMetricsProvider discards all metrics.
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) Counter(context.Context, string, int64, map[string]string)     {}
func (NoopMetricsProvider) Gauge(context.Context, string, float64, map[string]string)     {}
func (NoopMetricsProvider) Histogram(context.Context, string, float64, map[string]string) {}
func (NoopMetricsProvider) RecordDuration(context.Context, string, time.Duration, map[string]string) {
}

// NoopTracerProvider creates spans that record nothing.
type NoopTracerProvider struct{}

func (NoopTracerProvider) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (NoopTracerProvider) Shutdown(context.Context) error { return nil }

type noopSpan struct{}

func (noopSpan) End(error)                       {}
func (noopSpan) SetAttribute(string, any)        {}
func (noopSpan) AddEvent(string, map[string]any) {}
func (noopSpan) SetStatus(SpanStatus, string)    {}
func (noopSpan) SpanContext() SpanContext        { return SpanContext{} }

// InMemoryMetricsProvider keeps metrics in maps so tests can assert on them.
//
// Example:
//
//	metrics := observability.NewInMemoryMetricsProvider()
//	// ... run an ingestion
//	n := metrics.GetCounter(observability.MetricIngestChunks, map[string]string{"source": "text"})
type InMemoryMetricsProvider struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryMetricsProvider creates a new in-memory metrics provider
func NewInMemoryMetricsProvider() *InMemoryMetricsProvider {
	return &InMemoryMetricsProvider{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (p *InMemoryMetricsProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	key := metricsKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[key] += value
}

func (p *InMemoryMetricsProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	key := metricsKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[key] += value
}

func (p *InMemoryMetricsProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	key := metricsKey(name, labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.histograms[key] = append(p.histograms[key], value)
}

func (p *InMemoryMetricsProvider) RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	p.Histogram(ctx, name, duration.Seconds(), labels)
}

// GetCounter returns the current counter value
func (p *InMemoryMetricsProvider) GetCounter(name string, labels map[string]string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[metricsKey(name, labels)]
}

// GetGauge returns the current gauge value
func (p *InMemoryMetricsProvider) GetGauge(name string, labels map[string]string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gauges[metricsKey(name, labels)]
}

// GetHistogram returns a copy of all recorded observations.
func (p *InMemoryMetricsProvider) GetHistogram(name string, labels map[string]string) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	values := p.histograms[metricsKey(name, labels)]
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// metricsKey builds a stable key from the name and sorted labels.
func metricsKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|" + k + "=" + labels[k])
	}
	return b.String()
}

// InMemoryTracerProvider records finished spans for inspection in tests.
type InMemoryTracerProvider struct {
	mu    sync.RWMutex
	spans []*RecordedSpan
}

// RecordedSpan is a finished span.
type RecordedSpan struct {
	Name       string
	Kind       SpanKind
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Events     []string
	Status     SpanStatus
	Error      error
	TraceID    string
	SpanID     string
}

// NewInMemoryTracerProvider creates a new in-memory tracer provider
func NewInMemoryTracerProvider() *InMemoryTracerProvider {
	return &InMemoryTracerProvider{}
}

func (p *InMemoryTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)
	return ctx, &inMemorySpan{
		provider: p,
		span: &RecordedSpan{
			Name:       name,
			Kind:       cfg.kind,
			StartTime:  time.Now(),
			Attributes: cfg.attributes,
			TraceID:    uuid.NewString(),
			SpanID:     uuid.NewString(),
		},
	}
}

func (p *InMemoryTracerProvider) Shutdown(context.Context) error { return nil }

// GetSpans returns all finished spans in completion order.
func (p *InMemoryTracerProvider) GetSpans() []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*RecordedSpan, len(p.spans))
	copy(out, p.spans)
	return out
}

// GetSpansByName returns finished spans with the given name.
func (p *InMemoryTracerProvider) GetSpansByName(name string) []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*RecordedSpan
	for _, s := range p.spans {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type inMemorySpan struct {
	provider *InMemoryTracerProvider
	mu       sync.Mutex
	span     *RecordedSpan
}

func (s *inMemorySpan) End(err error) {
	s.mu.Lock()
	s.span.EndTime = time.Now()
	s.span.Error = err
	if err != nil {
		s.span.Status = SpanStatusError
	}
	s.mu.Unlock()

	s.provider.mu.Lock()
	s.provider.spans = append(s.provider.spans, s.span)
	s.provider.mu.Unlock()
}

func (s *inMemorySpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Attributes[key] = value
}

func (s *inMemorySpan) AddEvent(name string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Events = append(s.span.Events, name)
}

func (s *inMemorySpan) SetStatus(code SpanStatus, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Status = code
}

func (s *inMemorySpan) SpanContext() SpanContext {
	return SpanContext{TraceID: s.span.TraceID, SpanID: s.span.SpanID}
}
