package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLPProtocol selects the exporter transport.
type OTLPProtocol string

const (
	OTLPProtocolGRPC OTLPProtocol = "grpc"
	OTLPProtocolHTTP OTLPProtocol = "http"
)

// OTLPEndpoint is a parsed collector address.
type OTLPEndpoint struct {
	Protocol OTLPProtocol
	HostPort string
	Insecure bool
}

// ParseOTLPEndpoint accepts "host:port" (gRPC, plaintext), "http://host:port"
// (HTTP, plaintext) or "https://host:port" (HTTP, TLS).
func ParseOTLPEndpoint(raw string) (OTLPEndpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return OTLPEndpoint{}, fmt.Errorf("otlp endpoint is empty")
	}
	if !strings.Contains(raw, "://") {
		return OTLPEndpoint{Protocol: OTLPProtocolGRPC, HostPort: strings.TrimSuffix(raw, "/"), Insecure: true}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return OTLPEndpoint{}, fmt.Errorf("invalid otlp endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		return OTLPEndpoint{Protocol: OTLPProtocolHTTP, HostPort: u.Host, Insecure: true}, nil
	case "https":
		return OTLPEndpoint{Protocol: OTLPProtocolHTTP, HostPort: u.Host}, nil
	default:
		return OTLPEndpoint{}, fmt.Errorf("unsupported otlp scheme %q", u.Scheme)
	}
}

// OTLPTracerProvider exports spans over OTLP to Jaeger, Tempo or any collector.
type OTLPTracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// OTLPConfig configures the OTLP tracer provider.
type OTLPConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       OTLPEndpoint

	// Extra headers sent with every export, e.g. collector credentials.
	Headers map[string]string

	// Fraction of traces recorded, 0.0 to 1.0.
	SampleRate float64

	BatchTimeout time.Duration
}

// OTLPOption configures the OTLP tracer provider.
type OTLPOption func(*OTLPConfig)

func WithServiceVersion(version string) OTLPOption {
	return func(cfg *OTLPConfig) { cfg.ServiceVersion = version }
}

func WithOTLPHeaders(headers map[string]string) OTLPOption {
	return func(cfg *OTLPConfig) { cfg.Headers = headers }
}

func WithSampleRate(rate float64) OTLPOption {
	return func(cfg *OTLPConfig) { cfg.SampleRate = rate }
}

// NewOTLPTracerProvider creates the provider for the collector at endpoint
// (see ParseOTLPEndpoint) and installs it as the global OpenTelemetry tracer
// provider. Call Shutdown before exit to flush spans.
//
// Example:
//
//	tracer, err := observability.NewOTLPTracerProvider(ctx, "docqa", "http://localhost:4318")
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
func NewOTLPTracerProvider(ctx context.Context, serviceName, endpoint string, opts ...OTLPOption) (*OTLPTracerProvider, error) {
	ep, err := ParseOTLPEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := OTLPConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Endpoint:       ep,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Endpoint.Protocol, err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTLPTracerProvider{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

func newExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	ep := cfg.Endpoint
	if ep.Protocol == OTLPProtocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep.HostPort)}
		if ep.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(ep.HostPort)}
	if ep.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func (p *OTLPTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)

	kind := trace.SpanKindInternal
	switch cfg.kind {
	case SpanKindServer:
		kind = trace.SpanKindServer
	case SpanKindClient:
		kind = trace.SpanKindClient
	}

	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attributes(cfg.attributes)...))
	return ctx, otlpSpan{span}
}

func (p *OTLPTracerProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

type otlpSpan struct {
	trace.Span
}

func (s otlpSpan) End(err error) {
	if err != nil {
		s.Span.RecordError(err)
		s.Span.SetStatus(codes.Error, err.Error())
	}
	s.Span.End()
}

func (s otlpSpan) SetAttribute(key string, value any) {
	s.Span.SetAttributes(toAttribute(key, value))
}

func (s otlpSpan) AddEvent(name string, attrs map[string]any) {
	s.Span.AddEvent(name, trace.WithAttributes(attributes(attrs)...))
}

func (s otlpSpan) SetStatus(code SpanStatus, description string) {
	c := codes.Unset
	switch code {
	case SpanStatusOK:
		c = codes.Ok
	case SpanStatusError:
		c = codes.Error
	}
	s.Span.SetStatus(c, description)
}

func (s otlpSpan) SpanContext() SpanContext {
	sc := s.Span.SpanContext()
	return SpanContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}

func attributes(m map[string]any) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		kvs = append(kvs, toAttribute(k, v))
	}
	return kvs
}

// toAttribute maps span values onto OpenTelemetry types. Unknown types are
// formatted with fmt.
func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int32:
		return attribute.Int64(key, int64(v))
	case int64:
		return attribute.Int64(key, v)
	case float32:
		return attribute.Float64(key, float64(v))
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.Float64(key, v.Seconds())
	case []string:
		return attribute.StringSlice(key, v)
	case error:
		return attribute.String(key, v.Error())
	case nil:
		return attribute.String(key, "")
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
