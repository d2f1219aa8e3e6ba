package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInMemoryMetricsProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewInMemoryMetricsProvider()

	p.Counter(ctx, MetricIngestChunks, 3, map[string]string{"source": "pdf", "collection": "docs"})
	p.Counter(ctx, MetricIngestChunks, 2, map[string]string{"collection": "docs", "source": "pdf"})
	p.Gauge(ctx, "inflight", 1, nil)
	p.Gauge(ctx, "inflight", -1, nil)
	p.RecordDuration(ctx, MetricQueryDuration, 1500*time.Millisecond, nil)

	if got := p.GetCounter(MetricIngestChunks, map[string]string{"source": "pdf", "collection": "docs"}); got != 5 {
		t.Errorf("counter = %d, want 5", got)
	}
	if got := p.GetGauge("inflight", nil); got != 0 {
		t.Errorf("gauge = %v, want 0", got)
	}
	if got := p.GetHistogram(MetricQueryDuration, nil); len(got) != 1 || got[0] != 1.5 {
		t.Errorf("histogram = %v, want [1.5]", got)
	}
}

func TestPrometheusProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPrometheusProvider(WithoutRuntimeCollectors())

	p.Counter(ctx, MetricQueryTotal, 2, map[string]string{"status": "ok"})
	p.RecordDuration(ctx, MetricQueryDuration, 200*time.Millisecond, map[string]string{"status": "ok"})
	p.Gauge(ctx, "docqa_inflight", 1, nil)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`docqa_query_total{status="ok"} 2`,
		`docqa_query_duration_seconds_count{status="ok"} 1`,
		`docqa_inflight 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestInMemoryTracerProvider(t *testing.T) {
	t.Parallel()

	p := NewInMemoryTracerProvider()
	_, span := p.StartSpan(context.Background(), "ingest", WithAttributes(map[string]any{"collection": "docs"}))
	span.SetAttribute("chunks", 3)
	span.AddEvent("batch_stored", nil)
	span.End(errors.New("upsert failed"))

	spans := p.GetSpansByName("ingest")
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Attributes["collection"] != "docs" || s.Attributes["chunks"] != 3 {
		t.Errorf("attributes = %v", s.Attributes)
	}
	if s.Status != SpanStatusError || s.Error == nil {
		t.Errorf("status = %v, error = %v", s.Status, s.Error)
	}
	if len(s.Events) != 1 || s.Events[0] != "batch_stored" {
		t.Errorf("events = %v", s.Events)
	}
}

func TestNoopProviders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var m MetricsProvider = NoopMetricsProvider{}
	m.Counter(ctx, "x", 1, nil)

	var tr TracerProvider = NoopTracerProvider{}
	got, span := tr.StartSpan(ctx, "x")
	if got != ctx {
		t.Error("noop span should keep the context")
	}
	span.End(nil)
	if err := tr.Shutdown(ctx); err != nil {
		t.Error(err)
	}
}

func TestHealthCheckRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     []HealthChecker
		wantStatus HealthStatus
		wantCode   int
	}{
		{
			name:       "no checks",
			wantStatus: HealthStatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name: "all passing",
			checks: []HealthChecker{
				&FuncHealthCheck{CheckName: "store", CheckFunc: func(context.Context) error { return nil }},
			},
			wantStatus: HealthStatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name: "one failing",
			checks: []HealthChecker{
				&FuncHealthCheck{CheckName: "store", CheckFunc: func(context.Context) error { return nil }},
				&FuncHealthCheck{CheckName: "model", CheckFunc: func(context.Context) error { return errors.New("down") }},
			},
			wantStatus: HealthStatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "timeout",
			checks: []HealthChecker{
				&FuncHealthCheck{
					CheckName:    "slow",
					CheckTimeout: 10 * time.Millisecond,
					CheckFunc: func(ctx context.Context) error {
						<-ctx.Done()
						return ctx.Err()
					},
				},
			},
			wantStatus: HealthStatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := NewHealthCheckRegistry(time.Second)
			for _, c := range tt.checks {
				reg.Register(c)
			}

			rec := httptest.NewRecorder()
			reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report HealthReport
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("report status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("got %d check results, want %d", len(report.Checks), len(tt.checks))
			}
		})
	}
}

func TestHTTPHealthCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	ok := &HTTPHealthCheck{CheckName: "up", URL: srv.URL + "/up"}
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v", err)
	}
	bad := &HTTPHealthCheck{CheckName: "down", URL: srv.URL + "/down"}
	if err := bad.Check(context.Background()); err == nil {
		t.Error("Check() expected error for 502")
	}
}

func TestParseOTLPEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    OTLPEndpoint
		wantErr bool
	}{
		{raw: "localhost:4317", want: OTLPEndpoint{Protocol: OTLPProtocolGRPC, HostPort: "localhost:4317", Insecure: true}},
		{raw: " collector:4317/ ", want: OTLPEndpoint{Protocol: OTLPProtocolGRPC, HostPort: "collector:4317", Insecure: true}},
		{raw: "http://localhost:4318", want: OTLPEndpoint{Protocol: OTLPProtocolHTTP, HostPort: "localhost:4318", Insecure: true}},
		{raw: "https://otel.example.com:443/", want: OTLPEndpoint{Protocol: OTLPProtocolHTTP, HostPort: "otel.example.com:443"}},
		{raw: "", wantErr: true},
		{raw: "udp://localhost:4317", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseOTLPEndpoint(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOTLPEndpoint(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOTLPEndpoint(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestToAttribute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value any
		want  string
	}{
		{"pdf", "pdf"},
		{42, "42"},
		{int32(7), "7"},
		{int64(9), "9"},
		{2.5, "2.5"},
		{true, "true"},
		{1500 * time.Millisecond, "1.5"},
		{errors.New("boom"), "boom"},
		{struct{ N int }{3}, "{3}"},
	}

	for _, tt := range tests {
		kv := toAttribute("k", tt.value)
		if string(kv.Key) != "k" {
			t.Errorf("key = %q", kv.Key)
		}
		if got := kv.Value.Emit(); got != tt.want {
			t.Errorf("toAttribute(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
