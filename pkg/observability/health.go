package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// DefaultHealthCheckTimeout applies to checks that do not set their own.
const DefaultHealthCheckTimeout = 5 * time.Second

// HealthChecker verifies one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
	// Timeout returns the per-check deadline; zero means the registry default.
	Timeout() time.Duration
}

// HealthStatus represents the overall health status of the system.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the outcome of a single check.
type HealthCheckResult struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthReport is the JSON body served by the health endpoint.
type HealthReport struct {
	Status    HealthStatus                 `json:"status"`
	Checks    map[string]HealthCheckResult `json:"checks"`
	Uptime    time.Duration                `json:"uptime"`
	Timestamp time.Time                    `json:"timestamp"`
}

// FuncHealthCheck wraps a function as a health check.
type FuncHealthCheck struct {
	CheckName    string
	CheckFunc    func(ctx context.Context) error
	CheckTimeout time.Duration
}

func (c *FuncHealthCheck) Name() string                    { return c.CheckName }
func (c *FuncHealthCheck) Check(ctx context.Context) error { return c.CheckFunc(ctx) }
func (c *FuncHealthCheck) Timeout() time.Duration          { return c.CheckTimeout }

// HTTPHealthCheck passes when URL answers with ExpectedStatusCode (default 200).
type HTTPHealthCheck struct {
	CheckName          string
	URL                string
	ExpectedStatusCode int
	CheckTimeout       time.Duration
	Client             *http.Client
}

func (c *HTTPHealthCheck) Name() string           { return c.CheckName }
func (c *HTTPHealthCheck) Timeout() time.Duration { return c.CheckTimeout }

func (c *HTTPHealthCheck) Check(ctx context.Context) error {
	expected := c.ExpectedStatusCode
	if expected == 0 {
		expected = http.StatusOK
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != expected {
		return fmt.Errorf("unexpected status code: %d (expected %d)", resp.StatusCode, expected)
	}
	return nil
}

// HealthCheckRegistry holds named checks and runs them concurrently.
//
// Example:
//
//	health := observability.NewHealthCheckRegistry(0)
//	health.Register(&observability.FuncHealthCheck{CheckName: "vector_store", CheckFunc: ping})
//	mux.Handle("GET /health", health.Handler())
type HealthCheckRegistry struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	timeout time.Duration
}

// NewHealthCheckRegistry creates a registry. A non-positive timeout selects
// DefaultHealthCheckTimeout.
func NewHealthCheckRegistry(timeout time.Duration) *HealthCheckRegistry {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &HealthCheckRegistry{checks: make(map[string]HealthChecker), timeout: timeout}
}

// Register adds or replaces a check.
func (r *HealthCheckRegistry) Register(check HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[check.Name()] = check
}

// RunAll runs every check and aggregates the report. Any failure makes the
// whole report unhealthy.
func (r *HealthCheckRegistry) RunAll(ctx context.Context) HealthReport {
	r.mu.RLock()
	checks := make([]HealthChecker, 0, len(r.checks))
	for _, c := range r.checks {
		checks = append(checks, c)
	}
	r.mu.RUnlock()

	report := HealthReport{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]HealthCheckResult, len(checks)),
		Uptime:    time.Since(startTime),
		Timestamp: time.Now(),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			timeout := c.Timeout()
			if timeout <= 0 {
				timeout = r.timeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			result := HealthCheckResult{Name: c.Name(), Status: "ok", Latency: time.Since(start)}
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
			}

			mu.Lock()
			report.Checks[result.Name] = result
			if err != nil {
				report.Status = HealthStatusUnhealthy
			}
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	return report
}

// Handler serves the report as JSON; unhealthy reports get 503.
func (r *HealthCheckRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		report := r.RunAll(req.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
