// Package server exposes the question answering service over HTTP with JSON
// request and response bodies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/observability"
	"github.com/calque-ai/docqa/pkg/rag"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultUploadDir   = "./uploads"
	DefaultMaxFileSize = 10 << 20
	maxJSONBodySize    = 1 << 20
	shutdownTimeout    = 10 * time.Second
)

// Service is the request-level surface served over HTTP. *pipeline.Service
// implements it.
type Service interface {
	EmbedText(ctx context.Context, collectionID, text string, metadata map[string]string) (*rag.EmbedResult, error)
	EmbedPDF(ctx context.Context, collectionID string, file rag.FileSource, metadata map[string]string) (*rag.EmbedResult, error)
	EmbedTXT(ctx context.Context, collectionID string, file rag.FileSource, metadata map[string]string) (*rag.EmbedResult, error)
	EmbedWebsite(ctx context.Context, collectionID, url string, metadata map[string]string) (*rag.EmbedResult, error)
	Ask(ctx context.Context, collectionID, question string, nResults int) (*rag.AnswerResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, name string) (*rag.CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error
}

// Config holds server settings.
type Config struct {
	// Directory receiving uploaded files until the service has processed them.
	UploadDir string

	// Largest accepted upload in bytes.
	MaxFileSize int64

	// Optional. Served on GET /health.
	Health *observability.HealthCheckRegistry

	// Optional. Served on GET /metrics.
	MetricsHandler http.Handler

	// Optional. Browser origins allowed to call the API. "*" allows any
	// origin and an empty list sends no CORS headers.
	CORSOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request counts and durations.
func WithMetrics(m observability.MetricsProvider) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now for upload names and error timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc     Service
	cfg     Config
	log     *logger.Logger
	metrics observability.MetricsProvider
	now     func() time.Time
}

// New creates a Server and makes sure the upload directory exists.
//
// Example:
//
//	srv, err := server.New(svc, server.Config{UploadDir: "./uploads"}, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx, ":3000")
func New(svc Service, cfg Config, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultUploadDir
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	s := &Server{
		svc:     svc,
		cfg:     cfg,
		log:     logger.Nop(),
		metrics: observability.NoopMetricsProvider{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /embed/text", s.handleEmbedText)
	mux.HandleFunc("POST /embed/pdf", s.handleEmbedFile(rag.SourcePDF))
	mux.HandleFunc("POST /embed/txt", s.handleEmbedFile(rag.SourceTXT))
	mux.HandleFunc("POST /embed/website", s.handleEmbedWebsite)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /collections", s.handleListCollections)
	mux.HandleFunc("GET /collections/{id}", s.handleCollectionInfo)
	mux.HandleFunc("DELETE /collections/{id}", s.handleDeleteCollection)

	if s.cfg.Health != nil {
		mux.Handle("GET /health", s.cfg.Health.Handler())
	}
	if s.cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	}

	return s.instrument(s.cors(mux))
}

const (
	corsMethods = "GET, POST, DELETE, OPTIONS"
	corsHeaders = "Content-Type"
)

// cors answers preflight requests itself so the method-scoped routes never
// see OPTIONS.
func (s *Server) cors(next http.Handler) http.Handler {
	if len(s.cfg.CORSOrigins) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := s.allowedOrigin(r.Header.Get("Origin")); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if slices.Contains(s.cfg.CORSOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.cfg.CORSOrigins, origin) {
		return origin
	}
	return ""
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", logger.Attr("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info(ctx, "http server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		labels := map[string]string{"route": route, "status": strconv.Itoa(rec.status)}
		s.metrics.Counter(r.Context(), observability.MetricHTTPRequests, 1, labels)
		s.metrics.RecordDuration(r.Context(), observability.MetricHTTPDuration, time.Since(start), map[string]string{"route": route})

		s.log.Debug(r.Context(), "http request",
			logger.Attr("method", r.Method),
			logger.Attr("path", r.URL.Path),
			logger.Attr("status", rec.status),
			logger.Attr("duration", time.Since(start)),
		)
	})
}
