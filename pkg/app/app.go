// Package app assembles the service from configuration: AI provider, vector
// store, embedding cache, logging, metrics and tracing.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/calque-ai/docqa/pkg/ai/gemini"
	"github.com/calque-ai/docqa/pkg/ai/mock"
	"github.com/calque-ai/docqa/pkg/ai/ollama"
	"github.com/calque-ai/docqa/pkg/ai/openai"
	"github.com/calque-ai/docqa/pkg/cache"
	"github.com/calque-ai/docqa/pkg/config"
	"github.com/calque-ai/docqa/pkg/extract"
	"github.com/calque-ai/docqa/pkg/helpers"
	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/observability"
	"github.com/calque-ai/docqa/pkg/pipeline"
	"github.com/calque-ai/docqa/pkg/rag"
	"github.com/calque-ai/docqa/pkg/store/memory"
	"github.com/calque-ai/docqa/pkg/store/pgvector"
	"github.com/calque-ai/docqa/pkg/store/qdrant"
	"github.com/calque-ai/docqa/pkg/store/weaviate"
)

// App holds the assembled service and everything that must be closed with it.
type App struct {
	Config  config.Config
	Log     *logger.Logger
	Service *pipeline.Service
	Store   rag.VectorStore
	Metrics *observability.PrometheusProvider
	Tracer  observability.TracerProvider
	Health  *observability.HealthCheckRegistry

	closers []func(context.Context) error
}

// Option configures New.
type Option func(*options)

type options struct {
	logOutput io.Writer
}

// WithLogOutput redirects logs, e.g. to stderr when stdout carries MCP traffic.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.logOutput = w
		}
	}
}

// New builds an App from cfg. On error everything opened so far is closed.
//
// Example:
//
//	a, err := app.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer a.Close(context.Background())
func New(ctx context.Context, cfg config.Config, opts ...Option) (a *App, err error) {
	o := options{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{
		Config:  cfg,
		Log:     NewLogger(o.logOutput, cfg.Observability),
		Metrics: observability.NewPrometheusProvider(),
		Tracer:  observability.NoopTracerProvider{},
		Health:  observability.NewHealthCheckRegistry(0),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	if endpoint := cfg.Observability.OTLPEndpoint; endpoint != "" {
		tracer, err := NewTracer(ctx, cfg.Observability)
		if err != nil {
			return a, fmt.Errorf("failed to start tracing: %w", err)
		}
		a.Tracer = tracer
		a.closers = append(a.closers, tracer.Shutdown)
		a.Log.Info(ctx, "tracing enabled", logger.Attr("endpoint", endpoint))
	}

	embedder, generator, err := NewAIClients(cfg.AI, cfg.Store.Dimension)
	if err != nil {
		return a, err
	}

	embedder, err = a.withCache(embedder)
	if err != nil {
		return a, err
	}

	store, err := NewStore(ctx, cfg.Store)
	if err != nil {
		return a, err
	}
	a.Store = store
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	a.Health.Register(&observability.FuncHealthCheck{
		CheckName: "vector_store",
		CheckFunc: storeCheck(store),
	})

	a.Service = pipeline.NewService(
		extract.New(extract.DefaultConfig()),
		embedder, store, generator,
		pipeline.WithLogger(a.Log),
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithTracer(a.Tracer),
	)

	a.Log.Info(ctx, "service ready",
		logger.Attr("provider", cfg.AI.Provider),
		logger.Attr("vector_store", cfg.Store.Backend),
		logger.Attr("embed_cache", cfg.Cache.Kind),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the zerolog-backed logger described by cfg.
func NewLogger(w io.Writer, cfg config.Observability) *logger.Logger {
	return logger.NewZerolog(w, logger.ParseLevel(cfg.LogLevel), cfg.LogPretty).
		With(logger.Attr("service", cfg.ServiceName))
}

// NewTracer starts an OTLP exporter for cfg.OTLPEndpoint. Endpoints with an
// http(s) scheme use the HTTP exporter, bare host:port uses gRPC.
func NewTracer(ctx context.Context, cfg config.Observability) (*observability.OTLPTracerProvider, error) {
	return observability.NewOTLPTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
}

// NewAIClients creates the embedding and generative clients for cfg.Provider.
// dimension is requested from providers that support reduced vectors.
func NewAIClients(cfg config.AI, dimension int) (rag.EmbeddingClient, rag.GenerativeClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		c, err := gemini.New(gemini.WithConfig(&gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
			Dimension:      int32(dimension),
		}))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return c, c, nil
	case config.ProviderOpenAI:
		c, err := openai.New(openai.WithConfig(&openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
			Dimension:      int64(dimension),
		}))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return c, c, nil
	case config.ProviderOllama:
		c, err := ollama.New(ollama.WithConfig(&ollama.Config{
			Host:           cfg.OllamaHost,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
		}))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return c, c, nil
	case config.ProviderMock:
		c := mock.New(mock.WithDimension(dimension))
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// NewStore connects the configured vector store.
func NewStore(ctx context.Context, cfg config.Store) (rag.VectorStore, error) {
	switch cfg.Backend {
	case config.StoreQdrant:
		s, err := qdrant.New(qdrant.Config{URL: cfg.QdrantURL, APIKey: cfg.QdrantAPIKey, Dimension: cfg.Dimension})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return s, nil
	case config.StorePGVector:
		s, err := pgvector.New(ctx, pgvector.Config{ConnectionString: cfg.DatabaseURL, Dimension: cfg.Dimension, CreateExtension: true})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to pgvector: %w", err)
		}
		return s, nil
	case config.StoreWeaviate:
		s, err := weaviate.New(weaviate.Config{URL: cfg.WeaviateURL, APIKey: cfg.WeaviateAPIKey})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to weaviate: %w", err)
		}
		return s, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.Backend)
	}
}

func (a *App) withCache(embedder rag.EmbeddingClient) (rag.EmbeddingClient, error) {
	var store cache.Store
	switch a.Config.Cache.Kind {
	case config.CacheNone, "":
		return embedder, nil
	case config.CacheMemory:
		store = cache.NewInMemoryStore()
	case config.CacheBadger:
		if err := os.MkdirAll(a.Config.Cache.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		s, err := cache.NewBadgerStore(a.Config.Cache.Dir)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown embedding cache %q", a.Config.Cache.Kind)
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	return cache.NewEmbedder(embedder, store,
		cache.WithNamespace(CacheNamespace(a.Config.AI, a.Config.Store.Dimension)),
		cache.WithTTL(a.Config.Cache.TTL),
		cache.WithLogger(a.Log),
		cache.WithMetrics(a.Metrics),
	), nil
}

// CacheNamespace scopes cached vectors to the provider, model and dimension
// that produced them.
func CacheNamespace(cfg config.AI, dimension int) string {
	model := cfg.EmbeddingModel
	if model == "" {
		switch cfg.Provider {
		case config.ProviderGemini:
			model = gemini.DefaultEmbeddingModel
		case config.ProviderOpenAI:
			model = openai.DefaultEmbeddingModel
		case config.ProviderOllama:
			model = ollama.DefaultEmbeddingModel
		}
	}
	return fmt.Sprintf("%s/%s/%d", cfg.Provider, helpers.FirstNonEmpty(model, "default"), dimension)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

func storeCheck(store rag.VectorStore) func(context.Context) error {
	if h, ok := store.(healthChecker); ok {
		return h.Health
	}
	return func(ctx context.Context) error {
		_, err := store.ListCollections(ctx)
		return err
	}
}
