// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/calque-ai/docqa/pkg/helpers"
)

// Supported AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Supported vector stores.
const (
	StoreQdrant   = "qdrant"
	StorePGVector = "pgvector"
	StoreWeaviate = "weaviate"
	StoreMemory   = "memory"
)

// Supported embedding caches.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheBadger = "badger"
)

// EnvConfigPath names the YAML file when no explicit path is given.
const EnvConfigPath = "DOCQA_CONFIG"

// Config is the complete service configuration.
type Config struct {
	Server        Server        `yaml:"server"`
	AI            AI            `yaml:"ai"`
	Store         Store         `yaml:"store"`
	Cache         Cache         `yaml:"cache"`
	Observability Observability `yaml:"observability"`
}

// Server configures the HTTP surface.
type Server struct {
	Port        int    `yaml:"port"`
	UploadDir   string `yaml:"upload_dir"`
	MaxFileSize int64  `yaml:"max_file_size"`

	// Comma separated list of allowed browser origins. "*" allows any origin
	// and an empty value disables CORS headers.
	CORSOrigins string `yaml:"cors_origins"`
}

// Addr returns the listen address for Port.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (s Server) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(s.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// AI selects and configures the embedding and generative provider.
type AI struct {
	Provider       string `yaml:"provider"`
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	OllamaHost     string `yaml:"ollama_host"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
}

// Store selects and configures the vector store.
type Store struct {
	Backend        string `yaml:"vector_store"`
	QdrantURL      string `yaml:"qdrant_url"`
	QdrantAPIKey   string `yaml:"qdrant_api_key"`
	DatabaseURL    string `yaml:"database_url"`
	WeaviateURL    string `yaml:"weaviate_url"`
	WeaviateAPIKey string `yaml:"weaviate_api_key"`
	Dimension      int    `yaml:"vector_dimension"`
}

// Cache configures the embedding cache.
type Cache struct {
	Kind string        `yaml:"kind"`
	Dir  string        `yaml:"dir"`
	TTL  time.Duration `yaml:"ttl"`
}

// Observability configures logging and tracing.
type Observability struct {
	LogLevel     string `yaml:"log_level"`
	LogPretty    bool   `yaml:"log_pretty"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: Server{
			Port:        3000,
			UploadDir:   "./uploads",
			MaxFileSize: 10 << 20,
			CORSOrigins: "*",
		},
		AI: AI{
			Provider: ProviderGemini,
		},
		Store: Store{
			Backend:   StoreQdrant,
			QdrantURL: "http://localhost:6334",
			Dimension: 768,
		},
		Cache: Cache{
			Kind: CacheNone,
			Dir:  "./data/embed-cache",
			TTL:  24 * time.Hour,
		},
		Observability: Observability{
			LogLevel:    "info",
			ServiceName: "docqa",
		},
	}
}

// Load builds the configuration.
//
// Input: optional YAML path (falls back to $DOCQA_CONFIG)
// Output: validated Config
// Behavior: a missing .env file is ignored, a missing explicit YAML file is an
// error. Environment variables override YAML values.
//
// Example:
//
//	cfg, err := config.Load("")
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read resolves settings like Load without validating them, so callers can
// apply overrides first.
func Read(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = helpers.GetIntFromEnv("PORT", c.Server.Port)
	c.Server.UploadDir = helpers.GetStringFromEnv("UPLOAD_DIR", c.Server.UploadDir)
	c.Server.MaxFileSize = helpers.GetInt64FromEnv("MAX_FILE_SIZE", c.Server.MaxFileSize)
	c.Server.CORSOrigins = helpers.GetStringFromEnv("CORS_ORIGINS", c.Server.CORSOrigins)

	c.AI.Provider = strings.ToLower(helpers.GetStringFromEnv("AI_PROVIDER", c.AI.Provider))
	c.AI.GeminiAPIKey = helpers.GetFirstStringFromEnv(c.AI.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	c.AI.OpenAIAPIKey = helpers.GetStringFromEnv("OPENAI_API_KEY", c.AI.OpenAIAPIKey)
	c.AI.OpenAIBaseURL = helpers.GetStringFromEnv("OPENAI_BASE_URL", c.AI.OpenAIBaseURL)
	c.AI.OllamaHost = helpers.GetStringFromEnv("OLLAMA_HOST", c.AI.OllamaHost)
	c.AI.EmbeddingModel = helpers.GetStringFromEnv("EMBEDDING_MODEL", c.AI.EmbeddingModel)
	c.AI.ChatModel = helpers.GetStringFromEnv("CHAT_MODEL", c.AI.ChatModel)

	c.Store.Backend = strings.ToLower(helpers.GetStringFromEnv("VECTOR_STORE", c.Store.Backend))
	c.Store.QdrantURL = helpers.GetStringFromEnv("QDRANT_URL", c.Store.QdrantURL)
	c.Store.QdrantAPIKey = helpers.GetStringFromEnv("QDRANT_API_KEY", c.Store.QdrantAPIKey)
	c.Store.DatabaseURL = helpers.GetStringFromEnv("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.WeaviateURL = helpers.GetStringFromEnv("WEAVIATE_URL", c.Store.WeaviateURL)
	c.Store.WeaviateAPIKey = helpers.GetStringFromEnv("WEAVIATE_API_KEY", c.Store.WeaviateAPIKey)
	c.Store.Dimension = helpers.GetIntFromEnv("VECTOR_DIMENSION", c.Store.Dimension)

	c.Cache.Kind = strings.ToLower(helpers.GetStringFromEnv("EMBED_CACHE", c.Cache.Kind))
	c.Cache.Dir = helpers.GetStringFromEnv("EMBED_CACHE_DIR", c.Cache.Dir)
	c.Cache.TTL = helpers.GetDurationFromEnv("EMBED_CACHE_TTL", c.Cache.TTL)

	c.Observability.LogLevel = helpers.GetStringFromEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogPretty = helpers.GetBoolFromEnv("LOG_PRETTY", c.Observability.LogPretty)
	c.Observability.OTLPEndpoint = helpers.GetStringFromEnv("OTLP_ENDPOINT", c.Observability.OTLPEndpoint)
	c.Observability.ServiceName = helpers.GetStringFromEnv("SERVICE_NAME", c.Observability.ServiceName)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir is required"))
	}
	if c.Server.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max_file_size must be positive, got %d", c.Server.MaxFileSize))
	}

	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown AI provider %q", c.AI.Provider))
	}

	switch c.Store.Backend {
	case StoreQdrant:
		if c.Store.QdrantURL == "" {
			errs = append(errs, errors.New("QDRANT_URL is required for the qdrant store"))
		}
	case StorePGVector:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the pgvector store"))
		}
	case StoreWeaviate:
		if c.Store.WeaviateURL == "" {
			errs = append(errs, errors.New("WEAVIATE_URL is required for the weaviate store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector store %q", c.Store.Backend))
	}
	if c.Store.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("vector_dimension must be positive, got %d", c.Store.Dimension))
	}

	switch c.Cache.Kind {
	case CacheNone, CacheMemory:
	case CacheBadger:
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("EMBED_CACHE_DIR is required for the badger cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedding cache %q", c.Cache.Kind))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("embedding cache ttl must not be negative, got %s", c.Cache.TTL))
	}

	return errors.Join(errs...)
}
