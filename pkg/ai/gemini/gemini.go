// Package gemini adapts Google Gemini models to the rag embedding and
// generative contracts.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/calque-ai/docqa/pkg/helpers"
	"github.com/calque-ai/docqa/pkg/rag"
)

// Default model names.
const (
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultChatModel      = "gemini-2.5-flash"
)

// Client implements rag.EmbeddingClient and rag.GenerativeClient for Gemini.
//
// Example:
//
//	client, err := gemini.New(gemini.WithConfig(&gemini.Config{APIKey: key}))
//	vec, err := client.Embed(ctx, "hello")
type Client struct {
	client *genai.Client
	config *Config
}

// Config holds Gemini-specific configuration.
type Config struct {
	// Required. API key for the Gemini API.
	APIKey string

	// Model used for Embed and EmbedBatch.
	EmbeddingModel string

	// Model used for Generate.
	ChatModel string

	// Optional. Requested vector size. Zero keeps the model default.
	Dimension int32

	// Optional. Sampling temperature for Generate.
	Temperature *float32

	// Optional. Maximum number of output tokens for Generate.
	MaxTokens *int32

	// Optional. Overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Option configures a Client.
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(c *Config) {
	if o.config.APIKey != "" {
		c.APIKey = o.config.APIKey
	}
	if o.config.EmbeddingModel != "" {
		c.EmbeddingModel = o.config.EmbeddingModel
	}
	if o.config.ChatModel != "" {
		c.ChatModel = o.config.ChatModel
	}
	if o.config.Dimension != 0 {
		c.Dimension = o.config.Dimension
	}
	if o.config.Temperature != nil {
		c.Temperature = o.config.Temperature
	}
	if o.config.MaxTokens != nil {
		c.MaxTokens = o.config.MaxTokens
	}
	if o.config.BaseURL != "" {
		c.BaseURL = o.config.BaseURL
	}
}

// WithConfig merges the non-zero fields of config over the defaults.
func WithConfig(config *Config) Option {
	return configOption{config: config}
}

// DefaultConfig returns the defaults. The API key is read from GEMINI_API_KEY
// or GOOGLE_API_KEY.
func DefaultConfig() *Config {
	return &Config{
		APIKey:         helpers.GetFirstStringFromEnv("", "GEMINI_API_KEY", "GOOGLE_API_KEY"),
		EmbeddingModel: DefaultEmbeddingModel,
		ChatModel:      DefaultChatModel,
	}
}

// New creates an authenticated Gemini client.
func New(opts ...Option) (*Client, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(config)
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set or provided in config")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{client: client, config: config}, nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var cfg *genai.EmbedContentConfig
	if c.config.Dimension > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(c.config.Dimension)}
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.config.EmbeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini embed: empty embedding at index %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Generate runs a single non-streaming completion.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.config.ChatModel, genai.Text(req.Prompt), c.generateConfig(req.System))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

func (c *Client) generateConfig(system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if c.config.Temperature != nil {
		config.Temperature = genai.Ptr(*c.config.Temperature)
	}
	if c.config.MaxTokens != nil {
		config.MaxOutputTokens = *c.config.MaxTokens
	}
	return config
}
