// Package openai adapts the OpenAI API, or any OpenAI-compatible endpoint, to
// the rag embedding and generative contracts.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/calque-ai/docqa/pkg/helpers"
	"github.com/calque-ai/docqa/pkg/rag"
)

// Default model names.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
)

// Client implements rag.EmbeddingClient and rag.GenerativeClient.
type Client struct {
	client *openai.Client
	config *Config
}

// Config holds OpenAI-specific configuration.
type Config struct {
	// Required. API key.
	APIKey string

	// Optional. Custom base URL for compatible endpoints.
	BaseURL string

	EmbeddingModel string
	ChatModel      string

	// Optional. Requested vector size for text-embedding-3 models.
	Dimension int64

	// Optional. Sampling temperature for Generate.
	Temperature *float64

	// Optional. Maximum completion tokens for Generate.
	MaxTokens *int64

	// Optional. Retry budget of the underlying SDK. Nil keeps the SDK default.
	MaxRetries *int
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
	if o.config.BaseURL != "" {
		c.BaseURL = o.config.BaseURL
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
	if o.config.MaxRetries != nil {
		c.MaxRetries = o.config.MaxRetries
	}
}

// WithConfig merges the non-zero fields of config over the defaults.
//
// Example:
//
//	client, _ := openai.New(openai.WithConfig(&openai.Config{BaseURL: "http://localhost:8080/v1"}))
func WithConfig(config *Config) Option {
	return configOption{config: config}
}

// DefaultConfig reads OPENAI_API_KEY and OPENAI_BASE_URL from the environment.
func DefaultConfig() *Config {
	return &Config{
		APIKey:         helpers.GetStringFromEnv("OPENAI_API_KEY", ""),
		BaseURL:        helpers.GetStringFromEnv("OPENAI_BASE_URL", ""),
		EmbeddingModel: DefaultEmbeddingModel,
		ChatModel:      DefaultChatModel,
	}
}

// New creates an OpenAI client.
func New(opts ...Option) (*Client, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(config)
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set or provided in config")
	}

	var clientOptions []option.RequestOption
	clientOptions = append(clientOptions, option.WithAPIKey(config.APIKey))
	if config.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(config.BaseURL))
	}
	if config.MaxRetries != nil {
		clientOptions = append(clientOptions, option.WithMaxRetries(*config.MaxRetries))
	}

	openaiClient := openai.NewClient(clientOptions...)

	return &Client{client: &openaiClient, config: config}, nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single request. Results are placed by their
// reported index.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.config.EmbeddingModel),
	}
	if c.config.Dimension > 0 {
		params.Dimensions = openai.Int(c.config.Dimension)
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Generate runs a single non-streaming chat completion.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.config.ChatModel),
		Messages: messages,
	}
	if c.config.Temperature != nil {
		params.Temperature = openai.Float(*c.config.Temperature)
	}
	if c.config.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(*c.config.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
