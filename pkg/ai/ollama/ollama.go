// Package ollama adapts a local Ollama server to the rag embedding and
// generative contracts.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/calque-ai/docqa/pkg/rag"
)

// Default model names.
const (
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultChatModel      = "llama3.2"
)

// Client implements rag.EmbeddingClient and rag.GenerativeClient.
type Client struct {
	client *api.Client
	config *Config
}

// Config holds Ollama-specific configuration.
type Config struct {
	// Optional. Server URL. Empty uses OLLAMA_HOST or the local default.
	Host string

	EmbeddingModel string
	ChatModel      string

	// Optional. Sampling temperature for Generate.
	Temperature *float32

	// Optional. How long the model stays loaded, e.g. "5m".
	KeepAlive string
}

// Option configures a Client.
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(c *Config) {
	if o.config.Host != "" {
		c.Host = o.config.Host
	}
	if o.config.EmbeddingModel != "" {
		c.EmbeddingModel = o.config.EmbeddingModel
	}
	if o.config.ChatModel != "" {
		c.ChatModel = o.config.ChatModel
	}
	if o.config.Temperature != nil {
		c.Temperature = o.config.Temperature
	}
	if o.config.KeepAlive != "" {
		c.KeepAlive = o.config.KeepAlive
	}
}

// WithConfig merges the non-zero fields of config over the defaults.
func WithConfig(config *Config) Option {
	return configOption{config: config}
}

// DefaultConfig returns the defaults.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel: DefaultEmbeddingModel,
		ChatModel:      DefaultChatModel,
		KeepAlive:      "5m",
	}
}

// New creates an Ollama client. No request is made until first use.
//
// Example:
//
//	client, err := ollama.New(ollama.WithConfig(&ollama.Config{Host: "http://localhost:11434"}))
func New(opts ...Option) (*Client, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(config)
	}

	var client *api.Client
	if config.Host == "" {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create client from environment: %w", err)
		}
	} else {
		u, err := url.Parse(config.Host)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid host URL %q", config.Host)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	return &Client{client: client, config: config}, nil
}

// Embed returns the embedding of text.
func (o *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts with one /api/embed call.
func (o *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.config.EmbeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Generate runs a single non-streaming completion.
func (o *Client) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	stream := false
	gen := &api.GenerateRequest{
		Model:   o.config.ChatModel,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: make(map[string]any),
	}
	if o.config.Temperature != nil {
		gen.Options["temperature"] = *o.config.Temperature
	}
	if o.config.KeepAlive != "" {
		gen.Options["keep_alive"] = o.config.KeepAlive
	}

	var b strings.Builder
	err := o.client.Generate(ctx, gen, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return b.String(), nil
}
