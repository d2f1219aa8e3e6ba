// Package mock provides a deterministic, offline embedding and generative
// client for tests and local development.
package mock

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/calque-ai/docqa/pkg/rag"
)

// DefaultDimension is the vector size produced when none is configured.
const DefaultDimension = 64

// DefaultAnswer is returned by Generate when no answer is configured.
const DefaultAnswer = "mock answer"

// Client implements rag.EmbeddingClient and rag.GenerativeClient.
//
// Vectors are bag-of-words hashes, L2 normalized, so texts sharing words are
// closer under cosine similarity. Every call is recorded.
//
// Example:
//
//	c := mock.New(mock.WithAnswer("42"))
//	svc := pipeline.NewService(ex, c, store, c)
type Client struct {
	mu sync.Mutex

	dimension   int
	answer      string
	embedErr    error
	generateErr error
	failBatch   int

	embedCalls    []string
	batchCalls    [][]string
	generateCalls []rag.GenerateRequest
}

// Option configures a Client.
type Option func(*Client)

// WithDimension sets the vector size.
func WithDimension(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.dimension = n
		}
	}
}

// WithAnswer sets the text returned by Generate.
func WithAnswer(answer string) Option {
	return func(c *Client) { c.answer = answer }
}

// WithEmbedError makes every Embed and EmbedBatch call fail with err.
func WithEmbedError(err error) Option {
	return func(c *Client) { c.embedErr = err }
}

// WithGenerateError makes every Generate call fail with err.
func WithGenerateError(err error) Option {
	return func(c *Client) { c.generateErr = err }
}

// WithFailingBatch makes the n-th EmbedBatch call (1-based) fail.
func WithFailingBatch(n int) Option {
	return func(c *Client) { c.failBatch = n }
}

// ErrInjected is returned by WithFailingBatch failures.
var ErrInjected = errors.New("mock: injected failure")

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{dimension: DefaultDimension, answer: DefaultAnswer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dimension returns the vector size.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns the vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.embedCalls = append(c.embedCalls, text)
	err := c.embedErr
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return Vector(text, c.dimension), nil
}

// EmbedBatch returns one vector per text, in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.batchCalls = append(c.batchCalls, append([]string(nil), texts...))
	n := len(c.batchCalls)
	err := c.embedErr
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if c.failBatch > 0 && n == c.failBatch {
		return nil, ErrInjected
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, c.dimension)
	}
	return out, nil
}

// Generate returns the configured answer.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.generateCalls = append(c.generateCalls, req)
	err := c.generateErr
	c.mu.Unlock()

	if err != nil {
		return "", err
	}
	return c.answer, nil
}

// EmbedCalls returns the texts passed to Embed.
func (c *Client) EmbedCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.embedCalls...)
}

// BatchCalls returns the inputs of every EmbedBatch call.
func (c *Client) BatchCalls() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.batchCalls...)
}

// GenerateCalls returns the requests passed to Generate.
func (c *Client) GenerateCalls() []rag.GenerateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rag.GenerateRequest(nil), c.generateCalls...)
}

// Vector computes the deterministic embedding of text.
func Vector(text string, dimension int) []float32 {
	v := make([]float32, dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dimension)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
