package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/observability"
	"github.com/calque-ai/docqa/pkg/rag"
)

// Embedder caches vectors produced by an inner rag.EmbeddingClient.
//
// Keys are the SHA-256 of namespace and text, so vectors from different models
// never mix. Store failures are logged and treated as misses.
//
// Example:
//
//	store, _ := cache.NewBadgerStore("./.cache/embeddings")
//	embedder := cache.NewEmbedder(gemini, store, cache.WithNamespace("text-embedding-004"))
type Embedder struct {
	inner     rag.EmbeddingClient
	store     Store
	namespace string
	ttl       time.Duration
	log       *logger.Logger
	metrics   observability.MetricsProvider
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithNamespace scopes cache keys, typically to the embedding model name.
func WithNamespace(ns string) EmbedderOption {
	return func(e *Embedder) { e.namespace = ns }
}

// WithTTL sets the entry lifetime. Zero keeps entries forever.
func WithTTL(ttl time.Duration) EmbedderOption {
	return func(e *Embedder) { e.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) EmbedderOption {
	return func(e *Embedder) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records hit and miss counters.
func WithMetrics(m observability.MetricsProvider) EmbedderOption {
	return func(e *Embedder) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewEmbedder wraps inner with store.
func NewEmbedder(inner rag.EmbeddingClient, store Store, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		inner:   inner,
		store:   store,
		log:     logger.Nop(),
		metrics: observability.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns the cached vector for text or computes and stores it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch serves hits from the store and sends the misses to the inner
// client in a single EmbedBatch call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v := e.lookup(ctx, t); v != nil {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	e.metrics.Counter(ctx, observability.MetricEmbedCacheHits, int64(len(texts)-len(missIdx)), nil)
	e.metrics.Counter(ctx, observability.MetricEmbedCacheMisses, int64(len(missIdx)), nil)

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: provider returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
		if err := e.store.Set(e.key(missTexts[j]), encodeVector(vectors[j]), e.ttl); err != nil {
			e.log.Warn(ctx, "embedding cache write failed", logger.Err(err))
		}
	}
	return out, nil
}

func (e *Embedder) lookup(ctx context.Context, text string) []float32 {
	data, err := e.store.Get(e.key(text))
	if err != nil {
		e.log.Warn(ctx, "embedding cache read failed", logger.Err(err))
		return nil
	}
	if data == nil {
		return nil
	}
	v, ok := decodeVector(data)
	if !ok {
		e.log.Warn(ctx, "discarding corrupt embedding cache entry")
		_ = e.store.Delete(e.key(text))
		return nil
	}
	return v
}

func (e *Embedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(e.namespace))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "embed:" + hex.EncodeToString(h.Sum(nil))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, true
}
