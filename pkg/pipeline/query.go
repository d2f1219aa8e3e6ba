package pipeline

import (
	"context"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/observability"
	"github.com/calque-ai/docqa/pkg/rag"
)

// ContextSeparator joins retrieved chunk texts.
const ContextSeparator = "\n\n"

// Querier answers questions from a collection.
type Querier struct {
	embedder  rag.EmbeddingClient
	store     rag.VectorStore
	generator rag.GenerativeClient
	opts      options
}

// NewQuerier creates a Querier.
func NewQuerier(embedder rag.EmbeddingClient, store rag.VectorStore, generator rag.GenerativeClient, opts ...Option) *Querier {
	return &Querier{embedder: embedder, store: store, generator: generator, opts: buildOptions(opts)}
}

// ClampTopK bounds a requested result count to [1, MaxTopK].
func ClampTopK(k int) int {
	return max(1, min(k, MaxTopK))
}

// Query embeds question, retrieves up to topK chunks from collectionID and asks
// the generative model for an answer grounded in them.
//
// The generator is called even when nothing is retrieved. A missing collection
// fails with rag.ErrNotFound; provider failures with rag.ErrUpstream.
func (q *Querier) Query(ctx context.Context, collectionID, question string, topK int) (res *rag.AnswerResult, err error) {
	start := q.opts.now()
	status := "ok"

	ctx, span := q.opts.tracer.StartSpan(ctx, "docqa.query", observability.WithAttributes(map[string]any{
		"collection": collectionID,
	}))
	defer func() {
		if err != nil {
			status = "error"
		}
		span.End(err)
		labels := map[string]string{"status": status}
		q.opts.metrics.Counter(ctx, observability.MetricQueryTotal, 1, labels)
		q.opts.metrics.RecordDuration(ctx, observability.MetricQueryDuration, q.opts.now().Sub(start), labels)
	}()

	k := ClampTopK(topK)
	span.SetAttribute("top_k", k)

	vector, err := q.embedder.Embed(ctx, question)
	if err != nil {
		return nil, rag.Upstream("embed question", err)
	}

	retrieved, err := q.store.Query(ctx, collectionID, vector, k)
	if err != nil {
		return nil, rag.Upstream("query store", err)
	}
	q.opts.metrics.Histogram(ctx, observability.MetricQueryChunks, float64(len(retrieved)), nil)

	texts := make([]string, len(retrieved))
	sources := orderedmap.New[string, struct{}]()
	for i, c := range retrieved {
		texts[i] = c.Text
		sources.Set(c.SourceLabel(), struct{}{})
	}

	answer, err := q.generator.Generate(ctx, rag.GenerateRequest{
		System: SystemInstruction,
		Prompt: BuildPrompt(strings.Join(texts, ContextSeparator), question),
	})
	if err != nil {
		return nil, rag.Upstream("generate answer", err)
	}

	labels := make([]string, 0, sources.Len())
	for pair := sources.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
	}

	q.opts.log.Info(ctx, "question answered",
		logger.Attr("collection", collectionID),
		logger.Attr("top_k", k),
		logger.Attr("chunks_used", len(retrieved)),
		logger.Attr("sources", labels))

	return &rag.AnswerResult{
		Answer:     answer,
		Sources:    labels,
		ChunksUsed: len(retrieved),
	}, nil
}
