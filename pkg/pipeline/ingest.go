package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/calque-ai/docqa/pkg/chunk"
	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/observability"
	"github.com/calque-ai/docqa/pkg/rag"
)

// IngestRequest describes one source to store.
type IngestRequest struct {
	CollectionID string

	// Extracted text. It is normalized again by the chunker.
	Text string

	// Identifies the originating document, e.g. "pdf_report.pdf".
	SourceID string

	// Defaults for stored metadata. Source selects the chunking preset; Part
	// and Timestamp are assigned per chunk.
	Metadata rag.Metadata
}

// IngestResult reports what an ingestion stored.
type IngestResult struct {
	ChunksProcessed int
	TotalCharacters int
}

// Ingestor chunks text, embeds it batch by batch and upserts the batches.
type Ingestor struct {
	embedder rag.EmbeddingClient
	store    rag.VectorStore
	opts     options
}

// NewIngestor creates an Ingestor.
func NewIngestor(embedder rag.EmbeddingClient, store rag.VectorStore, opts ...Option) *Ingestor {
	return &Ingestor{embedder: embedder, store: store, opts: buildOptions(opts)}
}

// Ingest stores req.Text as embedded chunks in req.CollectionID.
//
// Input: context, IngestRequest
// Output: number of chunks stored and rune count of req.Text
// Behavior: ensures the collection exists, chunks with the preset for
// req.Metadata.Source, then for each batch makes one EmbedBatch call and one
// Upsert call. Batches run sequentially; the first failure aborts the rest and
// batches already stored stay stored.
//
// Example:
//
//	res, err := ing.Ingest(ctx, pipeline.IngestRequest{
//		CollectionID: "handbook",
//		Text:         text,
//		SourceID:     "txt_handbook.txt",
//		Metadata:     rag.Metadata{Source: rag.SourceTXT, Filename: "handbook.txt"},
//	})
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (res *IngestResult, err error) {
	start := i.opts.now()
	kind := req.Metadata.Source
	labels := map[string]string{"source": string(kind)}

	ctx, span := i.opts.tracer.StartSpan(ctx, "docqa.ingest", observability.WithAttributes(map[string]any{
		"collection": req.CollectionID,
		"source_id":  req.SourceID,
		"source":     string(kind),
	}))
	defer func() {
		span.End(err)
		i.opts.metrics.RecordDuration(ctx, observability.MetricIngestDuration, i.opts.now().Sub(start), labels)
		if err != nil {
			i.opts.metrics.Counter(ctx, observability.MetricIngestErrors, 1, labels)
		}
	}()

	if err := i.store.EnsureCollection(ctx, req.CollectionID); err != nil {
		return nil, rag.Upstream("ensure collection", err)
	}

	chunks := chunk.SplitFor(kind, req.Text)
	span.SetAttribute("chunks", len(chunks))

	log := i.opts.log.With(logger.Attr("collection", req.CollectionID), logger.Attr("source_id", req.SourceID))
	log.Debug(ctx, "chunked source", logger.Attr("chunks", len(chunks)))

	processed := 0
	for offset := 0; offset < len(chunks); offset += i.opts.batchSize {
		end := min(offset+i.opts.batchSize, len(chunks))
		n, err := i.storeBatch(ctx, req, chunks[offset:end], offset)
		if err != nil {
			log.Error(ctx, "batch failed, aborting ingestion",
				logger.Attr("batch_offset", offset),
				logger.Attr("chunks_committed", processed),
				logger.Err(err))
			return nil, err
		}
		processed += n
		i.opts.metrics.Counter(ctx, observability.MetricIngestBatches, 1, labels)
		i.opts.metrics.Counter(ctx, observability.MetricIngestChunks, int64(n), labels)
		span.AddEvent("batch_stored", map[string]any{"offset": offset, "size": n})
	}

	log.Info(ctx, "source ingested", logger.Attr("chunks", processed))

	return &IngestResult{
		ChunksProcessed: processed,
		TotalCharacters: utf8.RuneCountInString(req.Text),
	}, nil
}

func (i *Ingestor) storeBatch(ctx context.Context, req IngestRequest, texts []string, offset int) (int, error) {
	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, rag.Upstream("embed batch", err)
	}
	if len(vectors) != len(texts) {
		return 0, rag.Upstream("embed batch", fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts)))
	}

	now := i.opts.now()
	stamp := now.UnixNano()

	batch := make([]rag.EmbeddedChunk, len(texts))
	for j, text := range texts {
		part := offset + j
		meta := req.Metadata
		meta.Part = part
		meta.Timestamp = now

		batch[j] = rag.EmbeddedChunk{
			Chunk: rag.Chunk{
				Text:      text,
				SourceID:  req.SourceID,
				Part:      part,
				CreatedAt: now,
				Metadata:  meta,
			},
			ID:     rag.ChunkID(req.SourceID, stamp, part),
			Vector: vectors[j],
		}
	}

	if err := i.store.Upsert(ctx, req.CollectionID, batch); err != nil {
		return 0, rag.Upstream("upsert", err)
	}
	return len(batch), nil
}
