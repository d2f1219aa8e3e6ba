// Package rag defines the shared vocabulary of the document question answering
// service: chunks, stored metadata, retrieval results and the contracts for the
// external collaborators (embedding model, vector store, generative model).
//
// Everything else in the module depends on this package; it depends on nothing
// but the standard library so adapters can be swapped freely.
package rag

import (
	"context"
	"maps"
	"strconv"
	"time"
)

// SourceKind identifies where a chunk came from.
type SourceKind string

// Supported source kinds.
const (
	SourceText    SourceKind = "text"
	SourcePDF     SourceKind = "pdf"
	SourceTXT     SourceKind = "txt"
	SourceWebsite SourceKind = "website"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceText, SourcePDF, SourceTXT, SourceWebsite:
		return true
	}
	return false
}

// Reserved metadata keys. They are always written by the ingestion pipeline and
// cannot be overridden by caller supplied metadata.
const (
	KeySource    = "source"
	KeyPart      = "part"
	KeyTimestamp = "timestamp"
	KeyFilename  = "filename"
	KeyURL       = "url"
)

// UnknownSource is the label used for retrieved chunks without a source field.
const UnknownSource = "unknown"

// Metadata is the key/value record stored with every chunk.
//
// Source, Part and Timestamp are reserved. Filename and URL are defaults set by
// the request surface for file and website ingestion. Extra carries any
// caller-supplied pairs.
type Metadata struct {
	Source    SourceKind
	Part      int
	Timestamp time.Time
	Filename  string
	URL       string
	Extra     map[string]string
}

// Flatten produces the map persisted in the vector store.
//
// Caller extras are written first so that filename, url, source, part and
// timestamp always reflect what the service recorded.
func (m Metadata) Flatten() map[string]any {
	out := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Filename != "" {
		out[KeyFilename] = m.Filename
	}
	if m.URL != "" {
		out[KeyURL] = m.URL
	}
	out[KeySource] = string(m.Source)
	out[KeyPart] = m.Part
	out[KeyTimestamp] = FormatTimestamp(m.Timestamp)
	return out
}

// WithExtra returns a copy of m with extra merged into Extra.
func (m Metadata) WithExtra(extra map[string]string) Metadata {
	merged := make(map[string]string, len(m.Extra)+len(extra))
	maps.Copy(merged, m.Extra)
	maps.Copy(merged, extra)
	m.Extra = merged
	return m
}

// FormatTimestamp renders t as an ISO-8601 UTC string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Chunk is one bounded-length passage produced by the chunker.
type Chunk struct {
	Text      string
	SourceID  string
	Part      int
	CreatedAt time.Time
	Metadata  Metadata
}

// EmbeddedChunk is a chunk paired with its vector and store identifier.
type EmbeddedChunk struct {
	Chunk
	ID     string
	Vector []float32
}

// ChunkID builds the store identifier of a chunk:
// <sourceID>_chunk_<timestamp>_<absoluteOffset>.
func ChunkID(sourceID string, timestamp int64, offset int) string {
	return sourceID + "_chunk_" + strconv.FormatInt(timestamp, 10) + "_" + strconv.Itoa(offset)
}

// RetrievedChunk is a stored chunk returned by a similarity query.
type RetrievedChunk struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

// SourceLabel returns the chunk's source field, or UnknownSource when missing.
func (c RetrievedChunk) SourceLabel() string {
	if v, ok := c.Metadata[KeySource]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return UnknownSource
}

// AnswerResult is the outcome of a question.
type AnswerResult struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	ChunksUsed int      `json:"chunksUsed"`
}

// EmbedResult is the outcome of an ingestion request.
type EmbedResult struct {
	ChunksProcessed int    `json:"chunksProcessed"`
	TotalCharacters int    `json:"totalCharacters"`
	Filename        string `json:"filename,omitempty"`
	URL             string `json:"url,omitempty"`
}

// CollectionInfo summarises a stored collection.
type CollectionInfo struct {
	Name            string           `json:"name"`
	DocumentCount   int              `json:"documentCount"`
	SampleDocuments []string         `json:"sampleDocuments"`
	SampleMetadata  []map[string]any `json:"sampleMetadata"`
}

// FileSource is a temporary file handed to the request surface. The service
// removes Path once processing finishes, whatever the outcome.
type FileSource struct {
	Path     string
	Filename string
}

// GenerateRequest is a single-turn generation call.
type GenerateRequest struct {
	System string
	Prompt string
}

// EmbeddingClient converts text to fixed-dimension vectors.
//
// EmbedBatch must return exactly one vector per input, in input order.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerativeClient produces text from a system instruction and prompt.
type GenerativeClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// VectorStore persists embedded chunks grouped into named collections.
//
// Query returns at most k chunks ordered by decreasing similarity and fails with
// an error matching ErrNotFound when the collection does not exist.
// EnsureCollection is idempotent.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, chunks []EmbeddedChunk) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]RetrievedChunk, error)
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, name string, sample int) (*CollectionInfo, error)
	Close() error
}
