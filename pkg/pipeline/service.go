package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/calque-ai/docqa/pkg/extract"
	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/rag"
)

// Minimum extracted rune counts accepted before any embedding work.
const (
	MinFileTextLength    = 10
	MinWebsiteTextLength = 50
)

// InfoSampleSize is the number of stored chunks returned by CollectionInfo.
const InfoSampleSize = 100

// Extractor turns raw inputs into normalized text.
type Extractor interface {
	Text(s string) string
	PDF(path string) (string, error)
	TXT(path string) (string, error)
	Website(ctx context.Context, url string) (string, error)
}

// Service is the request-level surface used by the HTTP API, the MCP server
// and the CLI.
type Service struct {
	extractor Extractor
	ingestor  *Ingestor
	querier   *Querier
	store     rag.VectorStore
	opts      options
}

// NewService wires the ingestion and query pipelines around shared collaborators.
//
// Example:
//
//	svc := pipeline.NewService(extract.New(extract.DefaultConfig()), embedder, store, generator,
//		pipeline.WithLogger(log))
//	res, err := svc.EmbedText(ctx, "handbook", text, nil)
func NewService(extractor Extractor, embedder rag.EmbeddingClient, store rag.VectorStore, generator rag.GenerativeClient, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		extractor: extractor,
		ingestor:  NewIngestor(embedder, store, opts...),
		querier:   NewQuerier(embedder, store, generator, opts...),
		store:     store,
		opts:      o,
	}
}

// EmbedText stores caller-supplied text. totalCharacters counts the text as given.
func (s *Service) EmbedText(ctx context.Context, collectionID, text string, metadata map[string]string) (*rag.EmbedResult, error) {
	if err := requireCollection("embed text", collectionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, rag.Validation("embed text", "text is required")
	}

	res, err := s.ingestor.Ingest(ctx, IngestRequest{
		CollectionID: collectionID,
		Text:         s.extractor.Text(text),
		SourceID:     s.sourceID("text_", ""),
		Metadata:     rag.Metadata{Source: rag.SourceText}.WithExtra(metadata),
	})
	if err != nil {
		return nil, err
	}

	return &rag.EmbedResult{
		ChunksProcessed: res.ChunksProcessed,
		TotalCharacters: utf8.RuneCountInString(text),
	}, nil
}

// EmbedPDF extracts and stores an uploaded PDF. file.Path is removed before
// returning, whatever the outcome.
func (s *Service) EmbedPDF(ctx context.Context, collectionID string, file rag.FileSource, metadata map[string]string) (*rag.EmbedResult, error) {
	defer s.removeTemp(ctx, file.Path)
	return s.embedFile(ctx, collectionID, file, metadata, rag.SourcePDF, s.extractor.PDF, "PDF contains no extractable text")
}

// EmbedTXT extracts and stores an uploaded text file. file.Path is removed
// before returning, whatever the outcome.
func (s *Service) EmbedTXT(ctx context.Context, collectionID string, file rag.FileSource, metadata map[string]string) (*rag.EmbedResult, error) {
	defer s.removeTemp(ctx, file.Path)
	return s.embedFile(ctx, collectionID, file, metadata, rag.SourceTXT, s.extractor.TXT, "file is empty or too short")
}

func (s *Service) embedFile(
	ctx context.Context,
	collectionID string,
	file rag.FileSource,
	metadata map[string]string,
	kind rag.SourceKind,
	read func(string) (string, error),
	tooShort string,
) (*rag.EmbedResult, error) {
	op := "embed " + string(kind)
	if err := requireCollection(op, collectionID); err != nil {
		return nil, err
	}
	if file.Path == "" || file.Filename == "" {
		return nil, rag.Validation(op, "file is required")
	}

	text, err := read(file.Path)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(text) < MinFileTextLength {
		return nil, rag.Validation(op, "%s", tooShort)
	}

	res, err := s.ingestor.Ingest(ctx, IngestRequest{
		CollectionID: collectionID,
		Text:         text,
		SourceID:     string(kind) + "_" + file.Filename,
		Metadata:     rag.Metadata{Source: kind, Filename: file.Filename}.WithExtra(metadata),
	})
	if err != nil {
		return nil, err
	}

	return &rag.EmbedResult{
		ChunksProcessed: res.ChunksProcessed,
		TotalCharacters: res.TotalCharacters,
		Filename:        file.Filename,
	}, nil
}

// EmbedWebsite fetches a page and stores its text.
func (s *Service) EmbedWebsite(ctx context.Context, collectionID, url string, metadata map[string]string) (*rag.EmbedResult, error) {
	if err := requireCollection("embed website", collectionID); err != nil {
		return nil, err
	}
	if !extract.ValidURL(url) {
		return nil, rag.Validation("embed website", "invalid URL format")
	}

	text, err := s.extractor.Website(ctx, url)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(text) < MinWebsiteTextLength {
		return nil, rag.Validation("embed website", "website contains insufficient extractable content")
	}

	res, err := s.ingestor.Ingest(ctx, IngestRequest{
		CollectionID: collectionID,
		Text:         text,
		SourceID:     s.sourceID("web_", ""),
		Metadata:     rag.Metadata{Source: rag.SourceWebsite, URL: url}.WithExtra(metadata),
	})
	if err != nil {
		return nil, err
	}

	return &rag.EmbedResult{
		ChunksProcessed: res.ChunksProcessed,
		TotalCharacters: res.TotalCharacters,
		URL:             url,
	}, nil
}

// Ask answers question from collectionID. nResults 0 selects DefaultResults;
// larger values are clamped to MaxTopK.
func (s *Service) Ask(ctx context.Context, collectionID, question string, nResults int) (*rag.AnswerResult, error) {
	if err := requireCollection("ask", collectionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, rag.Validation("ask", "question is required")
	}
	if nResults < 0 {
		return nil, rag.Validation("ask", "nResults must not be negative")
	}
	if nResults == 0 {
		nResults = DefaultResults
	}
	return s.querier.Query(ctx, collectionID, question, nResults)
}

// ListCollections returns the names of all collections.
func (s *Service) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, rag.Upstream("list collections", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// CollectionInfo returns the chunk count and a sample of stored chunks.
func (s *Service) CollectionInfo(ctx context.Context, name string) (*rag.CollectionInfo, error) {
	if err := requireCollection("collection info", name); err != nil {
		return nil, err
	}
	info, err := s.store.CollectionInfo(ctx, name, InfoSampleSize)
	if err != nil {
		return nil, rag.Upstream("collection info", err)
	}
	return info, nil
}

// DeleteCollection removes a collection and everything stored in it.
func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	if err := requireCollection("delete collection", name); err != nil {
		return err
	}
	if err := s.store.DeleteCollection(ctx, name); err != nil {
		return rag.Upstream("delete collection", err)
	}
	s.opts.log.Info(ctx, "collection deleted", logger.Attr("collection", name))
	return nil
}

// Ping checks that the vector store answers.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.ListCollections(ctx)
	return err
}

func (s *Service) sourceID(prefix, suffix string) string {
	return prefix + strconv.FormatInt(s.opts.now().UnixMilli(), 10) + suffix
}

func (s *Service) removeTemp(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.opts.log.Error(ctx, "failed to delete temporary file", logger.Attr("path", path), logger.Err(err))
	}
}

func requireCollection(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return rag.Validation(op, "collectionId is required")
	}
	return nil
}
