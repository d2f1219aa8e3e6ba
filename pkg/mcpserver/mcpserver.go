// Package mcpserver exposes the question answering service as Model Context
// Protocol tools so assistants can ingest content and ask grounded questions.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/rag"
)

// Tool names.
const (
	ToolAsk              = "ask"
	ToolEmbedText        = "embed_text"
	ToolEmbedWebsite     = "embed_website"
	ToolListCollections  = "list_collections"
	ToolCollectionInfo   = "collection_info"
	ToolDeleteCollection = "delete_collection"
)

// MaxResults bounds nResults on the ask tool.
const MaxResults = 10

// Service is the subset of the request surface offered as tools.
type Service interface {
	EmbedText(ctx context.Context, collectionID, text string, metadata map[string]string) (*rag.EmbedResult, error)
	EmbedWebsite(ctx context.Context, collectionID, url string, metadata map[string]string) (*rag.EmbedResult, error)
	Ask(ctx context.Context, collectionID, question string, nResults int) (*rag.AnswerResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, name string) (*rag.CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error
}

// AskParams are the ask tool arguments.
type AskParams struct {
	CollectionID string `json:"collectionId" jsonschema:"the collection to search"`
	Question     string `json:"question" jsonschema:"the question to answer from stored documents"`
	NResults     int    `json:"nResults,omitempty" jsonschema:"number of chunks to retrieve, 1 to 10, default 3"`
}

// EmbedTextParams are the embed_text tool arguments.
type EmbedTextParams struct {
	CollectionID string            `json:"collectionId" jsonschema:"the collection to store the text in"`
	Text         string            `json:"text" jsonschema:"the text to ingest"`
	Metadata     map[string]string `json:"metadata,omitempty" jsonschema:"extra key/value pairs stored with every chunk"`
}

// EmbedWebsiteParams are the embed_website tool arguments.
type EmbedWebsiteParams struct {
	CollectionID string            `json:"collectionId" jsonschema:"the collection to store the page in"`
	URL          string            `json:"url" jsonschema:"absolute http or https URL of the page"`
	Metadata     map[string]string `json:"metadata,omitempty" jsonschema:"extra key/value pairs stored with every chunk"`
}

// CollectionParams name a single collection.
type CollectionParams struct {
	CollectionID string `json:"collectionId" jsonschema:"the collection name"`
}

// ListParams is the empty argument object of list_collections.
type ListParams struct{}

// CollectionsResult lists collection names.
type CollectionsResult struct {
	Collections []string `json:"collections"`
}

// MessageResult carries a human readable confirmation.
type MessageResult struct {
	Message string `json:"message"`
}

// Option configures the server.
type Option func(*config)

type config struct {
	name    string
	version string
	log     *logger.Logger
}

// WithImplementation overrides the advertised server name and version.
func WithImplementation(name, version string) Option {
	return func(c *config) {
		c.name = name
		c.version = version
	}
}

// WithLogger logs every tool call.
func WithLogger(l *logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds an MCP server with the service tools registered.
//
// Example:
//
//	server := mcpserver.New(svc, mcpserver.WithLogger(log))
//	err := server.Run(ctx, &mcp.StdioTransport{})
func New(svc Service, opts ...Option) *mcp.Server {
	cfg := &config{name: "docqa", version: "v0.1.0", log: logger.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{svc: svc, log: cfg.log}
	server := mcp.NewServer(&mcp.Implementation{Name: cfg.name, Version: cfg.version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a question using only the documents stored in a collection",
	}, h.ask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolEmbedText,
		Description: "Chunk, embed and store a piece of text in a collection",
	}, h.embedText)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolEmbedWebsite,
		Description: "Fetch a web page, extract its readable text and store it in a collection",
	}, h.embedWebsite)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolListCollections,
		Description: "List all collections",
	}, h.listCollections)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolCollectionInfo,
		Description: "Show the chunk count and sample chunks of a collection",
	}, h.collectionInfo)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolDeleteCollection,
		Description: "Delete a collection and everything stored in it",
	}, h.deleteCollection)

	return server
}

type handlers struct {
	svc Service
	log *logger.Logger
}

func (h *handlers) called(ctx context.Context, tool string, err error) {
	if err != nil {
		h.log.Warn(ctx, "tool call failed", logger.Attr("tool", tool), logger.Err(err))
		return
	}
	h.log.Debug(ctx, "tool call", logger.Attr("tool", tool))
}

func (h *handlers) ask(ctx context.Context, _ *mcp.CallToolRequest, args AskParams) (_ *mcp.CallToolResult, _ rag.AnswerResult, err error) {
	defer func() { h.called(ctx, ToolAsk, err) }()

	if args.NResults < 0 || args.NResults > MaxResults {
		return nil, rag.AnswerResult{}, fmt.Errorf("nResults must be between 1 and %d", MaxResults)
	}
	res, err := h.svc.Ask(ctx, args.CollectionID, args.Question, args.NResults)
	if err != nil {
		return nil, rag.AnswerResult{}, err
	}
	return text(res.Answer), *res, nil
}

func (h *handlers) embedText(ctx context.Context, _ *mcp.CallToolRequest, args EmbedTextParams) (_ *mcp.CallToolResult, _ rag.EmbedResult, err error) {
	defer func() { h.called(ctx, ToolEmbedText, err) }()

	res, err := h.svc.EmbedText(ctx, args.CollectionID, args.Text, args.Metadata)
	if err != nil {
		return nil, rag.EmbedResult{}, err
	}
	return text(fmt.Sprintf("%d chunks embedded successfully", res.ChunksProcessed)), *res, nil
}

func (h *handlers) embedWebsite(ctx context.Context, _ *mcp.CallToolRequest, args EmbedWebsiteParams) (_ *mcp.CallToolResult, _ rag.EmbedResult, err error) {
	defer func() { h.called(ctx, ToolEmbedWebsite, err) }()

	res, err := h.svc.EmbedWebsite(ctx, args.CollectionID, args.URL, args.Metadata)
	if err != nil {
		return nil, rag.EmbedResult{}, err
	}
	return text(fmt.Sprintf("Website processed: %d chunks embedded", res.ChunksProcessed)), *res, nil
}

func (h *handlers) listCollections(ctx context.Context, _ *mcp.CallToolRequest, _ ListParams) (_ *mcp.CallToolResult, _ CollectionsResult, err error) {
	defer func() { h.called(ctx, ToolListCollections, err) }()

	names, err := h.svc.ListCollections(ctx)
	if err != nil {
		return nil, CollectionsResult{}, err
	}
	if names == nil {
		names = []string{}
	}
	return nil, CollectionsResult{Collections: names}, nil
}

func (h *handlers) collectionInfo(ctx context.Context, _ *mcp.CallToolRequest, args CollectionParams) (_ *mcp.CallToolResult, _ rag.CollectionInfo, err error) {
	defer func() { h.called(ctx, ToolCollectionInfo, err) }()

	info, err := h.svc.CollectionInfo(ctx, args.CollectionID)
	if err != nil {
		return nil, rag.CollectionInfo{}, err
	}
	return nil, *info, nil
}

func (h *handlers) deleteCollection(ctx context.Context, _ *mcp.CallToolRequest, args CollectionParams) (_ *mcp.CallToolResult, _ MessageResult, err error) {
	defer func() { h.called(ctx, ToolDeleteCollection, err) }()

	if err := h.svc.DeleteCollection(ctx, args.CollectionID); err != nil {
		return nil, MessageResult{}, err
	}
	msg := fmt.Sprintf("Collection '%s' deleted", args.CollectionID)
	return text(msg), MessageResult{Message: msg}, nil
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}
