package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/calque-ai/docqa/pkg/ai/mock"
	"github.com/calque-ai/docqa/pkg/extract"
	"github.com/calque-ai/docqa/pkg/pipeline"
	"github.com/calque-ai/docqa/pkg/store/memory"
)

// connect starts the server on in-memory transports and returns a client session.
func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	client := mock.New()
	svc := pipeline.NewService(extract.New(extract.DefaultConfig()), client, memory.New(), client)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := New(svc).Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	session, err := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil).
		Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	return res
}

func firstText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestListTools(t *testing.T) {
	t.Parallel()
	session := connect(t)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{ToolAsk, ToolEmbedText, ToolEmbedWebsite, ToolListCollections, ToolCollectionInfo, ToolDeleteCollection} {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestIngestAndAsk(t *testing.T) {
	t.Parallel()
	session := connect(t)

	res := call(t, session, ToolEmbedText, map[string]any{
		"collectionId": "notes",
		"text":         strings.Repeat("widgets are small devices. ", 40),
	})
	if res.IsError {
		t.Fatalf("embed_text failed: %s", firstText(t, res))
	}
	if !strings.HasSuffix(firstText(t, res), "chunks embedded successfully") {
		t.Errorf("embed_text text = %q", firstText(t, res))
	}

	res = call(t, session, ToolAsk, map[string]any{"collectionId": "notes", "question": "what are widgets?"})
	if res.IsError {
		t.Fatalf("ask failed: %s", firstText(t, res))
	}
	if firstText(t, res) != mock.DefaultAnswer {
		t.Errorf("ask text = %q", firstText(t, res))
	}

	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatal(err)
	}
	var answer struct {
		Sources    []string `json:"sources"`
		ChunksUsed int      `json:"chunksUsed"`
	}
	if err := json.Unmarshal(raw, &answer); err != nil {
		t.Fatal(err)
	}
	if answer.ChunksUsed == 0 || len(answer.Sources) != 1 || answer.Sources[0] != "text" {
		t.Errorf("structured answer = %s", raw)
	}
}

func TestCollectionTools(t *testing.T) {
	t.Parallel()
	session := connect(t)

	call(t, session, ToolEmbedText, map[string]any{"collectionId": "a", "text": strings.Repeat("x", 100)})

	res := call(t, session, ToolListCollections, map[string]any{})
	if res.IsError || !strings.Contains(firstText(t, res), `"a"`) {
		t.Errorf("list_collections = %+v", res.Content)
	}

	res = call(t, session, ToolCollectionInfo, map[string]any{"collectionId": "a"})
	if res.IsError || !strings.Contains(firstText(t, res), `"documentCount":1`) {
		t.Errorf("collection_info = %s", firstText(t, res))
	}

	res = call(t, session, ToolDeleteCollection, map[string]any{"collectionId": "a"})
	if res.IsError || firstText(t, res) != "Collection 'a' deleted" {
		t.Errorf("delete_collection = %s", firstText(t, res))
	}
}

func TestToolErrors(t *testing.T) {
	t.Parallel()
	session := connect(t)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		message string
	}{
		{"unknown collection", ToolAsk, map[string]any{"collectionId": "ghost", "question": "q"}, "not found"},
		{"nResults out of range", ToolAsk, map[string]any{"collectionId": "c", "question": "q", "nResults": 50}, "nResults must be between"},
		{"empty text", ToolEmbedText, map[string]any{"collectionId": "c", "text": " "}, "text is required"},
		{"invalid url", ToolEmbedWebsite, map[string]any{"collectionId": "c", "url": "nope"}, "invalid URL format"},
		{"delete unknown", ToolDeleteCollection, map[string]any{"collectionId": "ghost"}, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, session, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("%s succeeded, want tool error", tt.tool)
			}
			if msg := firstText(t, res); !strings.Contains(msg, tt.message) {
				t.Errorf("error text = %q, want containing %q", msg, tt.message)
			}
		})
	}
}
