//go:build integration

package weaviate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/calque-ai/docqa/pkg/ai/mock"
	"github.com/calque-ai/docqa/pkg/rag"
)

func setupWeaviateContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:latest",
		ExposedPorts: []string{"8080/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
			"DEFAULT_VECTORIZER_MODULE":               "none",
			"ENABLE_MODULES":                          "",
			"CLUSTER_HOSTNAME":                        "node1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8080/tcp"),
			wait.ForHTTP("/v1/.well-known/ready").WithPort("8080/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start Weaviate container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "8080")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	store, err := New(Config{URL: setupWeaviateContainer(ctx, t)})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Health(ctx); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	if _, err := store.Query(ctx, "my-docs", mock.Vector("x", 16), 3); !errors.Is(err, rag.ErrNotFound) {
		t.Errorf("Query() on missing collection error = %v, want ErrNotFound", err)
	}

	for range 2 {
		if err := store.EnsureCollection(ctx, "my-docs"); err != nil {
			t.Fatalf("EnsureCollection() error = %v", err)
		}
	}

	texts := []string{"widgets are small devices", "gadgets are large machines", "doohickeys are medium tools"}
	chunks := make([]rag.EmbeddedChunk, len(texts))
	for i, text := range texts {
		chunks[i] = rag.EmbeddedChunk{
			Chunk:  rag.Chunk{Text: text, Metadata: rag.Metadata{Source: rag.SourceText, Part: i, Timestamp: time.Now()}},
			ID:     rag.ChunkID("text_1", 1, i*450),
			Vector: mock.Vector(text, 16),
		}
	}
	if err := store.Upsert(ctx, "my-docs", chunks); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Query(ctx, "my-docs", mock.Vector("small widgets", 16), 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != chunks[0].ID || got[0].SourceLabel() != "text" {
		t.Errorf("Query() = %+v", got)
	}

	info, err := store.CollectionInfo(ctx, "my-docs", 2)
	if err != nil {
		t.Fatal(err)
	}
	if info.DocumentCount != 3 || len(info.SampleDocuments) != 2 || info.SampleDocuments[0] != texts[0] {
		t.Errorf("CollectionInfo() = %+v", info)
	}

	names, err := store.ListCollections(ctx)
	if err != nil || len(names) != 1 || names[0] != "my-docs" {
		t.Errorf("ListCollections() = %v, %v", names, err)
	}

	if err := store.DeleteCollection(ctx, "my-docs"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCollection(ctx, "my-docs"); !errors.Is(err, rag.ErrNotFound) {
		t.Errorf("second DeleteCollection() error = %v, want ErrNotFound", err)
	}
}
