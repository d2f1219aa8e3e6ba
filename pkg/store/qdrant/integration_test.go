//go:build integration

package qdrant

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

const testDimension = 16

func setupQdrantContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:latest",
		ExposedPorts: []string{"6333/tcp", "6334/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("6333/tcp"),
			wait.ForLog("Qdrant gRPC listening"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start Qdrant container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	grpcPort, err := container.MappedPort(ctx, "6334")
	if err != nil {
		t.Fatalf("failed to get mapped gRPC port: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, grpcPort.Port())
}

func embedded(id, text string, part int) rag.EmbeddedChunk {
	return rag.EmbeddedChunk{
		Chunk: rag.Chunk{
			Text:     text,
			Metadata: rag.Metadata{Source: rag.SourceText, Part: part, Timestamp: time.Now()},
		},
		ID:     id,
		Vector: mock.Vector(text, testDimension),
	}
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	store, err := New(Config{URL: setupQdrantContainer(ctx, t), Dimension: testDimension})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	if _, err := store.Query(ctx, "missing", mock.Vector("x", testDimension), 3); !errors.Is(err, rag.ErrNotFound) {
		t.Errorf("Query() on missing collection error = %v, want ErrNotFound", err)
	}

	for range 2 {
		if err := store.EnsureCollection(ctx, "docs"); err != nil {
			t.Fatalf("EnsureCollection() error = %v", err)
		}
	}

	err = store.Upsert(ctx, "docs", []rag.EmbeddedChunk{
		embedded("text_1_chunk_1_0", "widgets are small devices", 0),
		embedded("text_1_chunk_1_1", "gadgets are large machines", 1),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Query(ctx, "docs", mock.Vector("small widgets", testDimension), 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "text_1_chunk_1_0" || got[0].SourceLabel() != "text" {
		t.Errorf("Query() = %+v", got)
	}

	info, err := store.CollectionInfo(ctx, "docs", 100)
	if err != nil {
		t.Fatal(err)
	}
	if info.DocumentCount != 2 || len(info.SampleDocuments) != 2 {
		t.Errorf("CollectionInfo() = %+v", info)
	}

	names, _ := store.ListCollections(ctx)
	if len(names) != 1 || names[0] != "docs" {
		t.Errorf("ListCollections() = %v", names)
	}

	if err := store.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCollection(ctx, "docs"); !errors.Is(err, rag.ErrNotFound) {
		t.Errorf("second DeleteCollection() error = %v, want ErrNotFound", err)
	}
}
