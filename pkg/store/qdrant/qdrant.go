// Package qdrant implements rag.VectorStore on a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/calque-ai/docqa/pkg/rag"
)

// Payload keys reserved by the store. The leading underscore keeps them clear
// of caller metadata.
const (
	PayloadDocument = "_document"
	PayloadChunkID  = "_chunk_id"
)

// DefaultGRPCPort is used when the URL carries no port.
const DefaultGRPCPort = 6334

// Store is a Qdrant-backed rag.VectorStore. One Qdrant collection per rag
// collection; point ids are UUIDv5 of the chunk id, which is kept in the payload.
type Store struct {
	client    *qd.Client
	dimension uint64
}

// Config holds Qdrant client configuration.
type Config struct {
	// Qdrant gRPC endpoint, e.g. "http://localhost:6334". https enables TLS.
	URL string

	// Optional API key for authentication
	APIKey string

	// Vector size used when creating collections.
	Dimension int
}

// New connects to Qdrant.
//
// Example:
//
//	store, err := qdrant.New(qdrant.Config{URL: "http://localhost:6334", Dimension: 768})
func New(config Config) (*Store, error) {
	host, port, useTLS, err := parseURL(config.URL)
	if err != nil {
		return nil, err
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant vector dimension must be positive, got %d", config.Dimension)
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   host,
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &Store{client: client, dimension: uint64(config.Dimension)}, nil
}

func parseURL(raw string) (host string, port int, useTLS bool, err error) {
	if raw == "" {
		return "", 0, false, fmt.Errorf("qdrant URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("invalid Qdrant URL %q", raw)
	}

	port = DefaultGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid Qdrant port %q: %w", p, err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// EnsureCollection creates name with cosine distance if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: name,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     s.dimension,
			Distance: qd.Distance_Cosine,
		}),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes chunks in a single request and waits for it to apply.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []rag.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qd.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qd.PointStruct{
			Id:      qd.NewID(PointID(c.ID)),
			Vectors: qd.NewVectors(c.Vector...),
			Payload: buildPayload(c),
		}
	}

	_, err := s.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return classify("upsert", collection, err)
	}
	return nil
}

// Query returns the k nearest chunks.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]rag.RetrievedChunk, error) {
	points, err := s.client.Query(ctx, &qd.QueryPoints{
		CollectionName: collection,
		Query:          qd.NewQuery(vector...),
		Limit:          qd.PtrOf(uint64(k)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify("query", collection, err)
	}

	out := make([]rag.RetrievedChunk, len(points))
	for i, p := range points {
		out[i] = toRetrieved(p.GetId(), p.GetPayload(), float64(p.GetScore()))
	}
	return out, nil
}

// DeleteCollection drops collection.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !exists {
		return rag.NotFound("delete collection", name)
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return classify("delete collection", name, err)
	}
	return nil
}

// ListCollections returns all collection names.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// CollectionInfo returns the exact point count and up to sample points.
func (s *Store) CollectionInfo(ctx context.Context, name string, sample int) (*rag.CollectionInfo, error) {
	count, err := s.client.Count(ctx, &qd.CountPoints{
		CollectionName: name,
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return nil, classify("collection info", name, err)
	}

	info := &rag.CollectionInfo{
		Name:            name,
		DocumentCount:   int(count),
		SampleDocuments: []string{},
		SampleMetadata:  []map[string]any{},
	}
	if sample <= 0 || count == 0 {
		return info, nil
	}

	points, err := s.client.Scroll(ctx, &qd.ScrollPoints{
		CollectionName: name,
		Limit:          qd.PtrOf(uint32(sample)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify("collection info", name, err)
	}
	for _, p := range points {
		r := toRetrieved(p.GetId(), p.GetPayload(), 0)
		info.SampleDocuments = append(info.SampleDocuments, r.Text)
		info.SampleMetadata = append(info.SampleMetadata, r.Metadata)
	}
	return info, nil
}

// Health checks if the Qdrant server is available and responsive.
func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check error %w", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close qdrant error %w", err)
	}
	return nil
}

// PointID maps a chunk id to the UUID Qdrant requires.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func buildPayload(c rag.EmbeddedChunk) map[string]*qd.Value {
	meta := c.Metadata.Flatten()
	payload := make(map[string]*qd.Value, len(meta)+2)
	for key, value := range meta {
		payload[key] = toValue(value)
	}
	payload[PayloadDocument] = qd.NewValueString(c.Text)
	payload[PayloadChunkID] = qd.NewValueString(c.ID)
	return payload
}

func toValue(v any) *qd.Value {
	switch v := v.(type) {
	case string:
		return qd.NewValueString(v)
	case int:
		return qd.NewValueInt(int64(v))
	case int64:
		return qd.NewValueInt(v)
	case float64:
		return qd.NewValueDouble(v)
	case bool:
		return qd.NewValueBool(v)
	default:
		return qd.NewValueString(fmt.Sprintf("%v", v))
	}
}

func fromValue(v *qd.Value) (any, bool) {
	switch k := v.GetKind().(type) {
	case *qd.Value_StringValue:
		return k.StringValue, true
	case *qd.Value_IntegerValue:
		return k.IntegerValue, true
	case *qd.Value_DoubleValue:
		return k.DoubleValue, true
	case *qd.Value_BoolValue:
		return k.BoolValue, true
	default:
		return nil, false
	}
}

func toRetrieved(id *qd.PointId, payload map[string]*qd.Value, score float64) rag.RetrievedChunk {
	r := rag.RetrievedChunk{
		ID:       id.GetUuid(),
		Metadata: make(map[string]any, len(payload)),
		Score:    score,
	}
	for key, value := range payload {
		switch key {
		case PayloadDocument:
			r.Text = value.GetStringValue()
		case PayloadChunkID:
			r.ID = value.GetStringValue()
		default:
			if v, ok := fromValue(value); ok {
				r.Metadata[key] = v
			}
		}
	}
	return r
}

// classify maps a missing collection to rag.ErrNotFound.
func classify(op, collection string, err error) error {
	if status.Code(err) == codes.NotFound || strings.Contains(strings.ToLower(err.Error()), "doesn't exist") {
		return rag.NotFound(op, collection)
	}
	return fmt.Errorf("qdrant %s %s: %w", op, collection, err)
}
