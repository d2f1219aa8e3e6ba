// Package weaviate implements rag.VectorStore on Weaviate. Each collection maps
// to one class with client-supplied vectors and cosine distance.
package weaviate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/calque-ai/docqa/pkg/rag"
)

// ClassPrefix marks the classes owned by this store.
const ClassPrefix = "Docqa_"

// Object properties.
const (
	propContent  = "content"
	propChunkID  = "chunkId"
	propMetadata = "metadata"
	propSeq      = "seq"
)

// Store is a Weaviate-backed vector store.
type Store struct {
	client *weaviate.Client
	now    func() time.Time
}

// Config holds Weaviate client configuration.
type Config struct {
	URL    string // Weaviate instance URL, e.g. http://localhost:8080
	APIKey string // Optional API key for authentication
}

// New creates a Weaviate store.
//
// Example:
//
//	store, err := weaviate.New(weaviate.Config{URL: "http://localhost:8080"})
func New(config Config) (*Store, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("Weaviate URL is required")
	}
	u, err := url.Parse(config.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL %q", config.URL)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	cfg := weaviate.Config{Host: u.Host, Scheme: scheme}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}
	return &Store{client: client, now: time.Now}, nil
}

// ClassName maps a collection name to a valid, collision-free class name.
// Disallowed characters become underscores and a short hash of the original
// name is appended.
func ClassName(collection string) string {
	var b strings.Builder
	b.WriteString(ClassPrefix)
	for _, r := range collection {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	sum := sha256.Sum256([]byte(collection))
	b.WriteByte('_')
	b.WriteString(hex.EncodeToString(sum[:4]))
	return b.String()
}

// ObjectID derives a deterministic UUID from a chunk id.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String())
}

func (s *Store) exists(ctx context.Context, class string) (bool, error) {
	ok, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check class %s: %w", class, err)
	}
	return ok, nil
}

func (s *Store) requireCollection(ctx context.Context, op, name string) (string, error) {
	class := ClassName(name)
	ok, err := s.exists(ctx, class)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", rag.NotFound(op, name)
	}
	return class, nil
}

// classDefinition keeps the original collection name in the description.
func classDefinition(name string) *models.Class {
	off := false
	return &models.Class{
		Class:       ClassName(name),
		Description: name,
		Vectorizer:  "none",
		VectorIndexConfig: map[string]any{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: propContent, DataType: []string{"text"}},
			{Name: propChunkID, DataType: []string{"text"}, IndexSearchable: &off},
			{Name: propMetadata, DataType: []string{"text"}, IndexSearchable: &off, IndexFilterable: &off},
			{Name: propSeq, DataType: []string{"int"}},
		},
	}
}

// EnsureCollection creates the collection's class if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	class := ClassName(name)
	ok, err := s.exists(ctx, class)
	if err != nil || ok {
		return err
	}
	if err := s.client.Schema().ClassCreator().WithClass(classDefinition(name)).Do(ctx); err != nil {
		// lost a creation race
		if ok, _ := s.exists(ctx, class); ok {
			return nil
		}
		return fmt.Errorf("failed to create class %s: %w", class, err)
	}
	return nil
}

// Upsert writes chunks with one batch request. Objects with the same chunk id
// are replaced.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []rag.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	class, err := s.requireCollection(ctx, "upsert", collection)
	if err != nil {
		return err
	}

	base := s.now().UnixNano()
	objects := make([]*models.Object, 0, len(chunks))
	for i, c := range chunks {
		obj, err := toObject(class, c, base+int64(i))
		if err != nil {
			return err
		}
		objects = append(objects, obj)
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch failed: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate batch failed for %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func toObject(class string, c rag.EmbeddedChunk, seq int64) (*models.Object, error) {
	meta, err := json.Marshal(c.Metadata.Flatten())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata for chunk %s: %w", c.ID, err)
	}
	return &models.Object{
		Class: class,
		ID:    ObjectID(c.ID),
		Properties: map[string]any{
			propContent:  c.Text,
			propChunkID:  c.ID,
			propMetadata: string(meta),
			propSeq:      seq,
		},
		Vector: c.Vector,
	}, nil
}

// Query runs a nearVector search and converts distances to similarities.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]rag.RetrievedChunk, error) {
	class, err := s.requireCollection(ctx, "query", collection)
	if err != nil {
		return nil, err
	}

	gql := s.client.GraphQL()
	resp, err := gql.Get().
		WithClassName(class).
		WithFields(objectFields(graphql.Field{Name: "distance"})...).
		WithNearVector(gql.NearVectorArgBuilder().WithVector(vector)).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	items, err := getItems(resp, "Get", class)
	if err != nil {
		return nil, err
	}

	out := make([]rag.RetrievedChunk, 0, len(items))
	for _, item := range items {
		c, err := toRetrieved(item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func objectFields(additional ...graphql.Field) []graphql.Field {
	return []graphql.Field{
		{Name: propContent},
		{Name: propChunkID},
		{Name: propMetadata},
		{Name: "_additional", Fields: additional},
	}
}

// DeleteCollection drops the collection's class.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	class, err := s.requireCollection(ctx, "delete collection", name)
	if err != nil {
		return err
	}
	if err := s.client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", class, err)
	}
	return nil
}

// ListCollections returns the collection names recorded in class descriptions.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	dump, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if dump == nil {
		return []string{}, nil
	}
	return collectionNames(dump.Classes), nil
}

func collectionNames(classes []*models.Class) []string {
	names := []string{}
	for _, c := range classes {
		if c == nil || !strings.HasPrefix(c.Class, ClassPrefix) {
			continue
		}
		if ClassName(c.Description) == c.Class {
			names = append(names, c.Description)
		}
	}
	sort.Strings(names)
	return names
}

// CollectionInfo returns the object count and the earliest sample objects.
func (s *Store) CollectionInfo(ctx context.Context, name string, sample int) (*rag.CollectionInfo, error) {
	class, err := s.requireCollection(ctx, "collection info", name)
	if err != nil {
		return nil, err
	}

	agg, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate aggregate failed: %w", err)
	}
	count, err := aggregateCount(agg, class)
	if err != nil {
		return nil, err
	}

	info := &rag.CollectionInfo{
		Name:            name,
		DocumentCount:   count,
		SampleDocuments: []string{},
		SampleMetadata:  []map[string]any{},
	}
	if sample <= 0 || count == 0 {
		return info, nil
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(objectFields(graphql.Field{Name: "id"})...).
		WithSort(graphql.Sort{Path: []string{propSeq}, Order: graphql.Asc}).
		WithLimit(sample).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate sample failed: %w", err)
	}
	items, err := getItems(resp, "Get", class)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		c, err := toRetrieved(item)
		if err != nil {
			return nil, err
		}
		info.SampleDocuments = append(info.SampleDocuments, c.Text)
		info.SampleMetadata = append(info.SampleMetadata, c.Metadata)
	}
	return info, nil
}

// Health checks that the Weaviate instance is ready.
func (s *Store) Health(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate health check failed: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// Close is a no-op; the client holds no persistent connections.
func (s *Store) Close() error {
	return nil
}

func graphQLError(resp *models.GraphQLResponse) error {
	if resp == nil || len(resp.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return fmt.Errorf("weaviate graphql error: %s", strings.Join(msgs, "; "))
}

func getItems(resp *models.GraphQLResponse, op, class string) ([]map[string]any, error) {
	if err := graphQLError(resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	section, _ := resp.Data[op].(map[string]any)
	raw, _ := section[class].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func aggregateCount(resp *models.GraphQLResponse, class string) (int, error) {
	items, err := getItems(resp, "Aggregate", class)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	meta, _ := items[0]["meta"].(map[string]any)
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func toRetrieved(item map[string]any) (rag.RetrievedChunk, error) {
	c := rag.RetrievedChunk{Metadata: map[string]any{}}
	c.Text, _ = item[propContent].(string)
	c.ID, _ = item[propChunkID].(string)
	if raw, _ := item[propMetadata].(string); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Metadata); err != nil {
			return c, fmt.Errorf("failed to parse metadata of %s: %w", c.ID, err)
		}
	}
	if add, ok := item["_additional"].(map[string]any); ok {
		if d, ok := add["distance"].(float64); ok {
			c.Score = 1 - d
		}
	}
	return c, nil
}
