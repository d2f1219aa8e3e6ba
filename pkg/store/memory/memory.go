// Package memory is an in-process rag.VectorStore using brute-force cosine
// similarity. It backs tests and the VECTOR_STORE=memory development mode.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/calque-ai/docqa/pkg/rag"
)

type record struct {
	text     string
	vector   []float32
	metadata map[string]any
}

type collection struct {
	dimension int
	records   *orderedmap.OrderedMap[string, record]
}

// Store keeps collections in memory. Records are listed in insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// EnsureCollection creates name if it does not exist.
func (s *Store) EnsureCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{records: orderedmap.New[string, record]()}
	}
	return nil
}

// Upsert stores chunks, replacing records with the same ID. The first vector
// stored fixes the collection's dimension.
func (s *Store) Upsert(_ context.Context, name string, chunks []rag.EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return rag.NotFound("upsert", name)
	}

	for _, ch := range chunks {
		if c.dimension == 0 {
			c.dimension = len(ch.Vector)
		}
		if len(ch.Vector) != c.dimension {
			return fmt.Errorf("memory: vector dimension %d does not match collection dimension %d", len(ch.Vector), c.dimension)
		}
	}
	for _, ch := range chunks {
		c.records.Set(ch.ID, record{
			text:     ch.Text,
			vector:   slices.Clone(ch.Vector),
			metadata: ch.Metadata.Flatten(),
		})
	}
	return nil
}

// Query returns up to k records ordered by decreasing cosine similarity.
func (s *Store) Query(_ context.Context, name string, vector []float32, k int) ([]rag.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, rag.NotFound("query", name)
	}

	results := make([]rag.RetrievedChunk, 0, c.records.Len())
	for pair := c.records.Oldest(); pair != nil; pair = pair.Next() {
		results = append(results, rag.RetrievedChunk{
			ID:       pair.Key,
			Text:     pair.Value.text,
			Metadata: maps.Clone(pair.Value.metadata),
			Score:    CosineSimilarity(vector, pair.Value.vector),
		})
	}

	slices.SortStableFunc(results, func(a, b rag.RetrievedChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteCollection removes name.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return rag.NotFound("delete collection", name)
	}
	delete(s.collections, name)
	return nil
}

// ListCollections returns collection names in sorted order.
func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.collections)), nil
}

// CollectionInfo returns the record count and the first sample records.
func (s *Store) CollectionInfo(_ context.Context, name string, sample int) (*rag.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, rag.NotFound("collection info", name)
	}

	info := &rag.CollectionInfo{
		Name:            name,
		DocumentCount:   c.records.Len(),
		SampleDocuments: []string{},
		SampleMetadata:  []map[string]any{},
	}
	for pair := c.records.Oldest(); pair != nil && len(info.SampleDocuments) < sample; pair = pair.Next() {
		info.SampleDocuments = append(info.SampleDocuments, pair.Value.text)
		info.SampleMetadata = append(info.SampleMetadata, maps.Clone(pair.Value.metadata))
	}
	return info, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
