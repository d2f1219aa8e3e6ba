// Package cache provides byte-level key/value stores with TTL and an
// embedding cache that sits in front of any rag.EmbeddingClient.
package cache

import (
	"sync"
	"time"
)

// Store is a key/value backend with TTL support.
type Store interface {
	// Get retrieves data for a key, returns nil if not found or expired
	Get(key string) ([]byte, error)

	// Set stores data for a key. A ttl of 0 never expires.
	Set(key string, value []byte, ttl time.Duration) error

	Delete(key string) error

	// Clear removes all cached data
	Clear() error

	Exists(key string) bool

	// List returns all non-expired keys
	List() []string

	Close() error
}

// InMemoryStore provides a simple in-memory cache implementation with TTL
type InMemoryStore struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	data      []byte
	timestamp time.Time
	ttl       time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.timestamp) > e.ttl
}

// DefaultCleanupInterval is how often expired entries are purged.
const DefaultCleanupInterval = 5 * time.Minute

// NewInMemoryStore creates a new in-memory cache store and starts its
// background cleanup. Call Close to stop it.
func NewInMemoryStore() *InMemoryStore {
	s := newInMemoryStore(time.Now)
	go s.backgroundCleanup(DefaultCleanupInterval)
	return s
}

func newInMemoryStore(now func() time.Time) *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]*cacheEntry),
		now:  now,
		stop: make(chan struct{}),
	}
}

// Get retrieves data for a key
func (s *InMemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[key]
	if !exists || entry.expired(s.now()) {
		return nil, nil
	}

	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// Set stores data for a key with TTL
func (s *InMemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataCopy := make([]byte, len(value))
	copy(dataCopy, value)

	s.data[key] = &cacheEntry{
		data:      dataCopy,
		timestamp: s.now(),
		ttl:       ttl,
	}
	return nil
}

// Delete removes data for a key
func (s *InMemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Clear removes all cached data
func (s *InMemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*cacheEntry)
	return nil
}

// Exists checks if a key exists and hasn't expired
func (s *InMemoryStore) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[key]
	return exists && !entry.expired(s.now())
}

// List returns all non-expired keys
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	now := s.now()
	for key, entry := range s.data {
		if !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Close stops the background cleanup.
func (s *InMemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *InMemoryStore) backgroundCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *InMemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
		}
	}
}
