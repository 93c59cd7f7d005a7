package vectordb

import (
	"context"
	"fmt"
	"math"
	"maps"
	"sort"
	"sync"
)

type entry struct {
	vec  []float32
	meta map[string]string
}

// MemoryVectorStore implements an in-memory vector store using cosine similarity
type MemoryVectorStore struct {
	config  *VectorStoreConfig
	order   []string
	entries map[string]entry
	mu      sync.RWMutex
}

// NewMemoryVectorStore creates a new in-memory vector store
func NewMemoryVectorStore(config *VectorStoreConfig) *MemoryVectorStore {
	if config == nil {
		config = DefaultConfig()
	}
	return &MemoryVectorStore{
		config:  config,
		entries: make(map[string]entry),
	}
}

var _ VectorStore = (*MemoryVectorStore)(nil)

// Upsert stores a normalized copy of vec. Updating an id keeps its original position.
func (m *MemoryVectorStore) Upsert(ctx context.Context, id string, vec []float32, meta map[string]string) error {
	if len(vec) != m.config.Dimension {
		return fmt.Errorf("vector dimension %d does not match expected %d", len(vec), m.config.Dimension)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalize(normalized)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[id]; !exists {
		m.order = append(m.order, id)
	}
	m.entries[id] = entry{vec: normalized, meta: maps.Clone(meta)}
	return nil
}

// Search finds the most similar vectors using cosine similarity
func (m *MemoryVectorStore) Search(ctx context.Context, vec []float32, topK int) ([]Hit, error) {
	if len(vec) != m.config.Dimension {
		return nil, fmt.Errorf("vector dimension %d does not match expected %d", len(vec), m.config.Dimension)
	}

	query := make([]float32, len(vec))
	copy(query, vec)
	normalize(query)

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		hits = append(hits, Hit{ID: id, Score: dot(query, e.vec), Meta: maps.Clone(e.meta)})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the total number of vectors
func (m *MemoryVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

// Clear removes all vectors
func (m *MemoryVectorStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.entries = make(map[string]entry)
	return nil
}

// dot is the cosine similarity of two unit vectors.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
}
