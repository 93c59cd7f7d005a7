// Package vectordb holds example vectors and answers nearest-neighbour queries.
package vectordb

import (
	"context"
)

// Hit represents a search result from vector store
type Hit struct {
	ID    string            `json:"id"`
	Score float64           `json:"score"`
	Meta  map[string]string `json:"meta"`
}

// VectorStore defines the interface for vector storage and retrieval
type VectorStore interface {
	// Upsert stores or updates a vector with metadata
	Upsert(ctx context.Context, id string, vec []float32, meta map[string]string) error

	// Search returns the topK most similar vectors, best first. Equal scores keep
	// insertion order.
	Search(ctx context.Context, vec []float32, topK int) ([]Hit, error)

	// Count returns the total number of vectors
	Count(ctx context.Context) (int, error)

	// Clear removes all vectors
	Clear(ctx context.Context) error
}

// VectorStoreConfig holds configuration for vector stores
type VectorStoreConfig struct {
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
}

// DefaultConfig returns default vector store configuration
func DefaultConfig() *VectorStoreConfig {
	return &VectorStoreConfig{
		Collection: "examples",
		Dimension:  1536,
	}
}
