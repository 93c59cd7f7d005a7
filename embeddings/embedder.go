// Package embeddings turns natural-language annotations into vectors for example retrieval.
package embeddings

import (
	"context"
)

// Embedder defines the interface for text embedding generation
type Embedder interface {
	// EmbedText converts text to a vector representation
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Fitter is implemented by embedders whose vectors depend on a document corpus.
type Fitter interface {
	Fit(texts []string)
}

// EmbeddingConfig holds configuration for embedders
type EmbeddingConfig struct {
	Model     string `json:"model" yaml:"model"`
	Dimension int    `json:"dimension" yaml:"dimension"`
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens"`
}

// DefaultConfig returns default embedding configuration
func DefaultConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		Model:     "text-embedding-3-small",
		Dimension: 1536,
		MaxTokens: 8192,
	}
}

// LocalConfig returns the configuration of the in-process TF-IDF embedder.
func LocalConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		Model:     "tfidf",
		Dimension: 4096,
		MaxTokens: 0,
	}
}
