package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestTFIDFEmbedder_Similarity(t *testing.T) {
	ctx := context.Background()
	e := NewTFIDFEmbedder(&EmbeddingConfig{Dimension: 256})
	corpus := []string{
		"dining philosophers share forks around a table",
		"readers and writers access a shared database",
		"a lift moves between floors and opens its door",
	}
	e.Fit(corpus)

	vectors := make([][]float32, len(corpus))
	for i, doc := range corpus {
		v, err := e.EmbedText(ctx, doc)
		require.NoError(t, err)
		vectors[i] = v
	}

	q, err := e.EmbedText(ctx, "five philosophers and five forks")
	require.NoError(t, err)
	assert.Greater(t, dot(q, vectors[0]), dot(q, vectors[1]))
	assert.Greater(t, dot(q, vectors[0]), dot(q, vectors[2]))

	assert.InDelta(t, 1.0, math.Sqrt(dot(vectors[0], vectors[0])), 1e-5)
}

func TestTFIDFEmbedder_UnknownTermsIgnored(t *testing.T) {
	e := NewTFIDFEmbedder(&EmbeddingConfig{Dimension: 16})
	e.Fit([]string{"alpha beta"})

	v, err := e.EmbedText(context.Background(), "gamma delta")
	require.NoError(t, err)
	assert.Len(t, v, 16)
	assert.Zero(t, dot(v, v))
	assert.Equal(t, 2, e.VocabularySize())
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "lift_door", "opens", "42"}, tokenize("The lift_door opens, a 42!"))
}

func TestTFIDFEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTFIDFEmbedder(nil).EmbedText(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
