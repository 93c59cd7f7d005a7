// Package retrieval picks the worked example most similar to a model annotation.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/embeddings"
	"github.com/snow-ghost/patrefine/vectordb"
)

// DefaultCacheSize bounds the number of cached query embeddings.
const DefaultCacheSize = 256

// LoadExamples reads a JSON array of {nl, code} pairs. A missing file yields no examples.
func LoadExamples(path string) ([]core.Example, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read examples: %w", err)
	}
	var examples []core.Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("failed to decode examples: %w", err)
	}
	return examples, nil
}

// Index implements core.ExampleRetriever over an embedder and a vector store.
type Index struct {
	embedder embeddings.Embedder
	store    vectordb.VectorStore
	cache    *lru.Cache[string, []float32]
	group    singleflight.Group

	mu       sync.RWMutex
	examples []core.Example
}

// NewIndex creates an empty index.
func NewIndex(embedder embeddings.Embedder, store vectordb.VectorStore, cacheSize int) (*Index, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Index{embedder: embedder, store: store, cache: cache}, nil
}

var _ core.ExampleRetriever = (*Index)(nil)

// Build replaces the indexed examples. Examples with an empty annotation are skipped.
func (x *Index) Build(ctx context.Context, examples []core.Example) error {
	kept := make([]core.Example, 0, len(examples))
	for _, e := range examples {
		if strings.TrimSpace(e.NL) != "" {
			kept = append(kept, e)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if f, ok := x.embedder.(embeddings.Fitter); ok {
		nls := make([]string, len(kept))
		for i, e := range kept {
			nls[i] = e.NL
		}
		f.Fit(nls)
	}
	x.cache.Purge()

	vectors := make([][]float32, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, e := range kept {
		g.Go(func() error {
			v, err := x.embedder.EmbedText(gctx, e.NL)
			if err != nil {
				return fmt.Errorf("failed to embed example %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := x.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear vector store: %w", err)
	}
	for i, v := range vectors {
		if err := x.store.Upsert(ctx, strconv.Itoa(i), v, nil); err != nil {
			return fmt.Errorf("failed to store example %d: %w", i, err)
		}
	}
	x.examples = kept

	slog.InfoContext(ctx, "example index built", "examples", len(kept))
	return nil
}

// Add indexes one more example, rebuilding the index.
func (x *Index) Add(ctx context.Context, e core.Example) error {
	x.mu.RLock()
	all := append(append([]core.Example(nil), x.examples...), e)
	x.mu.RUnlock()
	return x.Build(ctx, all)
}

// Len returns the number of indexed examples.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.examples)
}

// MostRelevant returns the example with the highest similarity to annotation. Ties go
// to the earliest example. An empty annotation or index yields an empty example.
func (x *Index) MostRelevant(ctx context.Context, annotation string) (core.Example, error) {
	if strings.TrimSpace(annotation) == "" {
		return core.Example{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.examples) == 0 {
		return core.Example{}, nil
	}

	vec, err := x.embed(ctx, annotation)
	if err != nil {
		return core.Example{}, err
	}
	hits, err := x.store.Search(ctx, vec, 1)
	if err != nil {
		return core.Example{}, fmt.Errorf("failed to search examples: %w", err)
	}
	if len(hits) == 0 {
		return core.Example{}, nil
	}

	i, err := strconv.Atoi(hits[0].ID)
	if err != nil || i < 0 || i >= len(x.examples) {
		return core.Example{}, fmt.Errorf("vector store returned unknown example %q", hits[0].ID)
	}
	return x.examples[i], nil
}

// embed returns a cached embedding, computing it at most once across concurrent callers.
func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := x.cache.Get(text); ok {
		return v, nil
	}
	v, err, _ := x.group.Do(text, func() (any, error) {
		vec, err := x.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		x.cache.Add(text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed annotation: %w", err)
	}
	return v.([]float32), nil
}
