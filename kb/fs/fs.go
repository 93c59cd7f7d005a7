// Package fs stores verified artifacts in a single JSON array file.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/store"
)

// KnowledgeBaseFS is an append-only core.KnowledgeBase backed by a JSON file of
// {model_name, verified_code} entries.
type KnowledgeBaseFS struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewKnowledgeBaseFS creates a knowledge base at path. The file is created on first save.
func NewKnowledgeBaseFS(path string) *KnowledgeBaseFS {
	return &KnowledgeBaseFS{path: path, now: time.Now}
}

var _ core.KnowledgeBase = (*KnowledgeBaseFS)(nil)

// Path returns the backing file.
func (kb *KnowledgeBaseFS) Path() string { return kb.path }

// Save appends an entry and rewrites the file atomically.
func (kb *KnowledgeBaseFS) Save(ctx context.Context, a core.VerifiedArtifact) error {
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("verified artifact has no model name")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	entries, err := kb.load()
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = kb.now().UTC()
	}
	entries = append(entries, a)

	if err := store.WriteJSON(kb.path, entries); err != nil {
		return fmt.Errorf("failed to write knowledge base: %w", err)
	}
	return nil
}

// List returns all entries in insertion order.
func (kb *KnowledgeBaseFS) List(ctx context.Context) ([]core.VerifiedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.load()
}

// Find returns the entries saved for model, oldest first.
func (kb *KnowledgeBaseFS) Find(ctx context.Context, model string) ([]core.VerifiedArtifact, error) {
	all, err := kb.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.VerifiedArtifact
	for _, a := range all {
		if a.Model == model {
			out = append(out, a)
		}
	}
	return out, nil
}

func (kb *KnowledgeBaseFS) load() ([]core.VerifiedArtifact, error) {
	data, err := os.ReadFile(kb.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return []core.VerifiedArtifact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []core.VerifiedArtifact{}, nil
	}

	var entries []core.VerifiedArtifact
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base: %w", err)
	}
	return entries, nil
}
