// Package memory is an in-process core.KnowledgeBase.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/snow-ghost/patrefine/core"
)

// Registry holds verified artifacts in memory, in insertion order.
type Registry struct {
	mu      sync.RWMutex
	entries []core.VerifiedArtifact
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

var _ core.KnowledgeBase = (*Registry)(nil)

func (r *Registry) Save(ctx context.Context, a core.VerifiedArtifact) error {
	if a.Model == "" {
		return fmt.Errorf("verified artifact has no model name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, a)
	return nil
}

func (r *Registry) List(ctx context.Context) ([]core.VerifiedArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.VerifiedArtifact, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

// Len returns the number of saved entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
