package fs

import (
	"context"
	"fmt"

	"github.com/snow-ghost/patrefine/core"
)

// Migrate copies every entry of src into dst in order and returns how many were copied.
func Migrate(ctx context.Context, src, dst core.KnowledgeBase) (int, error) {
	entries, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list source: %w", err)
	}
	for i, e := range entries {
		if err := dst.Save(ctx, e); err != nil {
			return i, fmt.Errorf("failed to save entry %d (%s): %w", i, e.Model, err)
		}
	}
	return len(entries), nil
}
