package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/store"
)

// RunBatch runs one loop per target model with at most concurrency runs in flight.
// Models whose names map to the same working directory are refused up front.
// Reports are returned in input order. A failing run does not stop the others; their
// errors are joined.
func RunBatch(ctx context.Context, c *Controller, models []core.TargetModel, concurrency int) ([]core.RunReport, error) {
	seen := make(map[string]string, len(models))
	for _, m := range models {
		dir := store.SafeName(m.Name)
		if prev, ok := seen[dir]; ok {
			return nil, fmt.Errorf("target models %q and %q share working directory %q", prev, m.Name, dir)
		}
		seen[dir] = m.Name
	}
	if concurrency < 1 {
		concurrency = 1
	}

	reports := make([]core.RunReport, len(models))
	errs := make([]error, len(models))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, m := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			reports[i], errs[i] = c.Run(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range reports {
		if r.Succeeded() {
			succeeded++
		}
	}
	slog.InfoContext(ctx, "batch finished", "models", len(models), "succeeded", succeeded)
	return reports, errors.Join(errs...)
}
