// Package worker fans independent jobs out over a bounded number of
// goroutines.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map runs fn on every input with at most workers jobs in flight and
// returns the outputs in input order. The first error cancels the context
// handed to the remaining jobs and is returned.
func Map[In, Out any](ctx context.Context, inputs []In, workers int, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Out, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := fn(ctx, in)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
