package common

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelMap applies fn to every input on at most workers goroutines.
// Outputs keep the order of inputs. The first error cancels the remaining work.
func ParallelMap[In, Out any](ctx context.Context, inputs []In, workers int, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	outputs := make([]Out, len(inputs))
	for i, input := range inputs {
		idx := i
		in := input
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			out, err := fn(gctx, in)
			if err != nil {
				return err
			}
			// Each goroutine owns its index
			outputs[idx] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
