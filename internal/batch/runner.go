// Package batch runs independent operations with a cap on how many are in flight.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"exo-agent/internal/domain/entity"
)

type Op[T any] func(ctx context.Context) (T, error)

// Result is the outcome of ops[Index].
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Run executes every op with at most limit running at once. A failing op never
// stops its siblings; failures are reported in their own slot. The returned
// error is only set for an invalid limit, in which case nothing runs.
func Run[T any](ctx context.Context, limit int, ops []Op[T]) ([]Result[T], error) {
	if limit < 1 {
		return nil, entity.ConfigError("concurrency limit must be at least 1, got %d", limit)
	}

	results := make([]Result[T], len(ops))
	sem := semaphore.NewWeighted(int64(limit))

	var wg sync.WaitGroup
	for i, op := range ops {
		results[i].Index = i

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, op Op[T]) {
			defer wg.Done()
			defer sem.Release(1)

			value, err := op(ctx)
			results[i].Value = value
			results[i].Err = err
		}(i, op)
	}
	wg.Wait()

	return results, nil
}

func Failed[T any](results []Result[T]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Values returns the values of the successful slots in input order.
func Values[T any](results []Result[T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}
