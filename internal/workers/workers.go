package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// OverrideEnv names the environment variable that fixes the worker count.
const OverrideEnv = "EMBED_WORKERS"

// Count returns the number of workers for a task type: GOMAXPROCS (which
// follows container CPU limits) times multiplier, at least 1 and at most
// limit when limit > 0. A positive EMBED_WORKERS value replaces the
// computed count, still subject to limit.
func Count(multiplier float64, limit int) int {
	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if override := os.Getenv(OverrideEnv); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			workers = n
		}
	}

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Each calls fn for every item using at most n concurrent workers and
// returns the per-item errors in input order. Items not yet started when
// ctx is canceled get ctx.Err().
func Each[T any](ctx context.Context, n int, items []T, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if n < 1 {
		n = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(n, len(items)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				errs[i] = fn(ctx, items[i])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return errs
}
