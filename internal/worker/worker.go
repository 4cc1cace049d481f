// Package worker runs independent per-file jobs with bounded concurrency.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Semaphore provides a counting semaphore for controlling concurrency.
// It is used to limit the number of ffmpeg processes in flight.
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a new semaphore with the given number of permits.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		count = 1
	}
	s := &Semaphore{
		permits: make(chan struct{}, count),
	}
	// Pre-fill the permits
	for i := 0; i < count; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire takes a permit, or fails when ctx is done first.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Semaphore is full, this shouldn't happen in normal use
	}
}

// Result is the outcome of one job.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// DefaultWorkers returns the pool size used when none is configured.
func DefaultWorkers() int {
	return max(1, min(4, runtime.NumCPU()/2))
}

// Run calls fn for every item with at most workers calls in flight and
// returns the results in input order. Items not started before ctx is done
// report ctx.Err().
func Run[In, Out any](ctx context.Context, workers int, items []In, fn func(context.Context, In) (Out, error)) []Result[Out] {
	results := make([]Result[Out], len(items))
	sem := NewSemaphore(workers)

	var wg sync.WaitGroup
	for i, item := range items {
		results[i].Index = i
		if err := sem.Acquire(ctx); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, item In) {
			defer wg.Done()
			defer sem.Release()
			results[i].Value, results[i].Err = fn(ctx, item)
		}(i, item)
	}

	wg.Wait()
	return results
}
