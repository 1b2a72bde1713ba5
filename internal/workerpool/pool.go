// Package workerpool provides a small parallel-for helper. It generalizes
// the teacher's per-frame goroutine + sync.WaitGroup + buffered error
// channel pattern (see SplitAllFramesAuto/SplitAllFrames) from one goroutine
// per video frame to one goroutine per stripe of arbitrary work, sized to
// the number of hardware threads by default.
package workerpool

import (
	"context"
	"runtime"
	"sync"
)

// Pool drives parallel-for loops. Its lifecycle is owned by whoever
// constructs it (a pipeline factory); it is never a package-level global.
type Pool struct {
	Workers int
}

// New returns a Pool sized to GOMAXPROCS, or size if size > 0.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{Workers: size}
}

// ParallelFor calls fn(i) for every i in [0, n), striping the range across
// p.Workers goroutines. It blocks until every call returns.
func (p *Pool) ParallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := p.Workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ParallelForErr is ParallelFor for functions that can fail; after every
// goroutine has finished it returns the first error that reached the
// buffered error channel, which is not necessarily the lowest failing index
// (errors are collected on a buffered channel the way the teacher's
// SplitAllFrames collects per-frame errors).
func (p *Pool) ParallelForErr(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	errs := make(chan error, n)
	p.ParallelFor(n, func(i int) {
		if err := fn(i); err != nil {
			errs <- err
		}
	})
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

// Cancelled reports whether ctx has been cancelled, for the cooperative
// cancellation points the spec requires between stages and within long
// inner loops.
func Cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
