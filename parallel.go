package nghs

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scheduler is the fork/join runtime contract every batch operation and the
// tree rebuild use to fan work out across goroutines. It stands in for the
// spec's external "parallel-primitives runtime" collaborator.
type Scheduler interface {
	// ParallelFor invokes body(i) for every i in [lo, hi), in no defined
	// order, and returns once every call has completed.
	ParallelFor(lo, hi int, body func(i int))
	// ParDo runs left and right concurrently and returns once both have
	// completed.
	ParDo(left, right func())
}

// GoroutineScheduler is the default Scheduler: it bounds fan-out to
// GOMAXPROCS contiguous chunks joined through an errgroup.Group. Bodies
// never return an error; the group exists purely as a wait/join primitive,
// the same role parlay::parallel_for's internal join plays in the source
// this table is ported from.
type GoroutineScheduler struct {
	// MinChunk is the smallest range size worth splitting further. Ranges
	// at or below this size run inline on the calling goroutine.
	MinChunk int
}

func NewGoroutineScheduler() *GoroutineScheduler {
	return &GoroutineScheduler{MinChunk: 1024}
}

func (s *GoroutineScheduler) minChunk() int {
	if s.MinChunk > 0 {
		return s.MinChunk
	}
	return 1024
}

func (s *GoroutineScheduler) ParallelFor(lo, hi int, body func(i int)) {
	n := hi - lo
	if n <= 0 {
		return
	}
	if n <= s.minChunk() {
		for i := lo; i < hi; i++ {
			body(i)
		}
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	for start := lo; start < hi; start += chunk {
		end := start + chunk
		if end > hi {
			end = hi
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				body(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *GoroutineScheduler) ParDo(left, right func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		right()
	}()
	left()
	wg.Wait()
}

// InlineScheduler runs every ParallelFor/ParDo body synchronously on the
// calling goroutine. It is useful for deterministic tests and for callers
// who have already parallelized at a coarser grain.
type InlineScheduler struct{}

func (InlineScheduler) ParallelFor(lo, hi int, body func(i int)) {
	for i := lo; i < hi; i++ {
		body(i)
	}
}

func (InlineScheduler) ParDo(left, right func()) {
	left()
	right()
}
