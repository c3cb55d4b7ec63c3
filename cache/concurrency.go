package cache

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Semaphore is a counting, context-aware, FIFO-waiter semaphore used to
// bound concurrency (LCD_PAGE_CONCURRENCY, BLOCK_PROC_CONCURRENCY, ...).
// It wraps golang.org/x/sync/semaphore rather than hand-rolling a
// channel-of-tokens, per spec §9's "bounded task fan-out" guidance.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore constructs a semaphore with the given permit count.
func NewSemaphore(permits int64) *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(permits)}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.w.Acquire(ctx, 1)
}

// Release returns a previously acquired permit.
func (s *Semaphore) Release() {
	s.w.Release(1)
}

// SingleFlight coalesces concurrent callers keyed by a pair-contract (or
// any string key) so the second caller awaits the first's in-flight
// result instead of issuing a duplicate call.
type SingleFlight struct {
	g singleflight.Group
}

// Do executes fn at most once per concurrent burst of calls sharing key.
func (s *SingleFlight) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	return s.g.Do(key, fn)
}
