package batch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore is the bounded concurrency primitive the Executor fans item work
// out under: N permits, scoped acquisition via WithPermit. It wraps
// golang.org/x/sync/semaphore.Weighted with a unit weight per permit — every
// permit is interchangeable, there are no weighted resources, and item
// completion order within a phase is unspecified, so a plain counting
// semaphore is the right shape.
type Semaphore struct {
	weighted *semaphore.Weighted
	n        int64
}

// NewSemaphore creates a Semaphore with n permits. n is clamped to at least 1.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{weighted: semaphore.NewWeighted(int64(n)), n: int64(n)}
}

// WithPermit acquires one permit, runs fn to completion (success or panic-free
// failure), and releases the permit in all cases. Acquisition blocks until a
// permit frees or ctx is cancelled.
func (s *Semaphore) WithPermit(ctx context.Context, fn func() error) error {
	if err := s.weighted.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.weighted.Release(1)
	return fn()
}

// Capacity returns the total number of permits.
func (s *Semaphore) Capacity() int {
	return int(s.n)
}
