// Package limiter provides a process-wide counting gate that caps the number
// of concurrent speech-recognition engine invocations, regardless of how many
// client sessions are open.
//
// Limiter wraps [golang.org/x/sync/semaphore.Weighted] with an explicit
// [Lease] type whose Release is idempotent-safe, matching the scoped-resource
// idiom used throughout this repository for anything that must be released on
// every exit path.
package limiter

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrCancelled is returned by [Limiter.Acquire] when ctx is done before a
// permit becomes available. No permit is consumed in this case.
var ErrCancelled = errors.New("limiter: acquire cancelled")

// Limiter is a counting semaphore admitting at most N concurrent callers.
// Safe for concurrent use by any number of goroutines.
type Limiter struct {
	sem *semaphore.Weighted
	n   int64

	mu       sync.Mutex
	inFlight int64
}

// New creates a Limiter admitting at most n concurrent leases. Panics if n
// is less than 1, since a limiter with zero capacity can never admit anyone.
func New(n int) *Limiter {
	if n < 1 {
		panic("limiter: n must be >= 1")
	}
	return &Limiter{
		sem: semaphore.NewWeighted(int64(n)),
		n:   int64(n),
	}
}

// Acquire blocks until a permit is available or ctx is done. On cancellation
// it returns [ErrCancelled] and consumes no permit.
func (l *Limiter) Acquire(ctx context.Context) (*Lease, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, ErrCancelled
	}

	l.mu.Lock()
	l.inFlight++
	l.mu.Unlock()

	return &Lease{l: l}, nil
}

// InFlight returns the number of leases currently outstanding. Intended for
// readiness checks and metrics gauges, not for admission decisions.
func (l *Limiter) InFlight() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Capacity returns the configured maximum number of concurrent leases.
func (l *Limiter) Capacity() int64 {
	return l.n
}

// Lease is a single unit of admission through a [Limiter]. The holder must
// call [Lease.Release] exactly once; calling it more than once is a safe
// no-op.
type Lease struct {
	l    *Limiter
	once sync.Once
}

// Release returns the permit to the limiter. Safe to call multiple times —
// only the first call has any effect.
func (lease *Lease) Release() {
	lease.once.Do(func() {
		lease.l.mu.Lock()
		lease.l.inFlight--
		lease.l.mu.Unlock()
		lease.l.sem.Release(1)
	})
}
