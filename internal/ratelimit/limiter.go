// Package ratelimit provides in-process sliding-window admission control for
// outbound provider calls.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// safetyBuffer is added to each computed wait so a freed slot is actually
// free when the caller retries.
const safetyBuffer = 50 * time.Millisecond

// Limiter admits at most maxRequests calls per window, tracked as a sliding
// window of request timestamps. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	stamps      []time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// New creates a Limiter allowing maxRequests per window.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Allow reports whether a slot is free after pruning timestamps older than
// the window. It does not consume the slot; call Record after a successful
// request.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps) < l.maxRequests
}

// Wait blocks until a slot is free or the context is cancelled. The sleep is
// computed from the oldest in-window timestamp plus a small safety buffer,
// then re-checked in a loop; a single wait is never assumed sufficient.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.maxRequests {
			l.mu.Unlock()
			return nil
		}
		wait := l.stamps[0].Add(l.window).Sub(now) + safetyBuffer
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("ratelimit: wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Record appends the current timestamp after a successful call.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stamps = append(l.stamps, l.now())
}

// InFlight returns the number of timestamps currently inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

// prune drops timestamps that have slid out of the window. Callers hold the
// lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
