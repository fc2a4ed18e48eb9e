package indexing

import (
	"context"
	"sync"
	"time"
)

// defaultWindow is the fixed rate-limiting window.
const defaultWindow = time.Minute

// RateLimiter is a fixed-window counter bounding outbound provider calls.
// The window boundary is evaluated lazily on each acquisition; there is no
// background timer, so an idle limiter costs nothing.
type RateLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	windowStart time.Time
	count       int
}

// NewRateLimiter creates a limiter allowing maxPerWindow acquisitions per
// 60-second window.
func NewRateLimiter(maxPerWindow int) (*RateLimiter, error) {
	return newRateLimiter(maxPerWindow, defaultWindow)
}

// newRateLimiter allows tests to shrink the window.
func newRateLimiter(maxPerWindow int, window time.Duration) (*RateLimiter, error) {
	if maxPerWindow < 1 {
		return nil, ErrInvalidRateLimit
	}
	return &RateLimiter{
		max:    maxPerWindow,
		window: window,
	}, nil
}

// Acquire takes one slot from the current window. It returns immediately if
// the window has capacity, otherwise it suspends the caller until the window
// resets. The lock is never held while waiting.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()

		// Lazy reset: if one or more windows elapsed since the window
		// opened, start a fresh one without waiting.
		if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
			r.windowStart = now
			r.count = 0
		}

		if r.count < r.max {
			r.count++
			r.mu.Unlock()
			return nil
		}

		wait := r.window - now.Sub(r.windowStart)
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check under lock; another caller may have taken the
			// fresh window's slots in the meantime.
		}
	}
}

// Remaining reports how many acquisitions the current window still allows.
// Informational only; the value may be stale by the time it is read.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.windowStart.IsZero() || time.Since(r.windowStart) >= r.window {
		return r.max
	}
	return r.max - r.count
}
