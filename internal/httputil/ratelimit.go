// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"
	"time"
)

// Per-window call ceilings, matching the portal throttling tiers: callers
// presenting an application token get the elevated ceiling.
const (
	TokenedCeiling   = 1000
	AnonymousCeiling = 100
)

// RateWindow is the accounting window length. Tests shorten it.
var RateWindow = time.Hour

// Limiter counts outbound calls against a fixed window and suspends
// callers at the ceiling until the window rolls over, trading latency for
// not failing background sync work. Window age is measured with the
// monotonic reading inside windowStart, so wall-clock steps cannot shrink
// or stretch a window.
type Limiter struct {
	mu          sync.Mutex
	ceiling     int
	window      time.Duration
	windowStart time.Time
	count       int
}

// NewLimiter returns a limiter sized for the caller's portal tier.
func NewLimiter(hasToken bool) *Limiter {
	ceiling := AnonymousCeiling
	if hasToken {
		ceiling = TokenedCeiling
	}
	return &Limiter{ceiling: ceiling, window: RateWindow}
}

// Wait reserves one call, blocking while the current window is exhausted.
// It returns ctx.Err() if the context is cancelled during a suspension.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.ceiling {
			l.count++
			l.mu.Unlock()
			return nil
		}
		// Exhausted: sleep out the window, then re-check. Another caller
		// may have claimed the fresh window first.
		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Remaining reports how many calls are left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windowStart.IsZero() || time.Since(l.windowStart) >= l.window {
		return l.ceiling
	}
	return l.ceiling - l.count
}
