package marketplace

import (
	"sync"
	"time"
)

// Limiter is a sliding-window request limiter with an explicit penalty block.
// Each task keeps its own limiter per store, sized to the endpoint's quota.
type Limiter struct {
	mu         sync.Mutex
	max        int
	window     time.Duration
	calls      []time.Time
	blockUntil time.Time
	now        func() time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether a request may be sent now and, if so, records it.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.blockUntil) {
		return false
	}

	cutoff := now.Add(-l.window)
	kept := l.calls[:0]
	for _, c := range l.calls {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	l.calls = kept

	if len(l.calls) >= l.max {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// BlockFor refuses all requests for d from now, regardless of window state.
// Used when the server answers 429.
func (l *Limiter) BlockFor(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(d)
	if until.After(l.blockUntil) {
		l.blockUntil = until
	}
}
