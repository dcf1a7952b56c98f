package query

import (
	"sync"
	"time"
)

// Throttle permits at most one event per key within a time window. It backs both
// the per-endpoint query rate limit and the extra-info cooldown.
type Throttle struct {
	seen   map[string]time.Time
	window time.Duration
	mu     sync.Mutex
}

// NewThrottle creates a throttle with the given window. A zero window permits everything.
func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{
		seen:   make(map[string]time.Time),
		window: window,
	}
}

// Allow reports whether an event for key at now is permitted and, if so, records it.
// Recorded timestamps never move backwards.
func (t *Throttle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.seen[key]
	if ok && now.Before(last) {
		now = last
	}
	if ok && now.Sub(last) < t.window {
		return false
	}
	t.seen[key] = now

	return true
}

// Last returns the last permitted time for key.
func (t *Throttle) Last(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.seen[key]
	return last, ok
}

// Len returns the number of tracked keys.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.seen)
}

// Prune forgets keys whose last event is older than maxAge at now. Entries still
// inside the window are always kept, so pruning never changes what Allow returns.
func (t *Throttle) Prune(now time.Time, maxAge time.Duration) int {
	if maxAge < t.window {
		maxAge = t.window
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed int
	for key, last := range t.seen {
		if now.Sub(last) > maxAge {
			delete(t.seen, key)
			removed++
		}
	}

	return removed
}
