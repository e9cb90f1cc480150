package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a single-process sliding-window limiter for development without Redis.
// Actors with no hits inside the window are dropped, so memory tracks recent writers only.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       Clock
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// WithClock replaces the limiter's time source.
func (l *MemoryLimiter) WithClock(now Clock) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) TryAcquire(_ context.Context, actorID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	kept := l.hits[actorID][:0]
	for _, t := range l.hits[actorID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.hits[actorID] = kept
		recordDecision(false)
		return false, nil
	}
	if len(kept) == 0 {
		// release the expired backing array
		kept = nil
	}

	l.hits[actorID] = append(kept, now)
	recordDecision(true)
	return true, nil
}

// sweep removes idle actors at most once per window. Hits are appended in
// order, so the last one decides whether anything is still live.
func (l *MemoryLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for id, ts := range l.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.hits, id)
		}
	}
}
