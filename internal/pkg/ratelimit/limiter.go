// Package ratelimit provides per-key sliding-window admission control
// for outbound calls to rate-limited endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// window tracks admission timestamps for one key.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter throttles admissions to at most MaxRequests per Window per key.
// It is a throttle, not a scheduler: waiters are ordered only by their
// natural wake-up times, there is no explicit queue.
type Limiter struct {
	windowLen   time.Duration
	maxRequests int

	windows sync.Map // map[string]*window
	pool    sync.Pool

	// sleep is swappable for tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a Limiter admitting at most maxRequests per windowLen per key.
func New(windowLen time.Duration, maxRequests int) *Limiter {
	l := &Limiter{
		windowLen:   windowLen,
		maxRequests: maxRequests,
		sleep:       time.Sleep,
		now:         time.Now,
	}
	l.pool = sync.Pool{
		New: func() any {
			return &window{stamps: make([]time.Time, 0, maxRequests)}
		},
	}
	return l
}

// getWindow retrieves or creates the window for the given key.
func (l *Limiter) getWindow(key string) *window {
	if v, ok := l.windows.Load(key); ok {
		return v.(*window)
	}

	newWin := l.pool.Get().(*window)
	newWin.stamps = newWin.stamps[:0]

	actual, loaded := l.windows.LoadOrStore(key, newWin)
	if loaded {
		// Another goroutine created the window first, return ours to pool
		l.pool.Put(newWin)
	}
	return actual.(*window)
}

// Wait blocks until an admission slot is free for the key, then records
// the admission. The wait is an explicit retry loop: each pass either
// admits immediately or sleeps until the oldest in-window admission ages
// out, then re-evaluates from scratch.
func (l *Limiter) Wait(key string) {
	win := l.getWindow(key)

	for {
		win.mu.Lock()
		now := l.now()
		cutoff := now.Add(-l.windowLen)

		// Drop admissions that aged out of the trailing window.
		live := win.stamps[:0]
		for _, ts := range win.stamps {
			if ts.After(cutoff) {
				live = append(live, ts)
			}
		}
		win.stamps = live

		if len(win.stamps) < l.maxRequests {
			win.stamps = append(win.stamps, now)
			win.mu.Unlock()
			return
		}

		// Window is full; the oldest entry frees a slot when it ages out.
		wait := l.windowLen - now.Sub(win.stamps[0])
		win.mu.Unlock()

		if wait > 0 {
			l.sleep(wait)
		}
	}
}

// Pending returns the number of admissions currently inside the trailing
// window for a key. Point-in-time value, for monitoring only.
func (l *Limiter) Pending(key string) int {
	v, ok := l.windows.Load(key)
	if !ok {
		return 0
	}
	win := v.(*window)

	win.mu.Lock()
	defer win.mu.Unlock()

	cutoff := l.now().Add(-l.windowLen)
	count := 0
	for _, ts := range win.stamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
