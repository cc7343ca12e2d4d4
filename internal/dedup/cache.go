// Package dedup provides a short-lived fingerprint cache that prevents
// duplicate processing of the same claim event (message edits, retries,
// near-simultaneous duplicate gateway deliveries).
package dedup

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache is a mutex-guarded membership set of claim fingerprints.
// The check-and-mark pair executes inside a single critical section so
// that two handlers for the same fingerprint can never both observe
// "not seen". Eviction is best-effort and only bounds memory; the
// durable idempotency backstop lives in the repository layer.
type Cache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration

	now func() time.Time
}

// NewCache creates a Cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// CheckAndMark reports whether the fingerprint is new, marking it seen
// in the same critical section. Returns true exactly once per
// fingerprint while its entry is live.
func (c *Cache) CheckAndMark(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[fingerprint]; ok {
		return false
	}
	c.seen[fingerprint] = c.now()
	return true
}

// Seen reports whether the fingerprint is currently marked.
func (c *Cache) Seen(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[fingerprint]
	return ok
}

// Forget removes a fingerprint so the event can be reprocessed.
// Used when processing fails after the mark, otherwise a caller retry
// would be dropped as a duplicate.
func (c *Cache) Forget(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, fingerprint)
}

// Evict removes entries older than the cache TTL. Run on a fixed
// schedule by the owning process.
func (c *Cache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for fp, markedAt := range c.seen {
		if markedAt.Before(cutoff) {
			delete(c.seen, fp)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().
			Int("removed", removed).
			Int("remaining", len(c.seen)).
			Msg("Evicted expired claim fingerprints")
	}
	return removed
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
