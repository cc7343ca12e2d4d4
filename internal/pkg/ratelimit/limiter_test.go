package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter without real sleeping.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(windowLen time.Duration, maxRequests int) (*Limiter, *fakeClock) {
	l := New(windowLen, maxRequests)
	clock := newFakeClock()
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestWait_AdmitsUpToLimitImmediately(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 50)

	for i := 0; i < 50; i++ {
		l.Wait("k")
	}

	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 50, l.Pending("k"))
}

func TestWait_51stSuspendsUntilOldestAgesOut(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 50)

	start := clock.Now()
	for i := 0; i < 50; i++ {
		l.Wait("k")
		clock.Advance(10 * time.Millisecond) // admissions spread over 500ms
	}

	// Window is full: the 51st must wait at least until the oldest
	// admission leaves the trailing second.
	l.Wait("k")

	require.NotEmpty(t, clock.sleeps)
	oldestAgesOutAt := start.Add(time.Second)
	assert.False(t, clock.Now().Before(oldestAgesOutAt),
		"51st admission happened before the oldest aged out")
}

func TestWait_KeysAreIndependent(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 2)

	l.Wait("a")
	l.Wait("a")
	l.Wait("b") // other key is unaffected by a's full window

	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 2, l.Pending("a"))
	assert.Equal(t, 1, l.Pending("b"))
}

func TestWait_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 2)

	l.Wait("k")
	l.Wait("k")

	clock.Advance(1100 * time.Millisecond)

	// Both admissions aged out; no sleeping needed
	l.Wait("k")
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 1, l.Pending("k"))
}

func TestWait_RetriesUntilSlotFrees(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 1)

	l.Wait("k")
	l.Wait("k") // sleeps ~1s, then admits on re-evaluation
	l.Wait("k")

	assert.Len(t, clock.sleeps, 2)
	for _, d := range clock.sleeps {
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestPending_UnknownKey(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 1)
	assert.Equal(t, 0, l.Pending("nope"))
}
