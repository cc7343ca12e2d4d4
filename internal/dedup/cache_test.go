package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark_FirstWins(t *testing.T) {
	cache := NewCache(time.Hour)

	assert.True(t, cache.CheckAndMark("fp-1"))
	assert.False(t, cache.CheckAndMark("fp-1"))
	assert.True(t, cache.Seen("fp-1"))

	// Different fingerprints are independent
	assert.True(t, cache.CheckAndMark("fp-2"))
	assert.Equal(t, 2, cache.Len())
}

func TestCheckAndMark_Concurrent(t *testing.T) {
	cache := NewCache(time.Hour)

	const goroutines = 50
	var wg sync.WaitGroup
	results := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- cache.CheckAndMark("same-fp")
		}()
	}
	wg.Wait()
	close(results)

	// Exactly one caller observes "not seen"
	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestForget_AllowsReprocessing(t *testing.T) {
	cache := NewCache(time.Hour)

	assert.True(t, cache.CheckAndMark("fp-1"))
	cache.Forget("fp-1")
	assert.True(t, cache.CheckAndMark("fp-1"))
}

func TestEvict_RemovesOnlyExpired(t *testing.T) {
	cache := NewCache(time.Hour)

	current := time.Now()
	cache.now = func() time.Time { return current.Add(-2 * time.Hour) }
	cache.CheckAndMark("old-1")
	cache.CheckAndMark("old-2")

	cache.now = func() time.Time { return current }
	cache.CheckAndMark("fresh")

	removed := cache.Evict()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Seen("fresh"))
	assert.False(t, cache.Seen("old-1"))

	// Evicted fingerprints can be processed again
	assert.True(t, cache.CheckAndMark("old-1"))
}

func TestEvict_BoundsMemory(t *testing.T) {
	cache := NewCache(time.Hour)

	current := time.Now()
	cache.now = func() time.Time { return current.Add(-90 * time.Minute) }
	for i := 0; i < 1000; i++ {
		cache.CheckAndMark(fmt.Sprintf("fp-%d", i))
	}

	cache.now = func() time.Time { return current }
	cache.Evict()
	assert.Equal(t, 0, cache.Len())
}
