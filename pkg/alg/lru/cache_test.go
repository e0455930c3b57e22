package lru_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repominer/pkg/alg/lru"
)

// testMaxBytes is a small byte limit for eviction tests.
const testMaxBytes = 100

func stringSize(v string) int64 {
	return int64(len(v))
}

func TestCache_GetPut(t *testing.T) {
	t.Parallel()

	cache := lru.New(lru.WithMaxBytes[string](testMaxBytes, stringSize))

	got, found := cache.Get("a")
	assert.False(t, found)
	assert.Empty(t, got)

	cache.Put("a", "commit a")

	got, found = cache.Get("a")
	require.True(t, found)
	assert.Equal(t, "commit a", got)
}

func TestCache_LRUEviction(t *testing.T) {
	t.Parallel()

	// Three 30-byte values fit; a fourth evicts the least recently used.
	cache := lru.New(lru.WithMaxBytes[int](testMaxBytes, stringSize))
	value := string(make([]byte, 30))

	for i := range 3 {
		cache.Put(i, value)
	}

	// Touch 0 so that 1 becomes the least recently used.
	_, found := cache.Get(0)
	require.True(t, found)

	cache.Put(3, value)

	assert.Equal(t, 3, cache.Stats().Entries)

	_, found = cache.Get(1)
	assert.False(t, found)

	for _, key := range []int{0, 2, 3} {
		_, found = cache.Get(key)
		assert.True(t, found, "key %d", key)
	}
}

func TestCache_DuplicatePut(t *testing.T) {
	t.Parallel()

	cache := lru.New(lru.WithMaxBytes[string](testMaxBytes, stringSize))

	cache.Put("k", "short")
	cache.Put("k", "a longer value")

	got, found := cache.Get("k")
	require.True(t, found)
	assert.Equal(t, "a longer value", got)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len("a longer value")), stats.CurrentSize)
}

func TestCache_GrowingValueEvictsOthers(t *testing.T) {
	t.Parallel()

	cache := lru.New(lru.WithMaxBytes[int](testMaxBytes, stringSize))

	cache.Put(1, string(make([]byte, 40)))
	cache.Put(2, string(make([]byte, 40)))
	cache.Put(2, string(make([]byte, 90)))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(90), stats.CurrentSize)

	_, found := cache.Get(1)
	assert.False(t, found)
}

func TestCache_SizeBased(t *testing.T) {
	t.Parallel()

	cache := lru.New(lru.WithMaxBytes[int](testMaxBytes, stringSize))

	value := string(make([]byte, 40))
	cache.Put(1, value)
	cache.Put(2, value)
	cache.Put(3, value)

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(80), stats.CurrentSize)

	_, found := cache.Get(1)
	assert.False(t, found)
}

func TestCache_SizeBased_RejectOversized(t *testing.T) {
	t.Parallel()

	cache := lru.New(lru.WithMaxBytes[int](testMaxBytes, stringSize))

	cache.Put(1, "small")
	cache.Put(2, string(make([]byte, testMaxBytes+1)))

	assert.Equal(t, 1, cache.Stats().Entries)

	_, found := cache.Get(1)
	assert.True(t, found)
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	cache := lru.New(lru.WithMaxBytes[int](testMaxBytes, stringSize))
	cache.Put(1, "one")

	cache.Get(1)
	cache.Get(1)
	cache.Get(2)

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(testMaxBytes), stats.MaxSize)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestStats_HitRate_Empty(t *testing.T) {
	t.Parallel()

	assert.Zero(t, lru.Stats{}.HitRate())
}

func TestNew_RequiresLimit(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[int, string]() })
	assert.Panics(t, func() { lru.New(lru.WithMaxBytes[int](0, stringSize)) })
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()

	const maxBytes = 50

	cache := lru.New(lru.WithMaxBytes[int](maxBytes, func(int) int64 { return 1 }))

	var wg sync.WaitGroup

	for g := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 200 {
				cache.Put(g*1000+i, i)
				cache.Get(g*1000 + i/2)
			}
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, cache.Stats().Entries, maxBytes)
}
