package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_PutThenGet(t *testing.T) {
	c := NewLRU[string, string](10, 5*time.Minute)

	c.Put("B62qvault1", "state-1")
	c.Put("B62qvault2", "state-2")

	v, ok := c.Get("B62qvault1")
	require.True(t, ok)
	assert.Equal(t, "state-1", v)

	v, ok = c.Get("B62qvault2")
	require.True(t, ok)
	assert.Equal(t, "state-2", v)

	_, ok = c.Get("B62qunknown")
	assert.False(t, ok)
}

func TestLRU_OverwriteKeepsSingleEntry(t *testing.T) {
	c := NewLRU[string, int](10, 5*time.Minute)

	c.Put("vault", 1)
	c.Put("vault", 2)

	v, ok := c.Get("vault")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](3, 5*time.Minute)

	c.Put("cold", 1)
	c.Put("warm", 2)
	c.Put("hot", 3)

	// Touching "cold" promotes it, leaving "warm" as the eviction victim.
	c.Get("cold")
	c.Put("fresh", 4)

	_, ok := c.Get("warm")
	assert.False(t, ok, "least recently used entry must go first")
	for _, key := range []string{"cold", "hot", "fresh"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
}

func TestLRU_ExpiresAfterTTL(t *testing.T) {
	c := NewLRU[string, int](10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.nowFn = func() time.Time { return now }

	c.Put("vault", 1)

	v, ok := c.Get("vault")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// After the TTL the entry is gone and its slot is reclaimed.
	now = now.Add(2 * time.Minute)
	_, ok = c.Get("vault")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_ZeroValueSafety(t *testing.T) {
	c := NewLRU[string, *int](10, time.Minute)

	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestLRU_RaceSafety(t *testing.T) {
	c := NewLRU[int, int](100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Put(i%150, g)
				c.Get(i % 150)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
