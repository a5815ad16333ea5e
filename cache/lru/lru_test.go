package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forumkit/membership/cache"
)

func TestGetSetDelete(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	_, ok := c.Get(7, "team")
	require.False(t, ok)

	c.Set(7, "team", true)
	v, ok := c.Get(7, "team")
	require.True(t, ok)
	require.True(t, v)

	// false verdicts are stored, not treated as misses
	c.Set(8, "team", false)
	v, ok = c.Get(8, "team")
	require.True(t, ok)
	require.False(t, v)

	c.Delete(7, "team")
	_, ok = c.Get(7, "team")
	require.False(t, ok)

	// deleting an absent entry is a no-op
	c.Delete(7, "team")
}

func TestKeysDoNotCollide(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	// "1:2:g" must not be confused with "12:g" or similar
	c.Set(1, "2:g", true)
	_, ok := c.Get(12, "g")
	require.False(t, ok)

	require.Equal(t, "12:g", cache.Key(12, "g"))
	require.Equal(t, "1:2:g", cache.Key(1, "2:g"))
}

func TestReset(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	c.Set(1, "a", true)
	c.Set(2, "b", false)
	c.Reset()

	_, ok := c.Get(1, "a")
	require.False(t, ok)
	_, ok = c.Get(2, "b")
	require.False(t, ok)
}

func TestBounded(t *testing.T) {
	c := New(Config{Size: 2})
	defer c.Close()

	c.Set(1, "g", true)
	c.Set(2, "g", true)
	c.Set(3, "g", true)

	hits := 0
	for uid := int64(1); uid <= 3; uid++ {
		if _, ok := c.Get(uid, "g"); ok {
			hits++
		}
	}
	require.Equal(t, 2, hits, "oldest entry should be evicted")
}

func TestTTLExpiry(t *testing.T) {
	c := New(Config{TTL: 20 * time.Millisecond})
	defer c.Close()

	c.Set(7, "team", true)
	_, ok := c.Get(7, "team")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := c.Get(7, "team")
		return !ok
	}, time.Second, 10*time.Millisecond, "entry should expire")
}
