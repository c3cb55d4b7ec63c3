package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRU_AddGetRemove(t *testing.T) {
	c := NewLRU[string, int](2)

	c.Add("a", 1)
	c.Add("b", 2)
	assert.Equal(t, 2, c.Len())

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Remove("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Get("a") // touch a, making b the LRU entry
	c.Add("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
}
