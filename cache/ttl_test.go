package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTL_GetSet(t *testing.T) {
	c := NewTTL[string, int](time.Minute, 0)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL[string, int](time.Millisecond, 0)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entry should be evicted on access")
}

func TestTTL_EvictsOldestHalfOverCap(t *testing.T) {
	c := NewTTL[int, int](time.Minute, 4)

	for i := 0; i < 5; i++ {
		c.Set(i, i*10)
	}

	if _, ok := c.Get(0); ok {
		t.Error("oldest entry should have been evicted once over the soft cap")
	}
	if _, ok := c.Get(4); !ok {
		t.Error("most recently inserted entry should still be present")
	}
}
