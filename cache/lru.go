package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// LRU is a thin, type-safe wrapper over hashicorp/golang-lru for the
// plain pool registry cache described in spec §4.M, where
// recency-based eviction is sufficient and the TTL cache's stricter
// insertion-order/drop-oldest-half policy is unnecessary.
type LRU[K comparable, V any] struct {
	inner *lru.Cache
}

// NewLRU constructs an LRU cache holding at most size entries.
func NewLRU[K comparable, V any](size int) *LRU[K, V] {
	c, _ := lru.New(size)
	return &LRU[K, V]{inner: c}
}

// Get returns the cached value for key.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Add inserts or refreshes key.
func (c *LRU[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

// Remove evicts key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}
