// Package ttlcache implements a small generic cache with per-entry TTL.
//
// Expiry is lazy: entries past their TTL are treated as absent on lookup
// and removed at that point. There is no background sweeper.
//
// Thread Safety: all methods are safe for concurrent access.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache maps keys to values that expire a fixed duration after insertion.
type Cache[K comparable, V any] struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[K]entry[V]
	now   func() time.Time // overridable for tests
}

// New creates a cache whose entries expire after ttl.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
		now:   time.Now,
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is removed and reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores a value, resetting its TTL.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
