// Package clientcache keeps one reusable client per endpoint for the
// lifetime of the process.
package clientcache

import "sync"

// Factory constructs the value for a key on first use.
type Factory[K comparable, V any] func(key K) (V, error)

// Cache manages cached clients keyed by endpoint. Entries are never evicted.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	factory Factory[K, V]
}

// New creates an empty Cache that builds values with factory.
func New[K comparable, V any](factory Factory[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]V),
		factory: factory,
	}
}

// GetOrCreate returns the existing value for key or constructs one.
// Concurrent first callers for the same key construct exactly one value and
// the others receive it. A failed construction is not cached.
func (c *Cache[K, V]) GetOrCreate(key K) (V, error) {
	c.mu.RLock()
	if v, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if v, ok := c.entries[key]; ok {
		return v, nil
	}

	v, err := c.factory(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = v
	return v, nil
}

// Len returns the number of cached clients.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
