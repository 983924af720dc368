package engine

import "sync"

// BoundedCache is a capacity-limited map with thread-safe get-or-insert.
// On overflow it evicts the oldest insertion rather than growing without
// limit. Entries otherwise live until an explicit Clear.
type BoundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[K]V
	order    []K
}

// NewBoundedCache returns a cache holding at most capacity entries.
// A capacity below one is treated as one.
func NewBoundedCache[K comparable, V any](capacity int) *BoundedCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedCache[K, V]{
		capacity: capacity,
		entries:  make(map[K]V, capacity),
	}
}

// Get returns the cached value for key, if present.
func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// GetOrInsert returns the cached value for key, building and inserting it
// with build on a miss. The build function runs under the cache lock, so a
// value is built at most once per key per generation.
func (c *BoundedCache[K, V]) GetOrInsert(key K, build func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	c.insert(key, v)
	return v, nil
}

// Put inserts or replaces the value for key.
func (c *BoundedCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	c.insert(key, value)
}

func (c *BoundedCache[K, V]) insert(key K, value V) {
	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = value
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *BoundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Safe at any time; later lookups rebuild.
func (c *BoundedCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]V, c.capacity)
	c.order = c.order[:0]
}
