// Package cache provides the bounded LRU cache shared by the
// recommendation, edit-distance, and search hot paths.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats carries cumulative hit and miss counts.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// HitRate returns hits/(hits+misses), or 0 when no lookups happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LRU is a bounded associative cache. On hit the entry moves to the MRU
// end; inserting over capacity evicts the LRU end first. All operations
// acquire one internal mutex.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	inner    *lru.Cache[K, V]
	capacity int
	hits     uint64
	misses   uint64
}

// New creates an LRU with the given capacity.
func New[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	inner, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &LRU[K, V]{inner: inner, capacity: capacity}, nil
}

// Get returns the value for key, promoting it to MRU on hit.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.inner.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

// Put inserts or replaces the value for key.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, value)
}

// Remove deletes the entry for key, reporting whether it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Remove(key)
}

// Clear drops all entries. Counters are preserved.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}

// Contains reports whether key is cached without updating recency.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Contains(key)
}

// Len returns the current number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// Cap returns the configured capacity.
func (c *LRU[K, V]) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Resize changes the capacity, evicting from the LRU end until the
// current count fits.
func (c *LRU[K, V]) Resize(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Resize(capacity)
	c.capacity = capacity
	return nil
}

// Stats returns a snapshot of the hit/miss counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}
