// Package cache provides an in-memory TTL cache.
package cache

import (
	"sync"
	"time"
)

// Entry is one cached value.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// IsExpired returns true if the entry has expired
func (e *Entry[V]) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// MemoryCache is an in-memory cache with per-entry TTL and a background
// sweep of expired entries.
type MemoryCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[V]

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache[V any]() *MemoryCache[V] {
	return newMemoryCache[V](time.Minute)
}

func newMemoryCache[V any](interval time.Duration) *MemoryCache[V] {
	c := &MemoryCache[V]{
		entries:         make(map[string]*Entry[V]),
		cleanupInterval: interval,
		stopCleanup:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a value. Expired entries are removed and reported as misses.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		var zero V
		return zero, false
	}
	if entry.IsExpired() {
		c.Invalidate(key)
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// Set stores a value with the given TTL
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	entry := &Entry[V]{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Invalidate removes an entry from the cache
func (c *MemoryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateFunc removes every entry whose key matches.
func (c *MemoryCache[V]) InvalidateFunc(match func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
		}
	}
}

// InvalidateAll removes all entries from the cache
func (c *MemoryCache[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry[V])
	c.mu.Unlock()
}

// cleanupLoop periodically removes expired entries
func (c *MemoryCache[V]) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries
func (c *MemoryCache[V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the background cleanup goroutine
// Safe to call multiple times
func (c *MemoryCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Len returns the number of entries in the cache (for testing)
func (c *MemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
