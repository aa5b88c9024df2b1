package rules

import (
	"sync"
	"time"
)

// InMemoryTableCache is a simple in-memory implementation of TableCache.
// Thread-safe.
type InMemoryTableCache struct {
	table    *StoredTable
	cachedAt time.Time
	config   CacheConfig
	now      func() time.Time
	mu       sync.RWMutex
}

// NewInMemoryTableCache creates a new in-memory table cache
func NewInMemoryTableCache(config CacheConfig) *InMemoryTableCache {
	return &InMemoryTableCache{
		config: config,
		now:    time.Now,
	}
}

// Get returns the cached table, or nil if the cache is empty or expired
func (c *InMemoryTableCache) Get() *StoredTable {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}
	return c.table
}

// Set stores table in cache
func (c *InMemoryTableCache) Set(table *StoredTable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table = table
	c.cachedAt = c.now()
}

// Invalidate clears the cache
func (c *InMemoryTableCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table = nil
}

// IsValid returns true if cache contains unexpired data
func (c *InMemoryTableCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validLocked()
}

func (c *InMemoryTableCache) validLocked() bool {
	if c.table == nil {
		return false
	}
	if c.config.TTL > 0 {
		return c.now().Sub(c.cachedAt) <= c.config.TTL
	}
	return true
}
