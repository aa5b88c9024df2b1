package rules

import "time"

// TableCache provides an abstraction for caching a site's active table.
// This allows swapping between in-memory, Redis, or other caching implementations.
type TableCache interface {
	// Get retrieves the cached table, returns nil on miss or expiry
	Get() *StoredTable

	// Set stores the table in cache
	Set(table *StoredTable)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns the default: no TTL, invalidate on mutation
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
