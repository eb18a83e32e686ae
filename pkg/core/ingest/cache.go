package ingest

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache stores raw response bodies keyed by URL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a cache whose entries expire after defaultTTL.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{cache: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the cached body for key.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if v, ok := c.cache.Get(key); ok {
		return v.([]byte), true
	}
	return nil, false
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int { return c.cache.ItemCount() }

// Flush drops every entry.
func (c *MemoryCache) Flush() { c.cache.Flush() }
