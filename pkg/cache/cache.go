package cache

import (
	"context"
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item struct {
	Value      []byte
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

// Options configures the in-memory cache
type Options struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
	MaxItems          int
}

// Cache is a thread-safe in-memory cache with expiration
type Cache struct {
	items             map[string]Item
	mu                sync.RWMutex
	defaultExpiration time.Duration
	cleanupInterval   time.Duration
	maxItems          int
}

// New creates a new cache with the given options
func New(opts Options) *Cache {
	cache := &Cache{
		items:             make(map[string]Item),
		defaultExpiration: opts.DefaultExpiration,
		cleanupInterval:   opts.CleanupInterval,
		maxItems:          opts.MaxItems,
	}

	if cache.cleanupInterval > 0 {
		go cache.startCleanupTimer()
	}

	return cache
}

// Set adds an item to the cache. A zero ttl uses the default expiration.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultExpiration
	}

	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxItems > 0 && len(c.items) >= c.maxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldest()
		}
	}

	c.items[key] = Item{
		Value:      value,
		Expiration: exp,
	}
}

// Get retrieves an item from the cache
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired() {
		return nil, false
	}

	return item.Value, true
}

// Delete removes an item from the cache
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of items currently cached, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the entry closest to expiry. Caller must hold the lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestExp int64 = -1

	for k, v := range c.items {
		if v.Expiration == 0 {
			continue
		}
		if oldestExp == -1 || v.Expiration < oldestExp {
			oldestKey = k
			oldestExp = v.Expiration
		}
	}

	// All entries are non-expiring; drop an arbitrary one
	if oldestKey == "" {
		for k := range c.items {
			oldestKey = k
			break
		}
	}

	delete(c.items, oldestKey)
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for k, v := range c.items {
			if v.Expired() {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}
