package cache

import (
	"sync"
	"time"

	"github.com/cfr-tools/cfrstatus/models"
)

// entry holds a cached lookup result with its storage timestamp.
type entry struct {
	result   *models.Result
	storedAt time.Time
}

// Cache is an in-memory TTL cache for lookup results, keyed by the query's
// canonical cache key. An expired-but-present entry behaves as a miss even
// before the cleanup loop physically purges it. Safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	ttl        time.Duration
	maxEntries int
}

// New creates a Cache with the given entry TTL and capacity bound.
// A background goroutine runs every 5 minutes to evict expired entries.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Get retrieves a cached result if it exists and has not outlived the TTL.
// Returns the result and whether it was a cache hit.
func (c *Cache) Get(key string) (*models.Result, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores or overwrites the result for key, stamping it with the current
// time. If the cache is at capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, result *models.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if c.maxEntries > 0 && len(c.store) >= c.maxEntries {
		if _, exists := c.store[key]; !exists {
			for k := range c.store {
				delete(c.store, k)
				break
			}
		}
	}

	c.store[key] = &entry{
		result:   result,
		storedAt: time.Now(),
	}
}

// Len returns the number of physically stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// cleanupLoop evicts entries older than the TTL every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.storedAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
