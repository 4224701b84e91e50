package query

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a stored result stays valid.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// resultCache is a TTL cache of query results. Expiry is lazy: an expired
// entry is dropped when it is next read.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// get returns a copy of the stored result for key if it has not expired.
func (c *resultCache) get(key string, now time.Time) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if now.Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result.clone(), true
}

func (c *resultCache) put(key string, r Result, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: r.clone(), storedAt: now}
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
