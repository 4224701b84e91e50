package api

import (
	"os"
	"strconv"
	"sync"
)

// ExportCache is a thread-safe LRU cache of serialized export documents.
type ExportCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string][]byte
	order   []string // oldest first
}

// NewExportCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 20.
func NewExportCache(maxSize int) *ExportCache {
	if maxSize <= 0 {
		maxSize = 20
	}
	return &ExportCache{
		maxSize: maxSize,
		entries: make(map[string][]byte),
	}
}

// NewExportCacheFromEnv creates a cache sized by EXPORT_CACHE_SIZE.
func NewExportCacheFromEnv() *ExportCache {
	size := 20
	if v := os.Getenv("EXPORT_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewExportCache(size)
}

// Get returns a cached document, or nil if not found.
func (c *ExportCache) Get(id string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[id]
	if !ok {
		return nil
	}
	c.moveToEnd(id)
	return data
}

// Put adds a document, evicting the least recently used if full.
func (c *ExportCache) Put(id string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		c.entries[id] = data
		c.moveToEnd(id)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[id] = data
	c.order = append(c.order, id)
}

// Len returns the number of cached documents.
func (c *ExportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ExportCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
