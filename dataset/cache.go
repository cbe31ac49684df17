package dataset

import (
	"log"
	"sync"
	"time"
)

// Cache memoizes the workbook load for a bounded time-to-live. It must be
// invalidated after every successful local write or remote fetch; serving a
// read between a write and its invalidation is the one ordering violation
// the design cannot tolerate.
type Cache struct {
	mu       sync.Mutex
	path     string
	ttl      time.Duration
	ds       *Dataset
	loadedAt time.Time
}

// NewCache returns a cache over the workbook at path.
func NewCache(path string, ttl time.Duration) *Cache {
	return &Cache{path: path, ttl: ttl}
}

// Load returns the memoized dataset, re-reading the file when the TTL has
// elapsed or the cache was invalidated. Callers must treat the returned
// dataset as read-only.
func (c *Cache) Load() (*Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ds != nil && time.Since(c.loadedAt) < c.ttl {
		return c.ds, nil
	}

	ds, err := ReadWorkbook(c.path)
	if err != nil {
		return nil, err
	}
	c.ds = ds
	c.loadedAt = time.Now()
	return c.ds, nil
}

// Invalidate unconditionally drops the memoized dataset.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ds = nil
	log.Printf("DEBUG: Dataset cache invalidated for %s", c.path)
}
