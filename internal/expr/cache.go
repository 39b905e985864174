package expr

import (
	"sync"
	"sync/atomic"
)

// DefaultCacheEntries bounds a Cache built with NewCache(0).
const DefaultCacheEntries = 4096

// Cache memoizes Parse results by source text, including failures.
// Entries are immutable so the tree can be shared between goroutines.
// When the entry count reaches the bound the cache is cleared wholesale.
type Cache struct {
	limits     Limits
	maxEntries int64
	entries    sync.Map // source -> cacheEntry
	size       atomic.Int64
}

type cacheEntry struct {
	expr Expression
	err  error
}

// NewCache returns a cache parsing with limits. maxEntries <= 0 selects DefaultCacheEntries.
func NewCache(limits Limits, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{limits: limits, maxEntries: int64(maxEntries)}
}

// Parse returns the cached tree for source, parsing on first use.
func (c *Cache) Parse(source string) (Expression, error) {
	if cached, ok := c.entries.Load(source); ok {
		entry := cached.(cacheEntry)
		return entry.expr, entry.err
	}

	e, err := ParseWithLimits(source, c.limits)
	if c.size.Load() >= c.maxEntries {
		c.Clear()
	}
	if _, loaded := c.entries.LoadOrStore(source, cacheEntry{expr: e, err: err}); !loaded {
		c.size.Add(1)
	}
	return e, err
}

// Len returns the approximate number of cached sources.
func (c *Cache) Len() int { return int(c.size.Load()) }

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
	c.size.Store(0)
}
