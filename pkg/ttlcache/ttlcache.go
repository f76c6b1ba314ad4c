package ttlcache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Cache is a small key/value store with per-entry expiry. Expired entries
// are purged lazily on access, there is no background sweeper. It is meant
// for a small fixed set of keys (one per memoized statistic), so it does
// not implement any LRU eviction.
type Cache struct {
	mtx     *sync.RWMutex
	entries map[string]entry
}

func New() *Cache {
	return &Cache{
		mtx:     &sync.RWMutex{},
		entries: make(map[string]entry),
	}
}

// Set stores value under key for the given ttl, replacing any previous entry.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries[key] = entry{
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	}
}

// Get returns the value stored under key if present and unexpired. An
// expired entry is deleted on read and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries = make(map[string]entry)
}

// Size returns the number of stored entries, expired ones included until
// they are touched.
func (c *Cache) Size() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return len(c.entries)
}
