package settings

import (
	"sync"
	"time"
)

// Cache holds one value for a fixed TTL. Invalidate forces the next Get
// to miss but keeps the previous value reachable through Last, so a
// failed reload can still serve it.
type Cache[T any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	value    T
	loadedAt time.Time
	loaded   bool
	valid    bool
}

func NewCache[T any](ttl time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{ttl: ttl, now: now}
}

// Get returns the cached value while it is younger than the TTL.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.now().Sub(c.loadedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Last returns the most recently stored value regardless of age.
func (c *Cache[T]) Last() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.value, c.loaded
}

func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = v
	c.loadedAt = c.now()
	c.loaded = true
	c.valid = true
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
}
