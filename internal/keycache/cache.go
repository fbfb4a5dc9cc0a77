// Package keycache keeps the last known value for a string key so content
// that is still animating out can render after its live source went away.
package keycache

import "sync"

// Cache is a mutex-guarded map of last written values. The zero value is not
// usable; construct with New.
type Cache[V any] struct {
	mu     sync.Mutex
	values map[string]V
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{values: make(map[string]V)}
}

var (
	sharedOnce sync.Once
	shared     *Cache[any]
)

// Shared returns the process-wide cache. It is created on first use and never
// torn down. Prefer injecting a Cache; Shared exists for call sites that have
// no way to receive one. Reading a value back as the wrong type is a caller bug.
func Shared() *Cache[any] {
	sharedOnce.Do(func() { shared = New[any]() })
	return shared
}

// Get returns the last value written for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Set overwrites the value for key. Racing writers on the same key resolve in
// an unspecified order.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Remove deletes key. Removing a missing key is a no-op.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
}

// Latest prefers the live value and falls back to the cache. When ok is true
// the live value is written through and returned; otherwise the last cached
// value (if any) is returned.
func (c *Cache[V]) Latest(key string, live V, ok bool) (V, bool) {
	if ok {
		c.Set(key, live)
		return live, true
	}
	return c.Get(key)
}

// Len reports the number of cached keys.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
