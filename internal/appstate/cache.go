// Package appstate is the client-side query cache. Entries are keyed by a
// string and labelled with tags; a successful mutation invalidates every
// entry carrying one of its tags so the next read goes back to the backend.
package appstate

import (
	"context"
	"sync"
	"time"

	"github.com/agusx1211/mailflow/internal/debug"
)

// Tags used across the client.
const (
	TagUsers       = "users"
	TagItems       = "items"
	TagCurrentUser = "currentUser"
)

type entry struct {
	value   any
	tags    []string
	fetched time.Time
}

// Cache holds fetched values until invalidated or older than MaxAge.
type Cache struct {
	// MaxAge bounds how long an entry is served. Zero means no limit.
	MaxAge time.Duration

	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty cache.
func New(maxAge time.Duration) *Cache {
	return &Cache{MaxAge: maxAge, entries: make(map[string]entry), now: time.Now}
}

// Fetch returns the cached value for key or calls fn and caches its result
// under tags. Errors are not cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, tags []string, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := lookup[T](c, key); ok {
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	c.mu.Lock()
	c.entries[key] = entry{value: v, tags: append([]string(nil), tags...), fetched: c.now()}
	c.mu.Unlock()
	return v, nil
}

func lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.MaxAge > 0 && c.now().Sub(e.fetched) > c.MaxAge {
		delete(c.entries, key)
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Invalidate drops every entry tagged with any of tags and returns how many
// were removed.
func (c *Cache) Invalidate(tags ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if hasAny(e.tags, tags) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		debug.LogKV("appstate", "invalidated", "tags", tags, "entries", removed)
	}
	return removed
}

// Reset drops everything, e.g. on logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hasAny(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
