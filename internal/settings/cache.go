package settings

import (
	"context"
	"encoding/json"
	"sync"
)

// FetchFunc loads the given keys from the authoritative store, typically with
// a GET_SETTINGS request.
type FetchFunc func(ctx context.Context, keys []string) (map[string]json.RawMessage, error)

// WriteFunc writes one key to the authoritative store.
type WriteFunc func(ctx context.Context, key string, value any) error

// Cache is a foreground read-through copy of the settings record. It never
// mutates the record itself; writes go through WriteFunc and the cached entry
// is refreshed from the written value.
type Cache struct {
	origin string
	fetch  FetchFunc
	write  WriteFunc

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// NewCache builds an empty cache for a context identified by origin.
func NewCache(origin string, fetch FetchFunc, write WriteFunc) *Cache {
	return &Cache{origin: origin, fetch: fetch, write: write, values: make(map[string]json.RawMessage)}
}

// Origin returns the context name this cache filters its own changes by.
func (c *Cache) Origin() string { return c.origin }

// Get returns key from the cache, fetching it on a miss.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, error) {
	c.mu.Lock()
	if value, ok := c.values[key]; ok {
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	fetched, err := c.fetch(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	value := fetched[key]
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
	return value, nil
}

// Decode reads key into target.
func (c *Cache) Decode(ctx context.Context, key string, target any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// Set writes through to the store and keeps the written value locally.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if err := c.write(ctx, key, value); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		c.Invalidate(key)
		return nil
	}
	c.mu.Lock()
	c.values[key] = raw
	c.mu.Unlock()
	return nil
}

// Apply handles a change notification. Changes this context made itself are
// ignored; others drop the cached entry so the next read refetches. It reports
// whether the notification was acted on.
func (c *Cache) Apply(change Change) bool {
	if change.Origin != "" && change.Origin == c.origin {
		return false
	}
	c.Invalidate(change.Key)
	return true
}

// Invalidate drops one cached key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
}

// Reset drops every cached key. Callers use it after missing notifications,
// for example while the change stream was down.
func (c *Cache) Reset() {
	c.mu.Lock()
	clear(c.values)
	c.mu.Unlock()
}

// Cached reports whether key is currently held.
func (c *Cache) Cached(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}
