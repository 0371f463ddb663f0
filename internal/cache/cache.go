// Package cache deduplicates loads of the same key and optionally keeps their results.
package cache

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Policy controls what happens to a value once its load finishes.
type Policy int

const (
	// KeepResolved stores successful loads until they are invalidated.
	KeepResolved Policy = iota
	// EvictOnResolve only shares in-flight loads; nothing is stored.
	EvictOnResolve
)

// Cache shares concurrent loads of a key and, under KeepResolved, their results.
// Failed loads are never stored.
type Cache[V any] struct {
	policy Policy
	group  singleflight.Group

	mu     sync.RWMutex
	values map[string]V
	// epoch is bumped by invalidation so loads that started earlier do not store.
	epoch map[string]uint64
}

// New creates a cache with the given policy.
func New[V any](policy Policy) *Cache[V] {
	return &Cache[V]{
		policy: policy,
		values: make(map[string]V),
		epoch:  make(map[string]uint64),
	}
}

// Get returns the stored value for key, joins an in-flight load of key, or runs load.
// The load runs detached from ctx cancellation so one caller giving up does not fail
// the others; ctx still bounds how long this caller waits.
func (c *Cache[V]) Get(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		epoch := c.epoch[key]
		// Registers the key so InvalidatePrefix can see in-flight loads.
		c.epoch[key] = epoch
		c.mu.Unlock()

		v, err := load(context.WithoutCancel(ctx))
		if err != nil || c.policy != KeepResolved {
			return v, err
		}
		c.mu.Lock()
		if c.epoch[key] == epoch {
			c.values[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Invalidate drops the stored value and detaches any in-flight load for key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.values, key)
	c.epoch[key]++
	c.mu.Unlock()
	c.group.Forget(key)
}

// InvalidatePrefix invalidates every key starting with prefix.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	var keys []string
	for k := range c.epoch {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		delete(c.values, k)
		c.epoch[k]++
	}
	c.mu.Unlock()
	for _, k := range keys {
		c.group.Forget(k)
	}
}

// Len returns the number of stored values.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
