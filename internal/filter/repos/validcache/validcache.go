// Package validcache holds the per-run memo of domain resolvability.
package validcache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

// counters tracks hit/miss metrics shared by both cache flavors.
type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (c *counters) record(ok bool) {
	if ok {
		c.hits.Add(1)
		return
	}
	c.misses.Add(1)
}

func (c *counters) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// mapCache is the unbounded cache: every answer is kept for the whole run.
type mapCache struct {
	counters
	mu      sync.RWMutex
	entries map[string]bool
}

// lruCache bounds memory with an LRU. An evicted domain is looked up again
// on its next occurrence.
type lruCache struct {
	counters
	lru *lru.Cache[string, bool]
}

// New creates a ValidationCache. size <= 0 selects the unbounded map cache;
// a positive size selects an LRU of that capacity.
func New(size int) (cleaner.ValidationCache, error) {
	if size <= 0 {
		return &mapCache{entries: make(map[string]bool)}, nil
	}
	c, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &lruCache{lru: c}, nil
}

// Get returns the cached resolvability of name and whether it was present.
func (c *mapCache) Get(name string) (bool, bool) {
	c.mu.RLock()
	v, ok := c.entries[name]
	c.mu.RUnlock()
	c.record(ok)
	return v, ok
}

// Put stores the resolvability of name. Concurrent writers for the same name
// are harmless: last write wins.
func (c *mapCache) Put(name string, resolvable bool) {
	c.mu.Lock()
	c.entries[name] = resolvable
	c.mu.Unlock()
}

// Len returns the number of cached domains.
func (c *mapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *lruCache) Get(name string) (bool, bool) {
	v, ok := c.lru.Get(name)
	c.record(ok)
	return v, ok
}

func (c *lruCache) Put(name string, resolvable bool) {
	c.lru.Add(name, resolvable)
}

func (c *lruCache) Len() int { return c.lru.Len() }

var _ cleaner.ValidationCache = (*mapCache)(nil)
var _ cleaner.ValidationCache = (*lruCache)(nil)
