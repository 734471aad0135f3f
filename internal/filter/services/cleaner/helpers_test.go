package cleaner

import (
	"context"
	"errors"
	"sync"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/rules"
)

var errNXDomain = errors.New("nxdomain")

// fakeLookup resolves the names in its set and counts every call.
type fakeLookup struct {
	mu         sync.Mutex
	resolvable map[string]bool
	calls      map[string]int
}

func newFakeLookup(names ...string) *fakeLookup {
	f := &fakeLookup{resolvable: make(map[string]bool), calls: make(map[string]int)}
	for _, n := range names {
		f.resolvable[n] = true
	}
	return f
}

func (f *fakeLookup) LookupA(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.resolvable[name] {
		return true, nil
	}
	return false, errNXDomain
}

func (f *fakeLookup) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// fakeCache is a minimal ValidationCache.
type fakeCache struct {
	mu           sync.Mutex
	entries      map[string]bool
	hits, misses uint64
}

func newFakeCache() *fakeCache { return &fakeCache{entries: make(map[string]bool)} }

func (c *fakeCache) Get(name string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[name]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *fakeCache) Put(name string, v bool) {
	c.mu.Lock()
	c.entries[name] = v
	c.mu.Unlock()
}

func (c *fakeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *fakeCache) Stats() (uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// parsed normalizes each line, failing loudly on lines that are not domain-rules.
func parsed(lines ...string) []domain.Rule {
	out := make([]domain.Rule, 0, len(lines))
	for _, l := range lines {
		r, err := rules.Normalize(l)
		if err != nil {
			panic(err)
		}
		out = append(out, r)
	}
	return out
}

func raws(rs []domain.Rule) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Raw)
	}
	return out
}

func newTestEngine(lookup Lookup, workers int) *Engine {
	e, err := NewEngine(Options{
		Validator: NewValidator(lookup, newFakeCache(), nil, nil),
		Workers:   workers,
	})
	if err != nil {
		panic(err)
	}
	return e
}
