// Package bloom provides the Bloom filter that fronts the parent/child
// resolver's ancestor index.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

// factory implements cleaner.BloomFactory using Size.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() cleaner.BloomFactory { return factory{} }

// New constructs a filter sized for capacity keys at fpRate.
func (factory) New(capacity uint64, fpRate float64) cleaner.BloomFilter {
	m, k := Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

var _ cleaner.BloomFactory = factory{}
