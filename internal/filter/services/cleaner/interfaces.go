package cleaner

import (
	"context"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

// Lookup performs the forward address resolution behind ValidateDomain.
// It returns true when name has at least one A record. A definitive negative
// answer (NXDOMAIN, no data) is (false, nil); transport and timeout failures
// are (false, err) so the cause can be logged.
type Lookup interface {
	LookupA(ctx context.Context, name string) (bool, error)
}

// ValidationCache memoizes resolvability by domain for one run.
// Implementations must be safe for concurrent use.
type ValidationCache interface {
	Get(name string) (resolvable bool, ok bool)
	Put(name string, resolvable bool)
	Len() int
	Stats() (hits, misses uint64)
}

// BloomFilter is the minimal interface the resolver needs from a Bloom filter.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds a BloomFilter sized for capacity keys at fpRate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// Recorder receives pipeline events for metrics.
type Recorder interface {
	ObserveLine(c domain.Category)
	ObserveDemotion()
	ObserveDeletion(r domain.DropReason)
	ObserveLookup(resolvable, cached bool)
}

// nopRecorder discards all events.
type nopRecorder struct{}

func (nopRecorder) ObserveLine(domain.Category)       {}
func (nopRecorder) ObserveDemotion()                  {}
func (nopRecorder) ObserveDeletion(domain.DropReason) {}
func (nopRecorder) ObserveLookup(bool, bool)          {}

// NopRecorder returns a Recorder that discards all events.
func NopRecorder() Recorder { return nopRecorder{} }
