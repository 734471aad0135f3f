package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

// filter wraps a bits-and-blooms filter. Add is serialized; MightContain
// takes the read lock so it can run alongside other readers.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

var _ cleaner.BloomFilter = (*filter)(nil)
