package cleaner

import (
	"context"

	"github.com/haukened/rr-filter/internal/filter/common/log"
)

// Validator answers whether a domain currently resolves, consulting the
// ValidationCache before the network. Safe for concurrent use.
type Validator struct {
	lookup   Lookup
	cache    ValidationCache
	logger   log.Logger
	recorder Recorder
}

// NewValidator wires a Lookup and a ValidationCache. logger and recorder may be nil.
func NewValidator(lookup Lookup, cache ValidationCache, logger log.Logger, recorder Recorder) *Validator {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if recorder == nil {
		recorder = NopRecorder()
	}
	return &Validator{lookup: lookup, cache: cache, logger: logger, recorder: recorder}
}

// Validate returns true when name resolves to at least one address.
// Every outcome, including failures, is written to the cache before returning;
// failures are never retried within a run.
func (v *Validator) Validate(ctx context.Context, name string) bool {
	if ok, hit := v.cache.Get(name); hit {
		v.recorder.ObserveLookup(ok, true)
		return ok
	}

	ok, err := v.lookup.LookupA(ctx, name)
	if err != nil {
		ok = false
		v.logger.Debug(map[string]any{"domain": name, "error": err.Error()}, "lookup_failed")
	}
	v.cache.Put(name, ok)
	v.recorder.ObserveLookup(ok, false)
	return ok
}

// Cache returns the cache backing the validator.
func (v *Validator) Cache() ValidationCache { return v.cache }

// ValidateDomain reports whether name resolves, memoized in cache.
func ValidateDomain(ctx context.Context, lookup Lookup, name string, cache ValidationCache) bool {
	return NewValidator(lookup, cache, nil, nil).Validate(ctx, name)
}
