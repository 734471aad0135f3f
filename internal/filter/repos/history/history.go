// Package history persists the bookkeeping of previous runs so each run can
// report how the output changed.
package history

import "github.com/haukened/rr-filter/internal/filter/domain"

// Store keeps the latest RunRecord and a bounded log of earlier ones.
type Store interface {
	// Latest returns the most recent record; ok is false on an empty store.
	Latest() (rec domain.RunRecord, ok bool, err error)
	// Save assigns the next version to rec, persists it and returns it.
	Save(rec domain.RunRecord) (domain.RunRecord, error)
	// Recent returns up to n records, newest first.
	Recent(n int) ([]domain.RunRecord, error)
	Close() error
}
