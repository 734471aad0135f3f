package domain

import "time"

// RunRecord is the bookkeeping kept between runs.
type RunRecord struct {
	RuleCount uint64
	Checksum  uint64
	UpdatedAt time.Time
	Version   uint64
}

// Delta returns the signed change in rule count from prev to r.
func (r RunRecord) Delta(prev RunRecord) int64 {
	return int64(r.RuleCount) - int64(prev.RuleCount)
}
