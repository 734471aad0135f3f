package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

type staticCache struct{}

func (staticCache) Get(string) (bool, bool) { return false, false }
func (staticCache) Put(string, bool)        {}
func (staticCache) Len() int                { return 4 }
func (staticCache) Stats() (uint64, uint64) { return 9, 4 }

func redundant(child, parent string) domain.Deletion {
	return domain.NewRedundantDeletion(
		domain.Rule{Raw: "||" + child + "^", Category: domain.CategoryDomain, Domain: child},
		domain.Rule{Raw: "||" + parent + "^", Category: domain.CategoryDomain, Domain: parent},
	)
}

func TestTopParents(t *testing.T) {
	dels := []domain.Deletion{
		redundant("a.example.com", "example.com"),
		redundant("b.example.com", "example.com"),
		redundant("x.cdn.example.com", "cdn.example.com"),
		redundant("a.tracker.co.uk", "tracker.co.uk"),
		redundant("b.other.test", "other.test"),
		{Rule: domain.Rule{Raw: "||gone.test^"}, Reason: domain.DropUnresolvable},
	}

	got := TopParents(dels, 2)
	assert.Equal(t, []DomainCount{
		{Domain: "example.com", Count: 3},
		{Domain: "other.test", Count: 1},
	}, got)

	all := TopParents(dels, 10)
	assert.Len(t, all, 3)
	assert.Equal(t, "tracker.co.uk", all[2].Domain)
}

func TestNewSummary(t *testing.T) {
	res := cleaner.Result{
		Deletions: []domain.Deletion{redundant("a.example.com", "example.com")},
		Stats: cleaner.Stats{
			InputLines: 12,
			Categories: map[domain.Category]int{domain.CategoryDomain: 10, domain.CategoryComment: 2},
			Demoted:    1,
			Dropped:    map[domain.DropReason]int{domain.DropRedundant: 1},
			Kept:       11,
		},
	}
	h := Header{
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Previous:  &domain.RunRecord{RuleCount: 15, Version: 6},
		Checksum:  0xff,
	}
	sources := []SourceCount{{Source: "a", Lines: 12}, {Source: "b", Failed: true}}

	s := NewSummary(h, res, sources, staticCache{})
	assert.Equal(t, 11, s.Rules)
	require.NotNil(t, s.Delta)
	assert.Equal(t, int64(-4), *s.Delta)
	assert.Equal(t, uint64(7), s.Version)
	assert.Equal(t, "00000000000000ff", s.Checksum)
	assert.Equal(t, map[string]int{"domain": 10, "comment": 2}, s.Categories)
	assert.Equal(t, map[string]int{"redundant": 1}, s.Dropped)
	assert.Equal(t, CacheStats{Entries: 4, Hits: 9, Misses: 4}, s.Cache)
	assert.Equal(t, []DomainCount{{Domain: "example.com", Count: 1}}, s.TopParents)
}

func TestWriteSummary_YAML(t *testing.T) {
	s := NewSummary(Header{UpdatedAt: time.Unix(0, 0)}, cleaner.Result{}, []SourceCount{{Source: "a", Lines: 1}}, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "0000000000000000", decoded["checksum"])
	assert.NotContains(t, decoded, "delta")
	assert.NotContains(t, decoded, "top_parents")
	assert.Contains(t, buf.String(), "sources:\n  - source: a\n    lines: 1\n")
}
