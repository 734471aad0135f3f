package output

import (
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

// DefaultTopDomains is how many registrable domains the summary lists.
const DefaultTopDomains = 20

// Summary is the machine-readable report of one run.
type Summary struct {
	UpdatedAt  time.Time      `yaml:"updated_at"`
	Version    uint64         `yaml:"version,omitempty"`
	Checksum   string         `yaml:"checksum"`
	Rules      int            `yaml:"rules"`
	Delta      *int64         `yaml:"delta,omitempty"`
	InputLines int            `yaml:"input_lines"`
	Demoted    int            `yaml:"demoted"`
	Categories map[string]int `yaml:"categories"`
	Dropped    map[string]int `yaml:"dropped"`
	Sources    []SourceCount  `yaml:"sources"`
	Cache      CacheStats     `yaml:"cache"`
	TopParents []DomainCount  `yaml:"top_parents,omitempty"`
}

// SourceCount is the number of lines read from one source.
type SourceCount struct {
	Source string `yaml:"source"`
	Lines  int    `yaml:"lines"`
	Failed bool   `yaml:"failed,omitempty"`
}

// CacheStats reports validation cache efficiency.
type CacheStats struct {
	Entries int    `yaml:"entries"`
	Hits    uint64 `yaml:"hits"`
	Misses  uint64 `yaml:"misses"`
}

// DomainCount is a registrable domain and how many redundant children it absorbed.
type DomainCount struct {
	Domain string `yaml:"domain"`
	Count  int    `yaml:"count"`
}

// NewSummary builds a Summary from a run's header data and result.
func NewSummary(h Header, res cleaner.Result, sources []SourceCount, cache cleaner.ValidationCache) Summary {
	s := Summary{
		UpdatedAt:  h.UpdatedAt.UTC(),
		Checksum:   formatChecksum(h.Checksum),
		Rules:      res.Stats.Kept,
		InputLines: res.Stats.InputLines,
		Demoted:    res.Stats.Demoted,
		Categories: make(map[string]int, len(res.Stats.Categories)),
		Dropped:    make(map[string]int, len(res.Stats.Dropped)),
		Sources:    sources,
		TopParents: TopParents(res.Deletions, DefaultTopDomains),
	}
	for c, n := range res.Stats.Categories {
		s.Categories[c.String()] = n
	}
	for r, n := range res.Stats.Dropped {
		s.Dropped[r.String()] = n
	}
	if h.Previous != nil {
		d := int64(res.Stats.Kept) - int64(h.Previous.RuleCount)
		s.Delta = &d
		s.Version = h.Previous.Version + 1
	}
	if cache != nil {
		s.Cache.Entries = cache.Len()
		s.Cache.Hits, s.Cache.Misses = cache.Stats()
	}
	return s
}

// TopParents groups redundant deletions by the registrable domain of their
// parent and returns the n largest groups, ties broken by name.
func TopParents(deletions []domain.Deletion, n int) []DomainCount {
	counts := make(map[string]int)
	for _, d := range deletions {
		if d.Reason != domain.DropRedundant || d.Parent == nil {
			continue
		}
		counts[utils.GetApexDomain(d.Parent.Domain)]++
	}
	out := make([]DomainCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, DomainCount{Domain: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// WriteSummary encodes s as YAML.
func WriteSummary(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

func formatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
