package cleaner

import (
	"sort"

	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// ResolverOptions configures a ParentChildResolver.
type ResolverOptions struct {
	// Bloom, when set, fronts the exact ancestor index with a Bloom filter.
	Bloom  BloomFactory
	FPRate float64
	Logger log.Logger
}

// ParentChildResolver drops domain-rules already covered by a kept ancestor
// rule with the same polarity and suffix.
type ParentChildResolver struct {
	bloom  BloomFactory
	fpRate float64
	logger log.Logger
}

// NewParentChildResolver constructs a resolver.
func NewParentChildResolver(opts ResolverOptions) *ParentChildResolver {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &ParentChildResolver{bloom: opts.Bloom, fpRate: opts.FPRate, logger: opts.Logger}
}

// ResolveParentChild runs a resolver without a Bloom prefilter.
func ResolveParentChild(rules []domain.Rule) ([]domain.Rule, []domain.Deletion) {
	return NewParentChildResolver(ResolverOptions{}).Resolve(rules)
}

// Resolve returns the kept rules in input order and one redundant Deletion
// per dropped child, sorted by the child's raw text. Non-domain rules are
// passed through untouched.
//
// Candidates are visited least specific first, so every kept ancestor of a
// candidate is already indexed when the candidate is reached. Siblings and
// exact duplicates never collapse.
func (r *ParentChildResolver) Resolve(rules []domain.Rule) ([]domain.Rule, []domain.Deletion) {
	candidates := make([]int, 0, len(rules))
	for i, ru := range rules {
		if ru.IsDomain() {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ra, rb := rules[candidates[a]], rules[candidates[b]]
		la, lb := utils.LabelCount(ra.Domain), utils.LabelCount(rb.Domain)
		if la != lb {
			return la < lb
		}
		return ra.Raw < rb.Raw
	})

	idx := newAncestorIndex(len(candidates), r.bloom, r.fpRate)
	parents := make(map[int]int)
	for _, i := range candidates {
		if p, ok := idx.findAncestor(rules[i]); ok {
			parents[i] = p
			r.logger.Debug(map[string]any{"rule": rules[i].Raw, "parent": rules[p].Raw}, "drop_redundant")
			continue
		}
		idx.add(rules[i], i)
	}

	kept := make([]domain.Rule, 0, len(rules)-len(parents))
	dropped := make([]domain.Deletion, 0, len(parents))
	for i, ru := range rules {
		if p, ok := parents[i]; ok {
			dropped = append(dropped, domain.NewRedundantDeletion(ru, rules[p]))
			continue
		}
		kept = append(kept, ru)
	}
	sort.SliceStable(dropped, func(a, b int) bool { return dropped[a].Rule.Raw < dropped[b].Rule.Raw })
	return kept, dropped
}

// ancestorIndex maps partition+domain to the index of the first kept rule.
// The optional Bloom filter answers definite misses without touching the map.
type ancestorIndex struct {
	kept  map[string]int
	bloom BloomFilter
}

func newAncestorIndex(n int, factory BloomFactory, fpRate float64) *ancestorIndex {
	idx := &ancestorIndex{kept: make(map[string]int, n)}
	if factory != nil {
		idx.bloom = factory.New(uint64(n), fpRate)
	}
	return idx
}

func indexKey(partition, name string) string {
	return partition + "\x00" + name
}

func (x *ancestorIndex) add(r domain.Rule, i int) {
	key := indexKey(r.PartitionKey(), r.Domain)
	if _, ok := x.kept[key]; ok {
		return
	}
	x.kept[key] = i
	if x.bloom != nil {
		x.bloom.Add([]byte(key))
	}
}

// findAncestor returns the kept rule covering r, nearest ancestor first.
func (x *ancestorIndex) findAncestor(r domain.Rule) (int, bool) {
	partition := r.PartitionKey()
	found, at := false, 0
	utils.Ancestors(r.Domain, func(a string) bool {
		key := indexKey(partition, a)
		if x.bloom != nil && !x.bloom.MightContain([]byte(key)) {
			return true
		}
		if i, ok := x.kept[key]; ok {
			found, at = true, i
			return false
		}
		return true
	})
	return at, found
}
