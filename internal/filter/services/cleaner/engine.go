package cleaner

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/rules"
)

// DefaultWorkers is the validation pool width when Options.Workers is unset.
const DefaultWorkers = 20

// ErrValidatorRequired is returned by NewEngine when no Validator is supplied.
var ErrValidatorRequired = errors.New("validator is required")

// Options configures an Engine.
type Options struct {
	Validator *Validator
	// Resolver defaults to a resolver without a Bloom prefilter.
	Resolver *ParentChildResolver
	Workers  int
	Logger   log.Logger
	Recorder Recorder
}

// Engine runs the normalization pipeline: classify, parse, validate on a
// bounded worker pool, then resolve parent/child redundancy on one goroutine.
type Engine struct {
	validator *Validator
	resolver  *ParentChildResolver
	workers   int
	logger    log.Logger
	recorder  Recorder
}

// Stats summarizes one pipeline run.
type Stats struct {
	InputLines int
	Categories map[domain.Category]int
	// Demoted counts domain-rules kept as opaque because their domain was malformed.
	Demoted int
	Dropped map[domain.DropReason]int
	// Kept counts non-empty output rules.
	Kept int
}

// Result is the output of a run. Rules are sorted by raw text; Deletions hold
// unsupported and unresolvable drops in input order followed by redundant
// drops sorted by raw text.
type Result struct {
	Rules     []domain.Rule
	Deletions []domain.Deletion
	Stats     Stats
}

// Lines returns the raw text of every non-empty kept rule.
func (r Result) Lines() []string {
	out := make([]string, 0, len(r.Rules))
	for _, ru := range r.Rules {
		if ru.Raw != "" {
			out = append(out, ru.Raw)
		}
	}
	return out
}

// NewEngine constructs an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Validator == nil {
		return nil, ErrValidatorRequired
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder()
	}
	if opts.Resolver == nil {
		opts.Resolver = NewParentChildResolver(ResolverOptions{Logger: opts.Logger})
	}
	return &Engine{
		validator: opts.Validator,
		resolver:  opts.Resolver,
		workers:   opts.Workers,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}, nil
}

// verdict is the per-line outcome of the parallel phase.
type verdict struct {
	rule    domain.Rule
	demoted bool
	drop    bool
	reason  domain.DropReason
}

// Clean runs the full pipeline over lines. Identical lines are collapsed to
// their first occurrence before evaluation. If ctx is cancelled before every
// line is evaluated, Clean returns ctx.Err().
func (e *Engine) Clean(ctx context.Context, lines []string) (Result, error) {
	return e.clean(ctx, DedupeLines([][]string{lines}))
}

// clean expects deduplicated lines. Results of the parallel phase are stored
// by line index so the outcome does not depend on completion order.
func (e *Engine) clean(ctx context.Context, lines []string) (Result, error) {
	e.logger.Info(map[string]any{"lines": len(lines), "workers": e.workers}, "clean_start")

	verdicts := make([]verdict, len(lines))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				verdicts[i] = e.evaluate(ctx, lines[i])
			}
		}()
	}

feed:
	for i := range lines {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	stats := Stats{
		InputLines: len(lines),
		Categories: make(map[domain.Category]int),
		Dropped:    make(map[domain.DropReason]int),
	}
	survivors := make([]domain.Rule, 0, len(lines))
	var deletions []domain.Deletion
	for _, v := range verdicts {
		stats.Categories[v.rule.Category]++
		if v.demoted {
			stats.Demoted++
		}
		if v.drop {
			deletions = append(deletions, domain.Deletion{Rule: v.rule, Reason: v.reason})
			continue
		}
		survivors = append(survivors, v.rule)
	}

	kept, redundant := e.resolver.Resolve(survivors)
	deletions = append(deletions, redundant...)
	for _, d := range deletions {
		stats.Dropped[d.Reason]++
		e.recorder.ObserveDeletion(d.Reason)
	}

	sort.SliceStable(kept, func(a, b int) bool { return kept[a].Raw < kept[b].Raw })
	res := Result{Rules: kept, Deletions: deletions}
	stats.Kept = len(res.Lines())
	res.Stats = stats

	e.logger.Info(map[string]any{
		"lines":        stats.InputLines,
		"kept":         stats.Kept,
		"unsupported":  stats.Dropped[domain.DropUnsupported],
		"unresolvable": stats.Dropped[domain.DropUnresolvable],
		"redundant":    stats.Dropped[domain.DropRedundant],
		"demoted":      stats.Demoted,
	}, "clean_done")

	return res, nil
}

// evaluate classifies one line and validates it when it is a domain-rule.
func (e *Engine) evaluate(ctx context.Context, line string) verdict {
	r, err := rules.Normalize(line)
	v := verdict{rule: r}
	if err != nil {
		v.demoted = true
		e.recorder.ObserveDemotion()
		e.logger.Debug(map[string]any{"rule": r.Raw, "error": err.Error()}, "demote_malformed")
	}
	e.recorder.ObserveLine(r.Category)

	switch r.Category {
	case domain.CategoryUnsupported:
		v.drop, v.reason = true, domain.DropUnsupported
		e.logger.Debug(map[string]any{"rule": r.Raw}, "drop_unsupported")
	case domain.CategoryDomain:
		if !e.validator.Validate(ctx, r.Domain) {
			v.drop, v.reason = true, domain.DropUnresolvable
			e.logger.Debug(map[string]any{"rule": r.Raw, "domain": r.Domain}, "drop_unresolvable")
		}
	}
	return v
}
