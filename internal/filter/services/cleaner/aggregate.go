package cleaner

import (
	"context"
	"strings"
)

// DedupeLines concatenates sources in order, trims every line and removes
// exact duplicates. The first occurrence wins and first-seen order is kept.
func DedupeLines(sources [][]string) []string {
	total := 0
	for _, src := range sources {
		total += len(src)
	}
	seen := make(map[string]struct{}, total)
	out := make([]string, 0, total)
	for _, src := range sources {
		for _, line := range src {
			line = strings.TrimSpace(line)
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
	}
	return out
}

// Aggregate merges all sources and runs the pipeline once over the union, so
// parent/child relationships that span sources are detected.
func (e *Engine) Aggregate(ctx context.Context, sources [][]string) (Result, error) {
	lines := DedupeLines(sources)
	e.logger.Info(map[string]any{"sources": len(sources), "unique_lines": len(lines)}, "aggregate")
	return e.clean(ctx, lines)
}
