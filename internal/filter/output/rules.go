// Package output renders a run's results: the cleaned rule file, the deletion
// audit log and the YAML run summary.
package output

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

// headerRule frames the header block.
const headerRule = "###########################################################"

// Header carries what the rule file header reports.
type Header struct {
	UpdatedAt time.Time
	Sources   []string
	Failed    []string
	Stats     cleaner.Stats
	// Previous is the prior run, nil on the first run.
	Previous *domain.RunRecord
	Checksum uint64
}

// SortedRules returns the non-empty lines sorted by raw text.
func SortedRules(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// Checksum hashes the sorted rule text, one rule per line.
func Checksum(lines []string) uint64 {
	h := xxh3.New()
	for _, l := range SortedRules(lines) {
		_, _ = h.WriteString(l)
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}

// WriteRules writes the header block followed by the non-empty rules sorted
// by raw text, one per line.
func WriteRules(w io.Writer, h Header, lines []string) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, h, lines)
	for _, l := range SortedRules(lines) {
		bw.WriteString(l)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func writeHeader(w *bufio.Writer, h Header, lines []string) {
	p := func(format string, args ...any) { fmt.Fprintf(w, "# "+format+"\n", args...) }

	w.WriteString(headerRule + "\n")
	p("rr-filter cleaned rule list")
	p("Updated: %s", h.UpdatedAt.UTC().Format(time.RFC3339))
	p("Sources:")
	for _, s := range h.Sources {
		p("  %s", s)
	}
	for _, s := range h.Failed {
		p("  %s (failed)", s)
	}
	p("--------------------------------------------------------")
	p("Input lines:  %d", h.Stats.InputLines)
	p("Unsupported:  %d", h.Stats.Dropped[domain.DropUnsupported])
	p("Unresolvable: %d", h.Stats.Dropped[domain.DropUnresolvable])
	p("Redundant:    %d", h.Stats.Dropped[domain.DropRedundant])
	p("Rules:        %d", len(SortedRules(lines)))
	if h.Previous != nil {
		delta := int64(len(SortedRules(lines))) - int64(h.Previous.RuleCount)
		p("Previous:     %d (%+d)", h.Previous.RuleCount, delta)
	}
	p("Checksum:     %016x", h.Checksum)
	w.WriteString(headerRule + "\n")
}

// StripHeader removes header blocks written by WriteRules so that a cleaned
// file fed back as a source does not carry its old header into the rules.
// An opening rule with no closing rule is left in place.
func StripHeader(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == headerRule {
			if end := closingRule(lines, i+1); end >= 0 {
				i = end
				continue
			}
		}
		out = append(out, lines[i])
	}
	return out
}

func closingRule(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == headerRule {
			return j
		}
	}
	return -1
}

// WriteDeletions writes one audit line per deletion in the given order.
func WriteDeletions(w io.Writer, deletions []domain.Deletion) error {
	bw := bufio.NewWriter(w)
	for _, d := range deletions {
		bw.WriteString(d.String())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
