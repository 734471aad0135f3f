package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

func TestSortedRules(t *testing.T) {
	got := SortedRules([]string{"||b.test^", "", "! c", "||a.test^"})
	assert.Equal(t, []string{"! c", "||a.test^", "||b.test^"}, got)
}

func TestChecksum_OrderIndependent(t *testing.T) {
	a := Checksum([]string{"||a.test^", "||b.test^", ""})
	b := Checksum([]string{"||b.test^", "||a.test^"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Checksum([]string{"||a.test^"}))
	// line framing keeps concatenations apart
	assert.NotEqual(t, Checksum([]string{"ab", "c"}), Checksum([]string{"a", "bc"}))
}

func TestWriteRules(t *testing.T) {
	lines := []string{"||b.test^", "! keep me", "", "||a.test^"}
	h := Header{
		UpdatedAt: time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC),
		Sources:   []string{"https://example.com/list.txt"},
		Failed:    []string{"https://example.com/down.txt"},
		Stats: cleaner.Stats{
			InputLines: 10,
			Dropped: map[domain.DropReason]int{
				domain.DropUnsupported:  2,
				domain.DropUnresolvable: 3,
				domain.DropRedundant:    2,
			},
		},
		Previous: &domain.RunRecord{RuleCount: 5},
		Checksum: 0xabc,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRules(&buf, h, lines))
	out := buf.String()

	assert.Contains(t, out, "# Updated: 2026-05-04T03:02:01Z\n")
	assert.Contains(t, out, "#   https://example.com/list.txt\n")
	assert.Contains(t, out, "#   https://example.com/down.txt (failed)\n")
	assert.Contains(t, out, "# Unresolvable: 3\n")
	assert.Contains(t, out, "# Rules:        3\n")
	assert.Contains(t, out, "# Previous:     5 (-2)\n")
	assert.Contains(t, out, "# Checksum:     0000000000000abc\n")
	assert.True(t, strings.HasSuffix(out, headerRule+"\n! keep me\n||a.test^\n||b.test^\n"), out)
}

func TestWriteRules_FirstRunHasNoPrevious(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRules(&buf, Header{}, []string{"||a.test^"}))
	assert.NotContains(t, buf.String(), "Previous")
}

func TestStripHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no header", []string{"! c", "||a.test^"}, []string{"! c", "||a.test^"}},
		{"header removed", []string{headerRule, "# Rules: 1", headerRule, "||a.test^"}, []string{"||a.test^"}},
		{"two headers", []string{headerRule, "# x", headerRule, headerRule, "# y", headerRule, "||a.test^"}, []string{"||a.test^"}},
		{"unterminated", []string{headerRule, "# x", "||a.test^"}, []string{headerRule, "# x", "||a.test^"}},
		{"plain hash comments kept", []string{"# note", "||a.test^"}, []string{"# note", "||a.test^"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHeader(tt.in))
		})
	}
}

func TestWriteRules_OwnOutputKeepsOneHeader(t *testing.T) {
	h := Header{Sources: []string{"a"}, Stats: cleaner.Stats{InputLines: 2}}
	var first bytes.Buffer
	require.NoError(t, WriteRules(&first, h, []string{"||b.test^", "||a.test^"}))

	again := StripHeader(strings.Split(strings.TrimSuffix(first.String(), "\n"), "\n"))
	assert.Equal(t, []string{"||a.test^", "||b.test^"}, again)

	var second bytes.Buffer
	require.NoError(t, WriteRules(&second, h, again))
	assert.Equal(t, 2, strings.Count(second.String(), headerRule))
	assert.Equal(t, first.String(), second.String())
}

func TestWriteDeletions(t *testing.T) {
	parent := domain.Rule{Raw: "||example.com^", Category: domain.CategoryDomain, Domain: "example.com"}
	child := domain.Rule{Raw: "||ads.example.com^", Category: domain.CategoryDomain, Domain: "ads.example.com"}
	dels := []domain.Deletion{
		{Rule: domain.NewRule("##.ad", domain.CategoryUnsupported), Reason: domain.DropUnsupported},
		{Rule: domain.Rule{Raw: "||gone.test^"}, Reason: domain.DropUnresolvable},
		domain.NewRedundantDeletion(child, parent),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDeletions(&buf, dels))
	assert.Equal(t,
		"unsupported\t##.ad\nunresolvable\t||gone.test^\nredundant\t||ads.example.com^\t||example.com^\n",
		buf.String())
}
