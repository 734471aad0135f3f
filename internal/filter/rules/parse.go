package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// MinDomainLength is the shortest cleaned domain accepted as well-formed.
const MinDomainLength = 4

// terminators end the host part of a domain-rule: '^' is the separator,
// '$' opens the modifier list when no separator is present.
const terminators = "^$"

var (
	// ErrNotDomainRule is returned when ParseDomainRule receives a rule of another category.
	ErrNotDomainRule = errors.New("rule is not a domain-rule")
	// ErrMalformedDomain is returned when the extracted domain is too short to be a host.
	ErrMalformedDomain = errors.New("malformed domain")
)

// ParseDomainRule extracts polarity, domain and suffix from a rule classified
// as CategoryDomain and returns the filled-in rule.
func ParseDomainRule(r domain.Rule) (domain.Rule, error) {
	if r.Category != domain.CategoryDomain {
		return r, ErrNotDomainRule
	}

	rest := r.Raw
	polarity := domain.PolarityBlock
	if strings.HasPrefix(rest, domain.ExceptionMarker) {
		polarity = domain.PolarityAllow
		rest = rest[len(domain.ExceptionMarker):]
	}
	rest = strings.TrimLeft(rest, "|")
	rest = strings.TrimLeft(rest, ".")

	host, suffix := rest, ""
	if i := strings.IndexAny(rest, terminators); i >= 0 {
		host, suffix = rest[:i], rest[i:]
	}

	name := utils.CanonicalDNSName(cleanHost(host))
	if len(name) < MinDomainLength {
		return r, fmt.Errorf("%w: %q", ErrMalformedDomain, name)
	}

	r.Polarity = polarity
	r.Domain = name
	r.Suffix = suffix
	return r, nil
}

// Normalize classifies raw and, for domain-rules, parses it. A domain-rule
// that fails to parse is returned demoted to CategoryOpaque together with the
// parse error, so the caller can log it; the line is kept, never lost.
func Normalize(raw string) (domain.Rule, error) {
	r := ClassifyLine(raw)
	if !r.IsDomain() {
		return r, nil
	}
	parsed, err := ParseDomainRule(r)
	if err != nil {
		return r.Demote(), err
	}
	return parsed, nil
}

// cleanHost drops every byte outside [a-zA-Z0-9.-].
func cleanHost(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isHostByte(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHostByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-'
}
