package domain

import (
	"fmt"
	"strings"
)

// Category is the classification of a single input line.
//
// comment     - blank or comment line, passed through
// unsupported - rule the target engine cannot use, dropped
// domain      - domain-rule, validated and subject to parent/child collapse
// opaque      - any other rule, kept verbatim
type Category uint8

const (
	// CategoryComment marks blank lines and '#' / '!' comments.
	CategoryComment Category = iota
	// CategoryUnsupported marks rules rejected by pattern.
	CategoryUnsupported
	// CategoryDomain marks rules decomposed into polarity, domain and suffix.
	CategoryDomain
	// CategoryOpaque marks rules kept as-is without validation.
	CategoryOpaque
)

// String returns a stable string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryComment:
		return "comment"
	case CategoryUnsupported:
		return "unsupported"
	case CategoryDomain:
		return "domain"
	case CategoryOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Category(%d)", c)
	}
}

// ParseCategory converts a string into a Category (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "comment":
		return CategoryComment, nil
	case "unsupported":
		return CategoryUnsupported, nil
	case "domain":
		return CategoryDomain, nil
	case "opaque":
		return CategoryOpaque, nil
	default:
		return 0, fmt.Errorf("unsupported Category: %q", s)
	}
}

// Polarity tells whether a domain-rule blocks or excepts its domain.
type Polarity uint8

const (
	// PolarityBlock is the default for domain-rules.
	PolarityBlock Polarity = iota
	// PolarityAllow is set by a leading "@@" exception marker.
	PolarityAllow
)

// ExceptionMarker is the prefix that turns a rule into an allow rule.
const ExceptionMarker = "@@"

// String returns a stable string representation of the polarity.
func (p Polarity) String() string {
	switch p {
	case PolarityBlock:
		return "block"
	case PolarityAllow:
		return "allow"
	default:
		return fmt.Sprintf("Polarity(%d)", p)
	}
}

// Rule is one trimmed input line and its classification.
//
// Polarity, Domain and Suffix are meaningful only for CategoryDomain:
// - Domain is canonical (lower-case, no surrounding dots)
// - Suffix starts at the rule terminator and is kept byte-for-byte, "" when absent
type Rule struct {
	Raw      string
	Category Category
	Polarity Polarity
	Domain   string
	Suffix   string
}

// NewRule constructs an unparsed Rule of the given category.
func NewRule(raw string, category Category) Rule {
	return Rule{Raw: strings.TrimSpace(raw), Category: category}
}

// IsDomain returns true when the rule was decomposed into domain parts.
func (r Rule) IsDomain() bool { return r.Category == CategoryDomain }

// IsAllow returns true for exception (allow-list) rules.
func (r Rule) IsAllow() bool { return r.Polarity == PolarityAllow }

// PartitionKey identifies the collapse partition of a domain-rule: rules can
// only collapse into each other when polarity and suffix are identical.
func (r Rule) PartitionKey() string {
	return r.Polarity.String() + "\x00" + r.Suffix
}

// Demote returns the rule reclassified as opaque with its domain parts cleared.
func (r Rule) Demote() Rule {
	return Rule{Raw: r.Raw, Category: CategoryOpaque}
}
