package domain

import (
	"fmt"
	"strings"
)

// DropReason records why a rule was removed from the output.
type DropReason uint8

const (
	// DropUnsupported is set for rules rejected by the classifier.
	DropUnsupported DropReason = iota
	// DropUnresolvable is set for domain-rules whose domain did not resolve.
	DropUnresolvable
	// DropRedundant is set for child rules covered by a retained ancestor.
	DropRedundant
)

// String returns a stable string representation of the reason.
func (r DropReason) String() string {
	switch r {
	case DropUnsupported:
		return "unsupported"
	case DropUnresolvable:
		return "unresolvable"
	case DropRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("DropReason(%d)", r)
	}
}

// ParseDropReason converts a string into a DropReason (case-insensitive).
func ParseDropReason(s string) (DropReason, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unsupported":
		return DropUnsupported, nil
	case "unresolvable":
		return DropUnresolvable, nil
	case "redundant":
		return DropRedundant, nil
	default:
		return 0, fmt.Errorf("unsupported DropReason: %q", s)
	}
}

// Deletion is one entry of the audit log. Parent is set only for DropRedundant
// and holds the retained ancestor rule.
type Deletion struct {
	Rule   Rule
	Reason DropReason
	Parent *Rule
}

// NewRedundantDeletion records child as covered by parent.
func NewRedundantDeletion(child, parent Rule) Deletion {
	p := parent
	return Deletion{Rule: child, Reason: DropRedundant, Parent: &p}
}

// String renders the deletion as a tab-separated audit line.
func (d Deletion) String() string {
	if d.Parent != nil {
		return d.Reason.String() + "\t" + d.Rule.Raw + "\t" + d.Parent.Raw
	}
	return d.Reason.String() + "\t" + d.Rule.Raw
}
