package utils

import "strings"

// LabelCount returns the number of dot-separated labels in a canonical name.
// The empty name has zero labels.
func LabelCount(name string) int {
	if name == "" {
		return 0
	}
	return strings.Count(name, ".") + 1
}

// IsSubdomainOf reports whether child is a strict descendant of parent.
// The match must land on a label boundary: "a.example.com" is a subdomain of
// "example.com", "evilexample.com" is not, and a name is never its own subdomain.
func IsSubdomainOf(child, parent string) bool {
	if parent == "" || len(child) <= len(parent)+1 {
		return false
	}
	return strings.HasSuffix(child, parent) && child[len(child)-len(parent)-1] == '.'
}

// Ancestors calls visit for each strict ancestor of name, nearest first
// ("b.a.example.com" → "a.example.com", "example.com", "com").
// Iteration stops early when visit returns false.
func Ancestors(name string, visit func(ancestor string) bool) {
	a := name
	for {
		i := strings.IndexByte(a, '.')
		if i < 0 {
			return
		}
		a = a[i+1:]
		if a == "" {
			return
		}
		if !visit(a) {
			return
		}
	}
}
