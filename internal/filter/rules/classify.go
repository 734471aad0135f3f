// Package rules classifies and decomposes AdGuard-style filter lines.
// Everything here is a pure function of its input.
package rules

import (
	"regexp"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

// unsupportedMarkers are substrings that make a rule unusable by the target
// DNS filtering engine: cosmetic/element-hiding syntax and request modifiers
// that only a browser engine can honor.
var unsupportedMarkers = []string{
	"$$", "##", "#@#", "#?#",
	"$removeparam=", "$redirect=", "$rewrite=",
	"$domain=", "$third-party",
	"*",
}

// assetPath matches direct references to static assets such as "/ads.js".
var assetPath = regexp.MustCompile(`/[a-zA-Z0-9_\-]+(\.js|\.css|\.png|\.jpg|\.gif|\.svg|\.json)`)

// domainMarkers open a domain-rule. "@@||" must be tested before "|".
var domainMarkers = []string{domain.ExceptionMarker + "||", "||", "|", "."}

// opaqueMarkers keep a domain-marked rule verbatim: it carries a wildcard,
// a scripting modifier or a path, so it cannot be reduced to a bare host.
var opaqueMarkers = []string{"*", "$script", "/"}

// ClassifyLine trims raw and assigns its Category. Domain parts are not
// filled in; see ParseDomainRule.
func ClassifyLine(raw string) domain.Rule {
	line := strings.TrimSpace(raw)

	switch {
	case line == "":
		return domain.NewRule(line, domain.CategoryComment)
	case isComment(line):
		return domain.NewRule(line, domain.CategoryComment)
	case IsUnsupported(line):
		return domain.NewRule(line, domain.CategoryUnsupported)
	case hasDomainMarker(line) && !containsAny(line, opaqueMarkers):
		return domain.NewRule(line, domain.CategoryDomain)
	default:
		return domain.NewRule(line, domain.CategoryOpaque)
	}
}

// IsUnsupported reports whether line matches any unsupported pattern.
func IsUnsupported(line string) bool {
	return containsAny(line, unsupportedMarkers) || assetPath.MatchString(line)
}

func isComment(line string) bool {
	return line[0] == '#' || line[0] == '!'
}

func hasDomainMarker(line string) bool {
	for _, m := range domainMarkers {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
