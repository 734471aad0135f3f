package rules

import (
	"testing"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want domain.Category
	}{
		{"empty", "", domain.CategoryComment},
		{"whitespace", "   \t", domain.CategoryComment},
		{"hash comment", "# Title: My list", domain.CategoryComment},
		{"bang comment", "! Expires: 1 day", domain.CategoryComment},
		{"leading hash wins over element hiding", "##.banner", domain.CategoryComment},

		{"element hiding", "example.com##.ad-banner", domain.CategoryUnsupported},
		{"element hiding exception", "example.com#@#.ad", domain.CategoryUnsupported},
		{"extended css", "example.com#?#div:has(> a)", domain.CategoryUnsupported},
		{"html filter", "example.com$$script[data-src]", domain.CategoryUnsupported},
		{"removeparam", "||example.com^$removeparam=utm_source", domain.CategoryUnsupported},
		{"redirect", "||example.com/ad^$redirect=noopjs", domain.CategoryUnsupported},
		{"rewrite", "||example.com^$rewrite=abp-resource:blank-js", domain.CategoryUnsupported},
		{"domain modifier", "||tracker.net^$domain=example.com", domain.CategoryUnsupported},
		{"third party", "||tracker.net^$third-party", domain.CategoryUnsupported},
		{"asset js", "|https://cdn.example.com/ads.js", domain.CategoryUnsupported},
		{"asset css", "/banner-style.css", domain.CategoryUnsupported},
		{"asset json", "example.org/config_v2.json", domain.CategoryUnsupported},
		{"wildcard", "||ads*.example.com^", domain.CategoryUnsupported},
		{"bare wildcard", "*", domain.CategoryUnsupported},

		{"double pipe", "||example.com^", domain.CategoryDomain},
		{"exception", "@@||example.com^", domain.CategoryDomain},
		{"single pipe", "|example.com^", domain.CategoryDomain},
		{"leading dot", ".example.com", domain.CategoryDomain},
		{"important modifier", "||example.com^$important", domain.CategoryDomain},
		{"surrounding whitespace", "  ||example.com^  ", domain.CategoryDomain},

		{"script modifier", "||example.com^$script", domain.CategoryOpaque},
		{"path", "||example.com/ads/", domain.CategoryOpaque},
		{"exception single pipe", "@@|example.com^", domain.CategoryOpaque},
		{"hosts entry", "0.0.0.0 example.com", domain.CategoryOpaque},
		{"plain domain", "example.com", domain.CategoryOpaque},
		{"regex rule", "/^ad[0-9]+\\./", domain.CategoryOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLine(tt.in)
			if got.Category != tt.want {
				t.Errorf("ClassifyLine(%q).Category = %v, want %v", tt.in, got.Category, tt.want)
			}
		})
	}
}

func TestClassifyLine_TrimsRaw(t *testing.T) {
	got := ClassifyLine("\t||example.com^ ")
	if got.Raw != "||example.com^" {
		t.Fatalf("Raw = %q, want trimmed", got.Raw)
	}
}

func TestClassifyLine_RejectsRegardlessOfDomain(t *testing.T) {
	// a perfectly valid host does not rescue an unsupported rule
	for _, in := range []string{"||google.com^##div", "||google.com^*", "@@||google.com^$third-party"} {
		if got := ClassifyLine(in).Category; got != domain.CategoryUnsupported {
			t.Errorf("ClassifyLine(%q) = %v, want unsupported", in, got)
		}
	}
}

func TestIsUnsupported(t *testing.T) {
	if IsUnsupported("||example.com^") {
		t.Error("plain domain rule reported unsupported")
	}
	if !IsUnsupported("/static/pixel.gif") {
		t.Error("asset path not reported unsupported")
	}
	// extension without a preceding path segment is not an asset reference
	if IsUnsupported("||example.json^") {
		t.Error("host ending in .json reported unsupported")
	}
}
