package discovery

import (
	"strings"
	"testing"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"not a url", ""},
		{"HTTPS://Jobs.Example.COM/view/1?utm_source=mail&b=2&a=1#top", "https://jobs.example.com/view/1?a=1&b=2"},
		{"https://x.com/j?gclid=1&fbclid=2&id=9", "https://x.com/j?id=9"},
		{"https://www.linkedin.com/jobs/search/?currentJobId=42&keywords=go&trk=abc", "https://www.linkedin.com/jobs/search/?currentJobId=42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := CanonicalURL(tt.in); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	t.Parallel()

	if got := CanonicalKey("Adzuna", Candidate{ExternalID: "123", URL: "https://a.com/x"}); got != "adzuna:123" {
		t.Errorf("external id key = %q", got)
	}
	if got := CanonicalKey("adzuna", Candidate{URL: "https://A.com/x?utm_medium=y"}); got != "url:https://a.com/x" {
		t.Errorf("url key = %q", got)
	}

	a := CanonicalKey("adzuna", Candidate{Title: "Go Dev", Company: "Acme", Location: "Sydney"})
	b := CanonicalKey("adzuna", Candidate{Title: " go dev", Company: "ACME ", Location: "sydney"})
	if a != b || !strings.HasPrefix(a, "hash:") {
		t.Errorf("hash keys differ: %q vs %q", a, b)
	}
	c := CanonicalKey("adzuna", Candidate{Title: "Go Dev", Company: "Other", Location: "Sydney"})
	if a == c {
		t.Error("different companies share a key")
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"plain", "  Build   things\n\nfast ", "Build things fast"},
		{"markup", "<div><p>Hello</p><p>World &amp; more</p></div>", "Hello World & more"},
		{"script removed", "<p>Keep</p><script>alert(1)</script>", "Keep"},
		{"list", "<ul><li>Go</li><li>SQL</li></ul>", "Go SQL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlainText_Truncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", maxDescriptionRunes)
	if got := PlainText(long); len([]rune(got)) != maxDescriptionRunes {
		t.Errorf("len = %d, want %d", len([]rune(got)), maxDescriptionRunes)
	}
}
