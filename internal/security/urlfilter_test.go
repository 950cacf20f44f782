package security

import (
	"errors"
	"testing"
)

func TestURLFilter_EmptyConfigAcceptsPublicHosts(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{})

	if err := f.Check("https://www.adzuna.com.au/details/123"); err != nil {
		t.Errorf("expected allow, got %v", err)
	}
}

func TestURLFilter_AllowList(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{AllowDomains: []string{"seek.com.au", "adzuna.com.au"}})

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://seek.com.au/job/1", true},
		{"https://www.seek.com.au/job/1", true},
		{"https://api.adzuna.com.au/x", true},
		{"https://indeed.com/viewjob", false},
		{"https://notseek.com.au/job/1", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			err := f.Check(tt.url)
			if tt.allowed && err != nil {
				t.Errorf("expected allow, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrURLBlocked) {
				t.Errorf("expected ErrURLBlocked, got %v", err)
			}
		})
	}
}

func TestURLFilter_DenyTakesPrecedence(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{
		AllowDomains: []string{"example.com"},
		DenyDomains:  []string{"spam.example.com"},
	})

	if err := f.Check("https://jobs.example.com/1"); err != nil {
		t.Errorf("expected allow, got %v", err)
	}
	if err := f.Check("https://spam.example.com/1"); !errors.Is(err, ErrURLBlocked) {
		t.Errorf("expected ErrURLBlocked, got %v", err)
	}
}

func TestURLFilter_DenyOnly(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{DenyDomains: []string{"scam-jobs.io"}})

	if err := f.Check("https://careers.acme.com/42"); err != nil {
		t.Errorf("expected allow, got %v", err)
	}
	if err := f.Check("https://www.scam-jobs.io/apply"); !errors.Is(err, ErrURLBlocked) {
		t.Errorf("expected ErrURLBlocked, got %v", err)
	}
}

func TestURLFilter_Rejects(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{})

	tests := []struct {
		name string
		url  string
	}{
		{"invalid", "://bad"},
		{"empty hostname", "https:///path"},
		{"file scheme", "file:///etc/passwd"},
		{"gopher scheme", "gopher://example.com/path"},
		{"localhost", "http://localhost:8080/"},
		{"loopback", "http://127.0.0.1/admin"},
		{"private", "http://192.168.1.1/internal"},
		{"link local", "http://169.254.169.254/latest/meta-data/"},
		{"ipv6 loopback", "http://[::1]/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := f.Check(tt.url); !errors.Is(err, ErrURLBlocked) {
				t.Errorf("Check(%q) = %v, want ErrURLBlocked", tt.url, err)
			}
		})
	}
}

func TestURLFilter_NilFilter(t *testing.T) {
	t.Parallel()

	var f *URLFilter
	if err := f.Check("https://example.com/job"); err != nil {
		t.Errorf("expected allow, got %v", err)
	}
	if err := f.Check("ftp://example.com/job"); !errors.Is(err, ErrURLBlocked) {
		t.Errorf("expected ErrURLBlocked, got %v", err)
	}
	if f.IsConfigured() {
		t.Error("nil filter should not be configured")
	}
}

func TestURLFilter_CaseInsensitive(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{AllowDomains: []string{"Example.COM"}})

	if err := f.Check("HTTPS://API.EXAMPLE.COM/path"); err != nil {
		t.Errorf("expected allow, got %v", err)
	}
}

func TestURLFilter_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  URLFilterConfig
		want bool
	}{
		{"empty", URLFilterConfig{}, false},
		{"blank entries", URLFilterConfig{AllowDomains: []string{"  "}}, false},
		{"allow only", URLFilterConfig{AllowDomains: []string{"a.com"}}, true},
		{"deny only", URLFilterConfig{DenyDomains: []string{"b.com"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewURLFilter(tt.cfg).IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host   string
		domain string
		want   bool
	}{
		{"example.com", "example.com", true},
		{"api.example.com", "example.com", true},
		{"deep.api.example.com", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com.evil.com", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.host+"_"+tt.domain, func(t *testing.T) {
			t.Parallel()
			if got := matchDomain(tt.host, tt.domain); got != tt.want {
				t.Errorf("matchDomain(%q, %q) = %v, want %v", tt.host, tt.domain, got, tt.want)
			}
		})
	}
}
