package security

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every secret the Redactor finds.
const RedactPlaceholder = "***REDACTED***"

// Redactor scrubs secrets from text. Known key formats are matched by
// pattern; secrets loaded at runtime are matched literally. Safe for
// concurrent use.
type Redactor struct {
	patterns []*regexp.Regexp

	mu       sync.RWMutex
	synced   []string
	literals []string
}

// NewRedactor returns a Redactor using DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddLiteral adds a secret that survives SyncCredentials. Empty strings are
// ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials replaces the secrets taken from store with its current
// values. Call it after modules are provisioned.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := store.Values()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = values
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	literals := slices.Concat(r.synced, r.literals)
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns compiled regex patterns for the credentials this
// service handles: LLM provider keys, job board keys and store DSNs.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenAI-compatible providers (DeepSeek, DashScope, OpenAI): sk-...
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		// Google AI Studio / Gemini
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		// Adzuna app_key query parameter
		regexp.MustCompile(`app_key=[0-9a-fA-F]{16,}`),
		// Bearer tokens in headers or error strings
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
		// user:password@ in postgres and redis URLs
		regexp.MustCompile(`(postgres(?:ql)?|rediss?)://[^:/@\s]+:[^@\s]+@`),
	}
}
