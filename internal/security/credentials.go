// Package security holds the guards shared by the control surfaces and the
// outbound fetchers: credential registry, log and audit redaction, per-key
// rate limiting, request body validation and the posting URL filter.
package security

import (
	"maps"
	"slices"
	"sync"
)

// CredentialStore is the process-wide registry of secrets, keyed by
// "<module>.<field>" names such as "provider.deepseek.api_key". Modules fill
// it during Provision; the Redactor reads it to scrub logs and audit lines.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]string)}
}

// Set records value under name, replacing any previous value.
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = value
}

func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

func (s *CredentialStore) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the registered names in order. Values are never listed.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.creds))
}

// Values returns the non-empty secrets, longest first so that a secret
// containing another is replaced whole.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	values := make([]string, 0, len(s.creds))
	for _, v := range s.creds {
		if v != "" && !slices.Contains(values, v) {
			values = append(values, v)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(values, func(a, b string) int { return len(b) - len(a) })
	return values
}
