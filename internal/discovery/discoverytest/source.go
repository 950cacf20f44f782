// Package discoverytest provides a Source double for tests.
package discoverytest

import (
	"context"
	"sync"

	"github.com/flemzord/jobagent/internal/discovery"
)

// Source is a configurable discovery.Source. With SearchFunc unset it
// returns Candidates.
type Source struct {
	NameValue  string
	Candidates []discovery.Candidate
	SearchFunc func(ctx context.Context, q discovery.Query) ([]discovery.Candidate, error)

	mu      sync.Mutex
	queries []discovery.Query
}

var _ discovery.Source = (*Source)(nil)

// Name implements discovery.Source.
func (s *Source) Name() string {
	if s.NameValue == "" {
		return "test"
	}
	return s.NameValue
}

// Search implements discovery.Source.
func (s *Source) Search(ctx context.Context, q discovery.Query) ([]discovery.Candidate, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	if s.SearchFunc != nil {
		return s.SearchFunc(ctx, q)
	}
	out := make([]discovery.Candidate, len(s.Candidates))
	copy(out, s.Candidates)
	return out, nil
}

// Queries returns the queries received so far.
func (s *Source) Queries() []discovery.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]discovery.Query, len(s.queries))
	copy(out, s.queries)
	return out
}

// Jobs builds n candidates with distinct external IDs prefixed by prefix.
func Jobs(prefix string, n int) []discovery.Candidate {
	out := make([]discovery.Candidate, n)
	for i := range out {
		id := prefix + string(rune('a'+i))
		out[i] = discovery.Candidate{
			ExternalID:  id,
			Title:       "Go Engineer " + id,
			Company:     "Acme",
			Location:    "Sydney NSW",
			URL:         "https://jobs.example.com/" + id,
			Description: "<p>Build <b>services</b></p>",
		}
	}
	return out
}
