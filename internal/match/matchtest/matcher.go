// Package matchtest provides Matcher doubles for tests.
package matchtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/flemzord/jobagent/internal/match"
	"github.com/flemzord/jobagent/internal/task"
)

// Matcher is a configurable match.Matcher that records calls and the peak
// number of concurrent calls.
type Matcher struct {
	MatchFunc func(ctx context.Context, resume task.Resume, posting task.Posting) (match.Evaluation, error)

	Calls atomic.Int32

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	seen        []string
}

// Match implements match.Matcher.
func (m *Matcher) Match(ctx context.Context, resume task.Resume, posting task.Posting) (match.Evaluation, error) {
	m.Calls.Add(1)

	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.seen = append(m.seen, posting.ID)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.MatchFunc != nil {
		return m.MatchFunc(ctx, resume, posting)
	}
	return match.Evaluation{Score: 50}, nil
}

// MaxInFlight returns the highest number of concurrent Match calls observed.
func (m *Matcher) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Seen returns the posting IDs passed to Match, in call order.
func (m *Matcher) Seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.seen))
	copy(out, m.seen)
	return out
}

// Scores returns a Matcher that answers with the score mapped to each
// posting ID. Postings missing from the map fail with err.
func Scores(scores map[string]int, err error) *Matcher {
	return &Matcher{
		MatchFunc: func(_ context.Context, _ task.Resume, p task.Posting) (match.Evaluation, error) {
			s, ok := scores[p.ID]
			if !ok {
				return match.Evaluation{}, err
			}
			return match.Evaluation{
				Score: s,
				Analysis: map[string]any{
					"summary":   "scored " + p.ID,
					"strengths": []any{"go"},
					"reasoning": "fixture",
				},
			}, nil
		},
	}
}
