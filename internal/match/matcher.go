// Package match scores discovered postings against a resume. An Engine fans
// evaluations out to a Matcher under a concurrency bound, normalizes what the
// matcher returns and persists every result as soon as it resolves.
package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/flemzord/jobagent/internal/task"
)

// ErrUnknownEvaluator is returned when no matcher is registered under a key.
var ErrUnknownEvaluator = errors.New("match: unknown evaluator")

// Evaluation is the raw result of one matcher call. Analysis is normalized
// by the engine, so matchers may return partial or loosely typed fields.
type Evaluation struct {
	Score    int
	Analysis map[string]any
}

// Matcher evaluates how well a resume fits a posting.
type Matcher interface {
	Match(ctx context.Context, resume task.Resume, posting task.Posting) (Evaluation, error)
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(ctx context.Context, resume task.Resume, posting task.Posting) (Evaluation, error)

// Match calls f.
func (f MatcherFunc) Match(ctx context.Context, resume task.Resume, posting task.Posting) (Evaluation, error) {
	return f(ctx, resume, posting)
}

// Registry maps evaluator keys (the "ai_model" of a task) to matchers.
type Registry struct {
	mu       sync.RWMutex
	matchers map[string]Matcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{matchers: make(map[string]Matcher)}
}

// Register adds a matcher under key. Registering a key twice is an error.
func (r *Registry) Register(key string, m Matcher) error {
	if key == "" {
		return errors.New("match: evaluator key is empty")
	}
	if m == nil {
		return fmt.Errorf("match: evaluator %q has no matcher", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.matchers[key]; ok {
		return fmt.Errorf("match: evaluator %q already registered", key)
	}
	r.matchers[key] = m
	return nil
}

// Get returns the matcher registered under key.
func (r *Registry) Get(key string) (Matcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matchers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvaluator, key)
	}
	return m, nil
}

// Keys returns the registered evaluator keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.matchers))
	for k := range r.matchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
