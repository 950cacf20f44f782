// Package tasktest provides an in-memory task.Store for tests.
package tasktest

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/jobagent/internal/task"
)

// Store is an in-memory implementation of task.Store and task.ResumeStore.
// The optional Func fields override individual operations.
type Store struct {
	UpdateTaskFunc         func(t *task.Task) error
	UpdatePostingScoreFunc func(id string, score int, analysis task.Analysis) error

	UpdateTaskCalls  atomic.Int32
	ScoreWriteCalls  atomic.Int32
	ClaimConflicts   atomic.Int32
	UpsertDuplicates atomic.Int32

	mu       sync.Mutex
	tasks    map[string]*task.Task
	postings map[string]*task.Posting
	keys     map[string]string // owner|canonical key -> posting ID
	resumes  map[string]*task.Resume
}

// Compile-time interface checks.
var (
	_ task.Store       = (*Store)(nil)
	_ task.ResumeStore = (*Store)(nil)
)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		tasks:    make(map[string]*task.Task),
		postings: make(map[string]*task.Posting),
		keys:     make(map[string]string),
		resumes:  make(map[string]*task.Resume),
	}
}

// CreateTask implements task.Store.
func (s *Store) CreateTask(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

// GetTask implements task.Store.
func (s *Store) GetTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return t.Clone(), nil
}

// UpdateTask implements task.Store.
func (s *Store) UpdateTask(_ context.Context, t *task.Task) error {
	s.UpdateTaskCalls.Add(1)
	if s.UpdateTaskFunc != nil {
		if err := s.UpdateTaskFunc(t); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tasks[t.ID]
	if !ok {
		return task.ErrNotFound
	}
	cp := t.Clone()
	if !stored.IsActive {
		cp.IsActive = false
		cp.NextExecutionAt = nil
	}
	cp.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = cp
	return nil
}

// ClaimTask implements task.Store.
func (s *Store) ClaimTask(_ context.Context, id string, now time.Time) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != task.StatusRecurring || !t.IsActive ||
		t.NextExecutionAt == nil || t.NextExecutionAt.After(now) {
		s.ClaimConflicts.Add(1)
		return nil, task.ErrAlreadyClaimed
	}
	t.Status = task.StatusRunning
	started := now
	t.StartedAt = &started
	return t.Clone(), nil
}

// QueryDueRecurringTasks implements task.Store.
func (s *Store) QueryDueRecurringTasks(_ context.Context, now time.Time, limit int) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*task.Task
	for _, t := range s.tasks {
		if t.IsRecurring() && t.IsActive && t.Status == task.StatusRecurring &&
			t.NextExecutionAt != nil && !t.NextExecutionAt.After(now) {
			due = append(due, t.Clone())
		}
	}
	slices.SortFunc(due, func(a, b *task.Task) int {
		return cmp.Or(a.NextExecutionAt.Compare(*b.NextExecutionAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ReleaseStaleClaims implements task.Store.
func (s *Store) ReleaseStaleClaims(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.IsRecurring() || !t.IsActive {
			continue
		}
		stuckRunning := t.Status == task.StatusRunning && t.StartedAt != nil && t.StartedAt.Before(olderThan)
		neverStarted := t.Status == task.StatusPending && t.CreatedAt.Before(olderThan)
		if stuckRunning || neverStarted {
			t.Status = task.StatusRecurring
			n++
		}
	}
	return n, nil
}

// UpsertPosting implements task.Store.
func (s *Store) UpsertPosting(_ context.Context, p *task.Posting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.OwnerID + "|" + p.CanonicalKey
	if _, exists := s.keys[key]; exists {
		s.UpsertDuplicates.Add(1)
		return false, nil
	}
	cp := *p
	s.keys[key] = p.ID
	s.postings[p.ID] = &cp
	return true, nil
}

// UpdatePostingScore implements task.Store.
func (s *Store) UpdatePostingScore(_ context.Context, id string, score int, analysis task.Analysis) error {
	s.ScoreWriteCalls.Add(1)
	if s.UpdatePostingScoreFunc != nil {
		if err := s.UpdatePostingScoreFunc(id, score, analysis); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postings[id]
	if !ok {
		return task.ErrNotFound
	}
	sc := score
	a := analysis
	p.MatchScore = &sc
	p.Analysis = &a
	return nil
}

// ListTaskPostings implements task.Store.
func (s *Store) ListTaskPostings(_ context.Context, taskID string) ([]*task.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task.Posting
	for _, p := range s.postings {
		if p.TaskID == taskID {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *task.Posting) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Posting returns a copy of the stored posting.
func (s *Store) Posting(id string) (*task.Posting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postings[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// PostingCount returns the number of stored postings.
func (s *Store) PostingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postings)
}

// CreateResume implements task.ResumeStore.
func (s *Store) CreateResume(_ context.Context, r *task.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.resumes[r.ID] = &cp
	return nil
}

// GetResume implements task.ResumeStore.
func (s *Store) GetResume(_ context.Context, ownerID, id string) (*task.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resumes[id]
	if !ok || r.OwnerID != ownerID {
		return nil, task.ErrResumeNotFound
	}
	cp := *r
	return &cp, nil
}
