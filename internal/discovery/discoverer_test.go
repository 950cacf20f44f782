package discovery_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/flemzord/jobagent/internal/discovery"
	"github.com/flemzord/jobagent/internal/discovery/discoverytest"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
	"github.com/flemzord/jobagent/internal/task/tasktest"
)

func newDiscoverer(t *testing.T, src discovery.Source, store discovery.PostingWriter, filter *security.URLFilter) *discovery.Discoverer {
	t.Helper()
	var n atomic.Int32
	d, err := discovery.New(discovery.Config{
		Source: src,
		Store:  store,
		Filter: filter,
		NewID:  func() string { return fmt.Sprintf("post-%d", n.Add(1)) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func request(owner, taskID string, target int) discovery.Request {
	return discovery.Request{
		OwnerID:     owner,
		TaskID:      taskID,
		SearchTerms: []string{"go engineer"},
		Location:    "Sydney NSW",
		TargetCount: target,
	}
}

func TestDiscover_StopsAtTarget(t *testing.T) {
	t.Parallel()

	src := &discoverytest.Source{NameValue: "adzuna", Candidates: discoverytest.Jobs("j", 10)}
	store := tasktest.NewStore()
	d := newDiscoverer(t, src, store, nil)

	got, err := d.Discover(context.Background(), request("u1", "t1", 5))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("created = %d, want 5", len(got))
	}
	if store.PostingCount() != 5 {
		t.Errorf("stored = %d, want 5", store.PostingCount())
	}

	q := src.Queries()
	if len(q) != 1 || q[0].Limit != 15 || q[0].Location != "Sydney NSW" {
		t.Errorf("queries = %+v, want one with limit 15", q)
	}

	p := got[0]
	if p.CanonicalKey != "adzuna:ja" {
		t.Errorf("key = %q, want adzuna:ja", p.CanonicalKey)
	}
	if p.Description != "Build services" {
		t.Errorf("description = %q", p.Description)
	}
	if p.SourcePlatform != "adzuna" || p.ApplicationStatus != task.ApplicationNotApplied || p.Saved {
		t.Errorf("posting defaults = %+v", p)
	}
	if p.OwnerID != "u1" || p.TaskID != "t1" {
		t.Errorf("owner/task = %s/%s", p.OwnerID, p.TaskID)
	}
}

func TestDiscover_DedupAcrossRuns(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	first := &discoverytest.Source{Candidates: discoverytest.Jobs("j", 4)}
	if _, err := newDiscoverer(t, first, store, nil).Discover(context.Background(), request("u1", "t1", 10)); err != nil {
		t.Fatalf("first Discover: %v", err)
	}

	// Overlapping second run: 4 old listings plus 3 new ones.
	overlap := append(discoverytest.Jobs("j", 4), discoverytest.Jobs("k", 3)...)
	second := &discoverytest.Source{Candidates: overlap}
	got, err := newDiscoverer(t, second, store, nil).Discover(context.Background(), request("u1", "t2", 10))
	if err != nil {
		t.Fatalf("second Discover: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("second run created = %d, want 3", len(got))
	}
	if store.PostingCount() != 7 {
		t.Errorf("stored = %d, want 7", store.PostingCount())
	}

	// A different owner sees the same listings as new.
	third := &discoverytest.Source{Candidates: discoverytest.Jobs("j", 4)}
	got, err = newDiscoverer(t, third, store, nil).Discover(context.Background(), request("u2", "t3", 10))
	if err != nil {
		t.Fatalf("third Discover: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("other owner created = %d, want 4", len(got))
	}
}

func TestDiscover_DedupWithinBatch(t *testing.T) {
	t.Parallel()

	cands := []discovery.Candidate{
		{Title: "SRE", Company: "Acme", URL: "https://Jobs.Example.com/1?utm_source=x"},
		{Title: "SRE", Company: "Acme", URL: "https://jobs.example.com/1#apply"},
		{Title: "SRE", Company: "Acme", Location: "Remote"},
		{Title: "sre ", Company: "ACME", Location: "remote"},
	}
	store := tasktest.NewStore()
	got, err := newDiscoverer(t, &discoverytest.Source{Candidates: cands}, store, nil).
		Discover(context.Background(), request("u1", "t1", 10))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("created = %d, want 2", len(got))
	}
}

func TestDiscover_FiltersURLsAndBlankTitles(t *testing.T) {
	t.Parallel()

	cands := []discovery.Candidate{
		{ExternalID: "1", Title: "Kept", URL: "https://good.example.com/1"},
		{ExternalID: "2", Title: "Denied", URL: "https://bad.example.org/2"},
		{ExternalID: "3", Title: "Local", URL: "http://127.0.0.1/3"},
		{ExternalID: "4", Title: "  ", URL: "https://good.example.com/4"},
	}
	filter := security.NewURLFilter(security.URLFilterConfig{DenyDomains: []string{"bad.example.org"}})
	got, err := newDiscoverer(t, &discoverytest.Source{Candidates: cands}, tasktest.NewStore(), filter).
		Discover(context.Background(), request("u1", "t1", 10))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Kept" {
		t.Errorf("created = %+v, want only Kept", got)
	}
}

func TestDiscover_SourceErrorIsFatal(t *testing.T) {
	t.Parallel()

	errDown := errors.New("board unreachable")
	src := &discoverytest.Source{
		SearchFunc: func(context.Context, discovery.Query) ([]discovery.Candidate, error) {
			return nil, errDown
		},
	}
	_, err := newDiscoverer(t, src, tasktest.NewStore(), nil).Discover(context.Background(), request("u1", "t1", 5))
	if !errors.Is(err, errDown) {
		t.Errorf("err = %v, want %v", err, errDown)
	}
}

type failingWriter struct{ after int }

func (w *failingWriter) UpsertPosting(_ context.Context, _ *task.Posting) (bool, error) {
	if w.after == 0 {
		return false, errors.New("db gone")
	}
	w.after--
	return true, nil
}

func TestDiscover_StoreErrorReturnsPartial(t *testing.T) {
	t.Parallel()

	src := &discoverytest.Source{Candidates: discoverytest.Jobs("j", 5)}
	got, err := newDiscoverer(t, src, &failingWriter{after: 2}, nil).Discover(context.Background(), request("u1", "t1", 5))
	if err == nil || !strings.Contains(err.Error(), "db gone") {
		t.Fatalf("err = %v, want store failure", err)
	}
	if len(got) != 2 {
		t.Errorf("partial = %d, want 2", len(got))
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := discovery.New(discovery.Config{Store: tasktest.NewStore()}); err == nil {
		t.Error("expected error without source")
	}
	if _, err := discovery.New(discovery.Config{Source: &discoverytest.Source{}}); err == nil {
		t.Error("expected error without store")
	}
}
