package match_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flemzord/jobagent/internal/match"
	"github.com/flemzord/jobagent/internal/match/matchtest"
	"github.com/flemzord/jobagent/internal/task"
	"github.com/flemzord/jobagent/internal/task/tasktest"
)

func seedPostings(t *testing.T, store *tasktest.Store, ids ...string) []*task.Posting {
	t.Helper()
	out := make([]*task.Posting, 0, len(ids))
	for _, id := range ids {
		p := &task.Posting{ID: id, OwnerID: "u1", TaskID: "t1", CanonicalKey: "key-" + id, Title: "Job " + id}
		if _, err := store.UpsertPosting(context.Background(), p); err != nil {
			t.Fatalf("UpsertPosting(%s): %v", id, err)
		}
		out = append(out, p)
	}
	return out
}

func TestMatchAll_PartialFailure(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "p1", "p2", "p3", "p4")
	errBoom := errors.New("model exploded")
	m := matchtest.Scores(map[string]int{"p1": 80, "p2": 60, "p4": 40}, errBoom)

	engine := match.NewEngine(match.EngineConfig{Writer: store})
	results := engine.MatchAll(context.Background(), m, task.Resume{ID: "r1"}, postings, 2)

	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
	for i, want := range []string{"p1", "p2", "p3", "p4"} {
		if results[i].PostingID != want {
			t.Errorf("results[%d].PostingID = %q, want %q", i, results[i].PostingID, want)
		}
	}

	failed := results[2]
	if failed.Success {
		t.Fatal("p3 should have failed")
	}
	if !errors.Is(failed.Err, errBoom) {
		t.Errorf("p3 error = %v, want %v", failed.Err, errBoom)
	}
	if failed.Analysis.Error == "" || failed.Analysis.Summary != "Analysis failed" {
		t.Errorf("p3 analysis = %+v, want failure analysis", failed.Analysis)
	}

	sum, n := 0, 0
	for _, r := range results {
		if r.Success {
			sum += r.Score
			n++
		}
	}
	if avg := float64(sum) / float64(n); avg != 60 {
		t.Errorf("average = %v, want 60", avg)
	}

	if got := store.ScoreWriteCalls.Load(); got != 4 {
		t.Errorf("score writes = %d, want 4", got)
	}
	p3, _ := store.Posting("p3")
	if p3.Analysis == nil || p3.Analysis.Error == "" {
		t.Error("failed posting should carry the failure analysis")
	}
	p1, _ := store.Posting("p1")
	if p1.MatchScore == nil || *p1.MatchScore != 80 {
		t.Errorf("p1 score = %v, want 80", p1.MatchScore)
	}
}

func TestMatchAll_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i)
	}
	store := tasktest.NewStore()
	postings := seedPostings(t, store, ids...)

	m := &matchtest.Matcher{
		MatchFunc: func(_ context.Context, _ task.Resume, _ task.Posting) (match.Evaluation, error) {
			time.Sleep(5 * time.Millisecond)
			return match.Evaluation{Score: 70}, nil
		},
	}

	engine := match.NewEngine(match.EngineConfig{Writer: store})
	engine.MatchAll(context.Background(), m, task.Resume{}, postings, 3)

	if got := m.Calls.Load(); got != 12 {
		t.Errorf("calls = %d, want 12", got)
	}
	if got := m.MaxInFlight(); got > 3 {
		t.Errorf("max in flight = %d, want <= 3", got)
	}
}

func TestMatchAll_DefaultConcurrency(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "a", "b", "c", "d", "e", "f")
	m := &matchtest.Matcher{
		MatchFunc: func(_ context.Context, _ task.Resume, _ task.Posting) (match.Evaluation, error) {
			time.Sleep(5 * time.Millisecond)
			return match.Evaluation{Score: 1}, nil
		},
	}

	match.NewEngine(match.EngineConfig{Writer: store}).MatchAll(context.Background(), m, task.Resume{}, postings, 0)

	if got := m.MaxInFlight(); got > match.DefaultConcurrency {
		t.Errorf("max in flight = %d, want <= %d", got, match.DefaultConcurrency)
	}
}

func TestMatchAll_ClampsAndNormalizes(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "hi", "lo")
	m := &matchtest.Matcher{
		MatchFunc: func(_ context.Context, _ task.Resume, p task.Posting) (match.Evaluation, error) {
			if p.ID == "hi" {
				return match.Evaluation{Score: 140, Analysis: map[string]any{"strengths": "one"}}, nil
			}
			return match.Evaluation{Score: -5}, nil
		},
	}

	results := match.NewEngine(match.EngineConfig{Writer: store}).MatchAll(context.Background(), m, task.Resume{}, postings, 2)

	if results[0].Score != 100 {
		t.Errorf("hi score = %d, want 100", results[0].Score)
	}
	if results[1].Score != 0 {
		t.Errorf("lo score = %d, want 0", results[1].Score)
	}
	if got := results[0].Analysis.Strengths; len(got) != 1 || got[0] != "one" {
		t.Errorf("strengths = %v, want [one]", got)
	}
	if results[1].Analysis.Summary != "Not provided" {
		t.Errorf("summary = %q, want placeholder", results[1].Analysis.Summary)
	}
}

func TestMatchAll_PerCallTimeout(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "slow", "fast")
	m := &matchtest.Matcher{
		MatchFunc: func(ctx context.Context, _ task.Resume, p task.Posting) (match.Evaluation, error) {
			if p.ID == "slow" {
				<-ctx.Done()
				return match.Evaluation{}, ctx.Err()
			}
			return match.Evaluation{Score: 75}, nil
		},
	}

	engine := match.NewEngine(match.EngineConfig{Writer: store, Timeout: 20 * time.Millisecond})
	results := engine.MatchAll(context.Background(), m, task.Resume{}, postings, 2)

	if results[0].Success || !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("slow result = %+v, want deadline failure", results[0])
	}
	if !results[1].Success || results[1].Score != 75 {
		t.Errorf("fast result = %+v, want success 75", results[1])
	}
}

func TestMatchAll_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "x")
	m := match.MatcherFunc(func(context.Context, task.Resume, task.Posting) (match.Evaluation, error) {
		panic("kaboom")
	})

	results := match.NewEngine(match.EngineConfig{Writer: store}).MatchAll(context.Background(), m, task.Resume{}, postings, 1)
	if results[0].Success || results[0].Err == nil {
		t.Fatalf("result = %+v, want failure", results[0])
	}
}

func TestMatchAll_PersistsIncrementally(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "first", "second")

	var mu sync.Mutex
	var order []string
	store.UpdatePostingScoreFunc = func(id string, _ int, _ task.Analysis) error {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return nil
	}

	release := make(chan struct{})
	m := &matchtest.Matcher{
		MatchFunc: func(_ context.Context, _ task.Resume, p task.Posting) (match.Evaluation, error) {
			if p.ID == "second" {
				<-release
			}
			return match.Evaluation{Score: 10}, nil
		},
	}

	done := make(chan struct{})
	go func() {
		match.NewEngine(match.EngineConfig{Writer: store}).MatchAll(context.Background(), m, task.Resume{}, postings, 2)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first result was not persisted before the batch finished")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	<-done

	if order[0] != "first" {
		t.Errorf("first persisted = %q, want %q", order[0], "first")
	}
}

func TestMatchAll_PersistFailureKeepsResult(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "p")
	store.UpdatePostingScoreFunc = func(string, int, task.Analysis) error {
		return errors.New("disk full")
	}

	results := match.NewEngine(match.EngineConfig{Writer: store}).MatchAll(
		context.Background(), matchtest.Scores(map[string]int{"p": 55}, nil), task.Resume{}, postings, 1)
	if !results[0].Success || results[0].Score != 55 {
		t.Errorf("result = %+v, want success 55", results[0])
	}
}

// ctxWriter fails writes made with a done context, like the SQL stores do.
type ctxWriter struct {
	*tasktest.Store
}

func (w ctxWriter) UpdatePostingScore(ctx context.Context, id string, score int, analysis task.Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.Store.UpdatePostingScore(ctx, id, score, analysis)
}

func TestMatchAll_PersistsAfterCancel(t *testing.T) {
	t.Parallel()

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "p1", "p2", "p3")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &matchtest.Matcher{
		MatchFunc: func(_ context.Context, _ task.Resume, p task.Posting) (match.Evaluation, error) {
			if p.ID == "p1" {
				cancel()
			}
			return match.Evaluation{Score: 70}, nil
		},
	}

	results := match.NewEngine(match.EngineConfig{Writer: ctxWriter{store}}).MatchAll(ctx, m, task.Resume{}, postings, 1)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		p, _ := store.Posting(id)
		if p.Analysis == nil {
			t.Errorf("posting %s has no analysis after cancellation", id)
		}
	}
	p2, _ := store.Posting("p2")
	if p2.Analysis != nil && p2.Analysis.Error == "" {
		t.Errorf("p2 analysis = %+v, want failure record", p2.Analysis)
	}
}

func TestMatchAll_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := tasktest.NewStore()
	postings := seedPostings(t, store, "p1")
	match.NewEngine(match.EngineConfig{Writer: store}).MatchAll(
		context.Background(), matchtest.Scores(map[string]int{"p1": 60}, nil), task.Resume{}, postings, 1)

	for _, span := range recorder.Ended() {
		if span.Name() == "match.MatchAll" {
			return
		}
	}
	t.Error("no match.MatchAll span recorded")
}
