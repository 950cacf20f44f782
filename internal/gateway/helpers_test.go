package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/task"
)

// fakeTasks is a TaskService double. Submissions without an owner fail
// validation the way the orchestrator does.
type fakeTasks struct {
	mu        sync.Mutex
	submitted []pipeline.Request
	tasks     map[string]*task.Task
	submitErr error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]*task.Task)}
}

func (f *fakeTasks) Submit(_ context.Context, req pipeline.Request) (*task.Task, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if req.OwnerID == "" {
		return nil, errors.Join(
			fmtValidation("owner_id is required"),
			fmtValidation("at least one job title is required"),
		)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	t := &task.Task{ID: "task-1", OwnerID: req.OwnerID, Status: task.StatusPending, IsActive: true}
	if req.Recurrence != nil {
		r := *req.Recurrence
		t.Recurrence = &r
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		t.NextExecutionAt = &now
	}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTasks) Deactivate(_ context.Context, ownerID, id string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, task.ErrNotFound
	}
	t.Deactivate()
	return t, nil
}

func fmtValidation(msg string) error {
	return fmt.Errorf("%w: %s", task.ErrValidation, msg)
}

type fakeCycles struct {
	summary recurrence.CycleSummary
	err     error
	calls   atomic.Int32
}

func (f *fakeCycles) RunDueCycle(context.Context) (recurrence.CycleSummary, error) {
	f.calls.Add(1)
	return f.summary, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeEvaluators []string

func (e fakeEvaluators) Keys() []string { return e }
