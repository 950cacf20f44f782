package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/security/securitytest"
	"github.com/flemzord/jobagent/internal/task"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeTasks struct {
	mu        sync.Mutex
	submitted []pipeline.Request
	submitErr error
	tasks     map[string]*task.Task
}

func (f *fakeTasks) Submit(_ context.Context, req pipeline.Request) (*task.Task, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	t := &task.Task{ID: "task-1", OwnerID: req.OwnerID, Status: task.StatusPending, IsActive: true, Recurrence: req.Recurrence}
	if f.tasks == nil {
		f.tasks = make(map[string]*task.Task)
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

type fakeCycles struct {
	summary recurrence.CycleSummary
	err     error
}

func (f *fakeCycles) RunDueCycle(context.Context) (recurrence.CycleSummary, error) {
	return f.summary, f.err
}

func newTestServer(t *testing.T, tasks *fakeTasks, cycles CycleRunner) (*Server, func() []security.AuditEvent) {
	t.Helper()
	audit, events := securitytest.NewTestAuditLogger()
	s, err := New(Config{
		Tasks:  tasks,
		Cycles: cycles,
		Audit:  audit,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, events
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content %T", c)
		return ""
	}
}

func TestNew_RequiresTasks(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without a task service")
	}
}

func TestSubmitTool(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	s, events := newTestServer(t, tasks, nil)

	res, err := s.handleSubmit(context.Background(), call("submit_task", map[string]any{
		"owner_id":       "u1",
		"resume_id":      "r1",
		"job_titles":     "Go Developer, SRE",
		"job_required":   float64(3),
		"interval_hours": float64(6),
	}))
	if err != nil {
		t.Fatalf("handleSubmit: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if out["task_id"] != "task-1" || out["recurring"] != true {
		t.Errorf("result = %v", out)
	}

	if len(tasks.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(tasks.submitted))
	}
	req := tasks.submitted[0]
	if len(req.SearchTerms) != 2 || req.TargetCount != 3 {
		t.Errorf("request = %+v", req)
	}
	if req.Recurrence == nil || req.Recurrence.IntervalHours != 6 {
		t.Errorf("recurrence = %+v", req.Recurrence)
	}

	evs := events()
	if len(evs) != 1 || evs[0].Type != security.EventTaskSubmit || evs[0].Surface != "mcp" {
		t.Errorf("audit events = %+v", evs)
	}
}

func TestSubmitTool_MissingArgument(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	s, _ := newTestServer(t, tasks, nil)

	res, err := s.handleSubmit(context.Background(), call("submit_task", map[string]any{"owner_id": "u1"}))
	if err != nil {
		t.Fatalf("handleSubmit: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error")
	}
	if len(tasks.submitted) != 0 {
		t.Error("incomplete request reached the pipeline")
	}
}

func TestSubmitTool_ValidationMessages(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{submitErr: errors.Join(
		fmt.Errorf("%w: job_required must be between 1 and 50, got 99", task.ErrValidation),
		fmt.Errorf("%w: unknown evaluator", task.ErrValidation),
	)}
	s, _ := newTestServer(t, tasks, nil)

	res, _ := s.handleSubmit(context.Background(), call("submit_task", map[string]any{
		"owner_id": "u1", "resume_id": "r1", "job_titles": "Go",
	}))
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	text := resultText(t, res)
	if !strings.Contains(text, "job_required must be between") || !strings.Contains(text, "unknown evaluator") {
		t.Errorf("text = %q", text)
	}
}

func TestSubmitTool_InternalErrorHidden(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeTasks{submitErr: errors.New("disk full")}, nil)
	res, _ := s.handleSubmit(context.Background(), call("submit_task", map[string]any{
		"owner_id": "u1", "resume_id": "r1", "job_titles": "Go",
	}))
	if !res.IsError || strings.Contains(resultText(t, res), "disk full") {
		t.Errorf("result = %+v", res)
	}
}

func TestDeactivateTool(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	s, _ := newTestServer(t, tasks, nil)
	_, _ = s.handleSubmit(context.Background(), call("submit_task", map[string]any{
		"owner_id": "u1", "resume_id": "r1", "job_titles": "Go", "interval_hours": float64(6),
	}))

	res, err := s.handleDeactivate(context.Background(), call("deactivate_task", map[string]any{
		"owner_id": "u1", "task_id": "task-1",
	}))
	if err != nil || res.IsError {
		t.Fatalf("deactivate: %v %+v", err, res)
	}
	if !strings.Contains(resultText(t, res), `"is_active": false`) {
		t.Errorf("text = %s", resultText(t, res))
	}

	res, _ = s.handleDeactivate(context.Background(), call("deactivate_task", map[string]any{
		"owner_id": "u2", "task_id": "task-1",
	}))
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Errorf("other owner result = %s", resultText(t, res))
	}
}

func TestRunDueCycleTool(t *testing.T) {
	t.Parallel()

	cycles := &fakeCycles{summary: recurrence.CycleSummary{Due: 2, Attempted: 2, Succeeded: 1, Failed: 1}}
	s, events := newTestServer(t, &fakeTasks{}, cycles)

	res, err := s.handleRunCycle(context.Background(), call("run_due_cycle", nil))
	if err != nil || res.IsError {
		t.Fatalf("run cycle: %v %+v", err, res)
	}
	var summary recurrence.CycleSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if evs := events(); len(evs) != 1 || evs[0].Type != security.EventCycleTrigger {
		t.Errorf("audit events = %+v", evs)
	}

	cycles.err = errors.New("store down")
	res, _ = s.handleRunCycle(context.Background(), call("run_due_cycle", nil))
	if !res.IsError {
		t.Error("failing cycle should be a tool error")
	}
}
