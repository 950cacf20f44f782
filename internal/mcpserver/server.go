// Package mcpserver exposes task submission, deactivation and due-cycle
// runs as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TaskService is the part of the pipeline orchestrator the tools drive.
type TaskService interface {
	Submit(ctx context.Context, req pipeline.Request) (*task.Task, error)
	Deactivate(ctx context.Context, ownerID, id string) (*task.Task, error)
}

// CycleRunner runs one due cycle.
type CycleRunner interface {
	RunDueCycle(ctx context.Context) (recurrence.CycleSummary, error)
}

// Config holds the Server dependencies.
type Config struct {
	Name    string
	Version string
	Tasks   TaskService
	Cycles  CycleRunner
	Audit   *security.AuditLogger
	Logger  *slog.Logger
}

// Server wraps an MCP server with the jobagent tools registered.
type Server struct {
	tasks  TaskService
	cycles CycleRunner
	audit  *security.AuditLogger
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New creates a Server. Tasks is required; run_due_cycle is only
// registered when Cycles is set.
func New(cfg Config) (*Server, error) {
	if cfg.Tasks == nil {
		return nil, errors.New("mcpserver: task service is required")
	}
	if cfg.Name == "" {
		cfg.Name = "jobagent"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tasks:  cfg.Tasks,
		cycles: cfg.Cycles,
		audit:  cfg.Audit,
		logger: logger.With("component", "mcp"),
		mcp:    server.NewMCPServer(cfg.Name, cfg.Version, server.WithToolCapabilities(true)),
	}
	s.registerTools()
	return s, nil
}

// Serve speaks MCP over in/out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	submit := mcp.NewTool("submit_task",
		mcp.WithDescription("Create a job search task and start its first execution. "+
			"Set interval_hours to make it recurring."),
		mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owner of the task and resume")),
		mcp.WithString("resume_id", mcp.Required(), mcp.Description("Resume to match postings against")),
		mcp.WithString("job_titles", mcp.Required(), mcp.Description("Comma-separated search terms")),
		mcp.WithString("location", mcp.Description("Search location (default: "+pipeline.DefaultLocation+")")),
		mcp.WithNumber("job_required", mcp.Description("Number of new postings to find, 1-50 (default: 5)")),
		mcp.WithString("ai_model", mcp.Description("Evaluator key, e.g. deepseek or google")),
		mcp.WithNumber("interval_hours", mcp.Description("Recurrence interval in hours, 1-168")),
		mcp.WithNumber("max_executions", mcp.Description("Stop after this many executions (0: unbounded)")),
	)
	s.mcp.AddTool(submit, s.handleSubmit)

	deactivate := mcp.NewTool("deactivate_task",
		mcp.WithDescription("Stop a recurring task from being scheduled again"),
		mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owner of the task")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to deactivate")),
	)
	s.mcp.AddTool(deactivate, s.handleDeactivate)

	if s.cycles != nil {
		cycle := mcp.NewTool("run_due_cycle",
			mcp.WithDescription("Execute every recurring task that is due now and report the cycle summary"),
		)
		s.mcp.AddTool(cycle, s.handleRunCycle)
	}
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resume, err := request.RequireString("resume_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	titles, err := request.RequireString("job_titles")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pipeline.Request{
		OwnerID:     owner,
		ResumeID:    resume,
		SearchTerms: strings.Split(titles, ","),
		Location:    request.GetString("location", ""),
		TargetCount: request.GetInt("job_required", 0),
		Evaluator:   request.GetString("ai_model", ""),
	}
	if hours := request.GetInt("interval_hours", 0); hours != 0 {
		req.Recurrence = &task.Recurrence{
			IntervalHours: hours,
			MaxExecutions: request.GetInt("max_executions", 0),
		}
	}

	t, err := s.tasks.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, task.ErrValidation) {
			return mcp.NewToolResultError("validation failed:\n- " +
				strings.Join(pipeline.ValidationMessages(err), "\n- ")), nil
		}
		s.logger.Error("submit_task failed", "error", err)
		return mcp.NewToolResultError("internal error"), nil
	}

	s.audit.Log(security.AuditEvent{Type: security.EventTaskSubmit, Surface: "mcp", OwnerID: t.OwnerID, TaskID: t.ID})
	return jsonResult(map[string]any{
		"task_id":           t.ID,
		"status":            t.Status,
		"recurring":         t.IsRecurring(),
		"next_execution_at": t.NextExecutionAt,
	})
}

func (s *Server) handleDeactivate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t, err := s.tasks.Deactivate(ctx, owner, id)
	switch {
	case errors.Is(err, task.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	case errors.Is(err, task.ErrValidation):
		return mcp.NewToolResultError(strings.Join(pipeline.ValidationMessages(err), "; ")), nil
	case err != nil:
		s.logger.Error("deactivate_task failed", "task_id", id, "error", err)
		return mcp.NewToolResultError("internal error"), nil
	}

	s.audit.Log(security.AuditEvent{Type: security.EventTaskDeactivate, Surface: "mcp", OwnerID: owner, TaskID: id})
	return jsonResult(map[string]any{"task_id": t.ID, "status": t.Status, "is_active": t.IsActive})
}

func (s *Server) handleRunCycle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.audit.Log(security.AuditEvent{Type: security.EventCycleTrigger, Surface: "mcp"})
	summary, err := s.cycles.RunDueCycle(ctx)
	if err != nil {
		s.logger.Error("run_due_cycle failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("cycle failed: %v", err)), nil
	}
	return jsonResult(summary)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
