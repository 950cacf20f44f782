package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
	"github.com/go-chi/chi/v5"
)

type submitResponse struct {
	TaskID          string      `json:"task_id"`
	Status          task.Status `json:"status"`
	Recurring       bool        `json:"recurring"`
	NextExecutionAt *time.Time  `json:"next_execution_at,omitempty"`
}

type deactivateRequest struct {
	OwnerID string `json:"owner_id"`
}

type deactivateResponse struct {
	TaskID   string      `json:"task_id"`
	Status   task.Status `json:"status"`
	IsActive bool        `json:"is_active"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// handleSubmitTask validates and creates a task, then returns 202 while the
// first execution runs in the background.
func (g *Gateway) handleSubmitTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tasks == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "pipeline not available"})
			return
		}

		var req pipeline.Request
		if !g.decodeBody(w, r, &req) {
			g.counters.RecordRejection()
			return
		}

		if err := g.submits.Allow(req.OwnerID); err != nil {
			g.counters.RecordRejection()
			g.audit.Log(security.AuditEvent{
				Type: security.EventRateLimit, Surface: "http",
				OwnerID: req.OwnerID, Remote: r.RemoteAddr, Detail: "task submissions",
			})
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
			return
		}

		t, err := g.tasks.Submit(r.Context(), req)
		if err != nil {
			if errors.Is(err, task.ErrValidation) {
				g.counters.RecordRejection()
			}
			g.writeError(w, err)
			return
		}

		g.counters.RecordSubmission()
		g.audit.Log(security.AuditEvent{
			Type: security.EventTaskSubmit, Surface: "http",
			OwnerID: t.OwnerID, TaskID: t.ID, Remote: r.RemoteAddr,
		})
		writeJSON(w, http.StatusAccepted, submitResponse{
			TaskID:          t.ID,
			Status:          t.Status,
			Recurring:       t.IsRecurring(),
			NextExecutionAt: t.NextExecutionAt,
		})
	}
}

// handleDeactivateTask stops a recurring task from being scheduled again.
func (g *Gateway) handleDeactivateTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tasks == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "pipeline not available"})
			return
		}

		id := chi.URLParam(r, "id")
		var req deactivateRequest
		if !g.decodeBody(w, r, &req) {
			return
		}
		if req.OwnerID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "owner_id is required"})
			return
		}

		t, err := g.tasks.Deactivate(r.Context(), req.OwnerID, id)
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.counters.RecordDeactivation()
		g.audit.Log(security.AuditEvent{
			Type: security.EventTaskDeactivate, Surface: "http",
			OwnerID: req.OwnerID, TaskID: id, Remote: r.RemoteAddr,
		})
		writeJSON(w, http.StatusOK, deactivateResponse{TaskID: t.ID, Status: t.Status, IsActive: t.IsActive})
	}
}

// handleRunCycle runs one due cycle inline and returns its summary. The
// cycle is not cancelled if the client disconnects.
func (g *Gateway) handleRunCycle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.cycles == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "scheduler not available"})
			return
		}

		g.audit.Log(security.AuditEvent{Type: security.EventCycleTrigger, Surface: "http", Remote: r.RemoteAddr})
		summary, err := g.cycles.RunDueCycle(context.WithoutCancel(r.Context()))
		g.counters.RecordCycle(time.Now())
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// decodeBody reads a size- and depth-checked JSON body into v. An empty body
// leaves v untouched. It writes the error response and returns false on failure.
func (g *Gateway) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := security.ReadBody(r.Body, g.config.MaxBodySize)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, security.ErrBodyTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// writeError maps domain errors to HTTP status codes.
func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation failed",
			Details: pipeline.ValidationMessages(err),
		})
	case errors.Is(err, task.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "task not found"})
	default:
		g.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
