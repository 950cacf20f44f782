// Package task defines the job-search task model: tasks and their state
// machine, discovered postings, resumes, match results and the persistence
// ports the pipeline and scheduler consume.
package task

import (
	"time"
)

// Status is the lifecycle state of a Task.
type Status string

// Task statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRecurring Status = "recurring"
)

// Instructions are the search parameters of a task.
type Instructions struct {
	SearchTerms []string `json:"job_titles"`
	Location    string   `json:"location"`
	TargetCount int      `json:"job_required"`
	ResumeID    string   `json:"resume_id"`
	Evaluator   string   `json:"ai_model"`
}

// Recurrence describes how often a recurring task runs.
type Recurrence struct {
	// IntervalHours is the gap between runs, in [MinIntervalHours, MaxIntervalHours].
	IntervalHours int `json:"interval_hours"`

	// MaxExecutions caps the number of executions. Zero means unbounded.
	MaxExecutions int `json:"max_executions,omitempty"`
}

// Task is one discovery and matching unit of work, either single-shot or
// one cycle of a recurring job.
type Task struct {
	ID           string
	OwnerID      string
	Instructions Instructions
	Status       Status

	// Recurrence is nil for single-shot tasks.
	Recurrence      *Recurrence
	ExecutionCount  int
	LastExecutionAt *time.Time
	NextExecutionAt *time.Time
	IsActive        bool

	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *Result
	Error       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring reports whether the task carries a recurrence.
func (t *Task) IsRecurring() bool {
	return t.Recurrence != nil
}

// Exhausted reports whether a recurring task has used its execution budget.
func (t *Task) Exhausted() bool {
	return t.Recurrence != nil &&
		t.Recurrence.MaxExecutions > 0 &&
		t.ExecutionCount >= t.Recurrence.MaxExecutions
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Instructions.SearchTerms = append([]string(nil), t.Instructions.SearchTerms...)
	if t.Recurrence != nil {
		r := *t.Recurrence
		cp.Recurrence = &r
	}
	cp.LastExecutionAt = cloneTime(t.LastExecutionAt)
	cp.NextExecutionAt = cloneTime(t.NextExecutionAt)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	if t.Result != nil {
		r := *t.Result
		r.JobTitles = append([]string(nil), t.Result.JobTitles...)
		cp.Result = &r
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Result is the aggregate summary stored on a task after an execution.
type Result struct {
	JobsFound             int          `json:"jobs_found"`
	JobsAnalyzed          int          `json:"jobs_analyzed"`
	SuccessfulAnalyses    int          `json:"successful_analyses"`
	FailedAnalyses        int          `json:"failed_analyses"`
	AverageScore          float64      `json:"average_score"`
	MaxScore              int          `json:"max_score"`
	MinScore              int          `json:"min_score"`
	Distribution          Distribution `json:"score_distribution"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
	JobTitles             []string     `json:"job_titles,omitempty"`
	Location              string       `json:"location,omitempty"`
	ResumeID              string       `json:"resume_id,omitempty"`
	Evaluator             string       `json:"ai_model,omitempty"`
	Error                 string       `json:"error,omitempty"`
}

// Distribution buckets successful scores.
type Distribution struct {
	Excellent int `json:"excellent"` // >= 90
	Good      int `json:"good"`      // 70-89
	Fair      int `json:"fair"`      // 50-69
	Poor      int `json:"poor"`      // < 50
}

// Add places score in its bucket.
func (d *Distribution) Add(score int) {
	switch {
	case score >= 90:
		d.Excellent++
	case score >= 70:
		d.Good++
	case score >= 50:
		d.Fair++
	default:
		d.Poor++
	}
}
