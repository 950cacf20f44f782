package task

import (
	"fmt"
	"time"
)

// transitions lists the allowed status changes. Recurring tasks move from
// recurring to completed during bookkeeping when their budget is exhausted.
var transitions = map[Status][]Status{
	StatusPending:   {StatusRunning},
	StatusRecurring: {StatusRunning, StatusCompleted},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusRecurring},
}

// CanTransitionTo reports whether a task in status s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusRecurring:
		return true
	}
	return false
}

// Start moves the task to running and records the start time.
func (t *Task) Start(now time.Time) error {
	if !t.Status.CanTransitionTo(StatusRunning) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusRunning)
	}
	t.Status = StatusRunning
	t.StartedAt = &now
	t.CompletedAt = nil
	return nil
}

// Finish records the outcome of an execution that started with Start.
// An active recurring task returns to recurring whether or not the execution
// failed, and is re-armed by Advance; other tasks become completed or failed.
func (t *Task) Finish(now time.Time, res *Result, execErr error) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: finish from %s", ErrInvalidTransition, t.Status)
	}
	t.Result = res

	if t.IsRecurring() && t.IsActive {
		t.Status = StatusRecurring
		t.Error = ""
		if execErr != nil {
			t.Error = "Last execution error: " + execErr.Error()
		}
		t.Advance(now)
		return nil
	}

	t.CompletedAt = &now
	if execErr != nil {
		t.Status = StatusFailed
		t.Error = execErr.Error()
		return nil
	}
	t.Status = StatusCompleted
	t.Error = ""
	return nil
}

// Advance applies recurrence bookkeeping after an execution: the counter is
// incremented, the next run is computed with NextRun, and a task that has
// exhausted MaxExecutions is retired.
func (t *Task) Advance(now time.Time) {
	if t.Recurrence == nil {
		return
	}
	t.ExecutionCount++
	last := now.UTC()
	t.LastExecutionAt = &last

	if t.Exhausted() {
		t.IsActive = false
		t.Status = StatusCompleted
		t.NextExecutionAt = nil
		t.CompletedAt = &last
		return
	}
	if !t.IsActive {
		t.NextExecutionAt = nil
		return
	}
	next := NextRun(last, t.Recurrence.IntervalHours)
	t.NextExecutionAt = &next
}

// Deactivate stops a recurring task from being scheduled. Its status is kept.
func (t *Task) Deactivate() {
	t.IsActive = false
	t.NextExecutionAt = nil
}
