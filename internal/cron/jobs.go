package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/jobagent/internal/recurrence"
)

// DefaultCycleSchedule triggers the due cycle every five minutes.
const DefaultCycleSchedule = "*/5 * * * *"

// CycleRunner runs one recurrence cycle.
type CycleRunner interface {
	RunDueCycle(ctx context.Context) (recurrence.CycleSummary, error)
}

// DueCycleJob triggers the recurrence scheduler on a cron schedule.
type DueCycleJob struct {
	Runner       CycleRunner
	ScheduleExpr string        // empty = DefaultCycleSchedule
	Timeout      time.Duration // zero = no deadline beyond the scheduler's own
	Logger       *slog.Logger
}

// Compile-time interface check.
var _ Job = (*DueCycleJob)(nil)

// Name implements Job.
func (j *DueCycleJob) Name() string { return "due_cycle" }

// Schedule implements Job.
func (j *DueCycleJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultCycleSchedule
}

// Run executes one due cycle.
func (j *DueCycleJob) Run(ctx context.Context) error {
	if j.Runner == nil {
		return errors.New("cron: due cycle job has no runner")
	}
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	sum, err := j.Runner.RunDueCycle(ctx)
	if err != nil {
		return err
	}
	if sum.Due > 0 && j.Logger != nil {
		j.Logger.Info("cron: due cycle ran",
			"succeeded", sum.Succeeded,
			"failed", sum.Failed,
			"conflicts", sum.Conflicts,
		)
	}
	return nil
}
