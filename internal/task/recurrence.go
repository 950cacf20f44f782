package task

import (
	"fmt"
	"time"
)

// Interval bounds for recurring tasks, in hours.
const (
	MinIntervalHours = 1
	MaxIntervalHours = 168
)

// NextRun returns the next scheduled time for a task last executed at last
// with an interval of hours: last + hours, truncated down to the start of
// that hour in UTC. The effective gap therefore drifts toward round hours
// rather than staying a fixed duration.
func NextRun(last time.Time, hours int) time.Time {
	return last.UTC().Add(time.Duration(hours) * time.Hour).Truncate(time.Hour)
}

// Validate checks that the recurrence is schedulable.
func (r Recurrence) Validate() error {
	if r.IntervalHours < MinIntervalHours || r.IntervalHours > MaxIntervalHours {
		return fmt.Errorf("%w: recurrence interval must be between %d and %d hours, got %d",
			ErrValidation, MinIntervalHours, MaxIntervalHours, r.IntervalHours)
	}
	if r.MaxExecutions < 0 {
		return fmt.Errorf("%w: max executions must not be negative, got %d", ErrValidation, r.MaxExecutions)
	}
	return nil
}
