// Package cron runs periodic jobs on 5-field cron expressions. The service
// uses it to trigger the recurrence scheduler's due cycle.
package cron

import "context"

// Job is a unit of periodic work.
type Job interface {
	// Name identifies the job in logs. It must be unique per Scheduler.
	Name() string

	// Schedule is a 5-field cron expression such as "*/5 * * * *".
	Schedule() string

	// Run performs one tick. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}
