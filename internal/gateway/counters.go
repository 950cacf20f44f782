package gateway

import (
	"sync/atomic"
	"time"
)

// Counters tracks gateway-level activity for /status using atomic operations.
type Counters struct {
	submitted       atomic.Int64
	rejected        atomic.Int64
	deactivated     atomic.Int64
	cyclesTriggered atomic.Int64
	lastCycleUnix   atomic.Int64
}

// RecordSubmission records an accepted task submission.
func (c *Counters) RecordSubmission() {
	c.submitted.Add(1)
}

// RecordRejection records a submission refused by validation or rate limiting.
func (c *Counters) RecordRejection() {
	c.rejected.Add(1)
}

// RecordDeactivation records a successful deactivation.
func (c *Counters) RecordDeactivation() {
	c.deactivated.Add(1)
}

// RecordCycle records a cycle triggered through the gateway.
func (c *Counters) RecordCycle(at time.Time) {
	c.cyclesTriggered.Add(1)
	c.lastCycleUnix.Store(at.Unix())
}

// Snapshot returns a point-in-time view of the counters.
func (c *Counters) Snapshot() CountersSnapshot {
	snap := CountersSnapshot{
		Submitted:       c.submitted.Load(),
		Rejected:        c.rejected.Load(),
		Deactivated:     c.deactivated.Load(),
		CyclesTriggered: c.cyclesTriggered.Load(),
	}
	if ts := c.lastCycleUnix.Load(); ts > 0 {
		last := time.Unix(ts, 0).UTC()
		snap.LastCycleAt = &last
	}
	return snap
}

// CountersSnapshot is a serializable view of Counters.
type CountersSnapshot struct {
	Submitted       int64      `json:"tasks_submitted"`
	Rejected        int64      `json:"tasks_rejected"`
	Deactivated     int64      `json:"tasks_deactivated"`
	CyclesTriggered int64      `json:"cycles_triggered"`
	LastCycleAt     *time.Time `json:"last_cycle_at,omitempty"`
}
