// Package recurrence runs due recurring tasks. Each RunDueCycle call is
// self-contained: it reads the due set from the store, claims every task
// atomically before executing it and keeps no state between cycles.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/flemzord/jobagent/internal/metrics"
	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/task"
)

// Defaults for Config fields left at zero.
const (
	DefaultBatchSize  = 100
	DefaultStaleAfter = 6 * time.Hour
	DefaultLockTTL    = 10 * time.Minute

	lockKey = "jobagent:recurrence:cycle"
)

var tracer = otel.Tracer("github.com/flemzord/jobagent/internal/recurrence")

// Executor runs one execution of a claimed task.
type Executor interface {
	Execute(ctx context.Context, t *task.Task) (pipeline.Outcome, error)
}

// Locker guards a cycle across processes.
type Locker interface {
	// TryLock acquires key for ttl. ok is false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Config holds the Scheduler dependencies and limits.
type Config struct {
	Store    task.Store
	Executor Executor

	// Locker is optional; without it cycles are only guarded by row claims.
	Locker Locker

	// BatchSize caps the due tasks selected per cycle.
	BatchSize int
	// Concurrency caps executions in flight. Defaults to BatchSize.
	Concurrency int
	// StaleAfter returns tasks stuck in running, or never started after
	// creation, for longer than this to recurring at the start of a cycle.
	// Negative disables the release.
	StaleAfter time.Duration
	LockTTL    time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// CycleSummary reports one RunDueCycle call.
type CycleSummary struct {
	Due       int           `json:"due"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Conflicts int           `json:"conflicts"`
	Released  int           `json:"released"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Scheduler finds due recurring tasks and executes them.
type Scheduler struct {
	store    task.Store
	executor Executor
	locker   Locker

	batchSize   int
	concurrency int
	staleAfter  time.Duration
	lockTTL     time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, errors.New("recurrence: store is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("recurrence: executor is required")
	}

	s := &Scheduler{
		store:       cfg.Store,
		executor:    cfg.Executor,
		locker:      cfg.Locker,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		staleAfter:  cfg.StaleAfter,
		lockTTL:     cfg.LockTTL,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.concurrency <= 0 {
		s.concurrency = s.batchSize
	}
	if s.staleAfter == 0 {
		s.staleAfter = DefaultStaleAfter
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultLockTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RunDueCycle executes every due recurring task, at most BatchSize of them,
// with at most Concurrency in flight. Failures of individual tasks are
// counted in the summary; the returned error reports only a lock or query
// failure that prevented the cycle from running.
func (s *Scheduler) RunDueCycle(ctx context.Context) (CycleSummary, error) {
	ctx, span := tracer.Start(ctx, "recurrence.RunDueCycle")
	defer span.End()

	start := s.now()
	var sum CycleSummary

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			return sum, fmt.Errorf("recurrence: acquiring cycle lock: %w", err)
		}
		if !ok {
			sum.Skipped = true
			s.logger.Info("cycle skipped, lock held elsewhere")
			return sum, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("releasing cycle lock failed", "error", err)
			}
		}()
	}

	if s.staleAfter > 0 {
		n, err := s.store.ReleaseStaleClaims(ctx, start.Add(-s.staleAfter))
		if err != nil {
			s.logger.Warn("releasing stale claims failed", "error", err)
		} else if n > 0 {
			sum.Released = n
			s.logger.Warn("released stale claims", "count", n)
		}
	}

	due, err := s.store.QueryDueRecurringTasks(ctx, start, s.batchSize)
	if err != nil {
		return sum, fmt.Errorf("recurrence: querying due tasks: %w", err)
	}
	sum.Due = len(due)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(s.concurrency))
	)
	for _, t := range due {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cycle cancelled; the rest stays due for the next one.
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			r := s.runOne(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			switch r {
			case resultConflict:
				sum.Conflicts++
			case resultSucceeded:
				sum.Attempted++
				sum.Succeeded++
			case resultFailed:
				sum.Attempted++
				sum.Failed++
			}
		}()
	}
	wg.Wait()

	sum.Duration = s.now().Sub(start)
	span.SetAttributes(
		attribute.Int("cycle.due", sum.Due),
		attribute.Int("cycle.succeeded", sum.Succeeded),
		attribute.Int("cycle.failed", sum.Failed),
		attribute.Int("cycle.conflicts", sum.Conflicts),
	)
	s.metrics.ObserveCycle(sum.Succeeded, sum.Failed, sum.Conflicts)
	s.logger.Info("cycle finished",
		"due", sum.Due,
		"attempted", sum.Attempted,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"conflicts", sum.Conflicts,
		"released", sum.Released,
		"duration", sum.Duration,
	)
	return sum, nil
}

type runResult int

const (
	resultConflict runResult = iota
	resultSucceeded
	resultFailed
)

func (s *Scheduler) runOne(ctx context.Context, t *task.Task) (r runResult) {
	claimed, err := s.store.ClaimTask(ctx, t.ID, s.now())
	if errors.Is(err, task.ErrAlreadyClaimed) {
		s.logger.Debug("task already claimed", "task_id", t.ID)
		return resultConflict
	}
	if err != nil {
		s.logger.Error("claiming task failed", "task_id", t.ID, "error", err)
		return resultFailed
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("task execution panicked", "task_id", claimed.ID, "panic", p)
			s.rearm(ctx, claimed, fmt.Errorf("execution panicked: %v", p))
			r = resultFailed
		}
	}()

	out, err := s.executor.Execute(ctx, claimed)
	if err != nil {
		s.logger.Error("task execution failed", "task_id", claimed.ID, "error", err)
		s.rearm(ctx, claimed, err)
		return resultFailed
	}
	if out.Err != nil {
		return resultFailed
	}
	return resultSucceeded
}

// rearm schedules the next run of a task whose execution could not record
// its own outcome, so it is not left claimed until the stale release.
func (s *Scheduler) rearm(ctx context.Context, t *task.Task, cause error) {
	if t.Status == task.StatusRunning {
		t.Status = task.StatusRecurring
		t.Error = "Last execution error: " + cause.Error()
		t.Advance(s.now())
	}
	if err := s.store.UpdateTask(context.WithoutCancel(ctx), t); err != nil {
		s.logger.Error("re-arming task failed", "task_id", t.ID, "error", err)
	}
}
