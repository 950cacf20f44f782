// Package pipeline drives a task through discovery and matching. The
// Orchestrator validates and creates tasks, runs one execution at a time per
// task row and records the outcome together with the recurrence bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flemzord/jobagent/internal/discovery"
	"github.com/flemzord/jobagent/internal/match"
	"github.com/flemzord/jobagent/internal/metrics"
	"github.com/flemzord/jobagent/internal/task"
)

var tracer = otel.Tracer("github.com/flemzord/jobagent/internal/pipeline")

// Discoverer finds and stores new postings for one execution.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) ([]*task.Posting, error)
}

// Evaluators resolves the matcher for an evaluator key.
type Evaluators interface {
	Get(key string) (match.Matcher, error)
}

// BatchMatcher scores a batch of postings.
type BatchMatcher interface {
	MatchAll(ctx context.Context, m match.Matcher, resume task.Resume, postings []*task.Posting, limit int) []task.MatchResult
}

// Config holds the Orchestrator dependencies and tuning.
type Config struct {
	Store      task.Store
	Resumes    task.ResumeStore
	Discoverer Discoverer
	Evaluators Evaluators
	Engine     BatchMatcher

	DefaultEvaluator string
	MatchConcurrency int
	DiscoverTimeout  time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

// Outcome reports one execution. Err is the execution error recorded on the
// task, if any; it never signals a persistence failure.
type Outcome struct {
	TaskID string
	Status task.Status
	Result *task.Result
	Err    error
}

// Orchestrator runs the discovery and matching pipeline for tasks.
type Orchestrator struct {
	store      task.Store
	resumes    task.ResumeStore
	discoverer Discoverer
	evaluators Evaluators
	engine     BatchMatcher

	defaultEvaluator string
	concurrency      int
	discoverTimeout  time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	var errs []error
	if cfg.Store == nil {
		errs = append(errs, errors.New("pipeline: store is required"))
	}
	if cfg.Resumes == nil {
		errs = append(errs, errors.New("pipeline: resume store is required"))
	}
	if cfg.Discoverer == nil {
		errs = append(errs, errors.New("pipeline: discoverer is required"))
	}
	if cfg.Evaluators == nil {
		errs = append(errs, errors.New("pipeline: evaluators are required"))
	}
	if cfg.Engine == nil {
		errs = append(errs, errors.New("pipeline: match engine is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:            cfg.Store,
		resumes:          cfg.Resumes,
		discoverer:       cfg.Discoverer,
		evaluators:       cfg.Evaluators,
		engine:           cfg.Engine,
		defaultEvaluator: cfg.DefaultEvaluator,
		concurrency:      cfg.MatchConcurrency,
		discoverTimeout:  cfg.DiscoverTimeout,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		now:              cfg.Now,
		newID:            cfg.NewID,
	}
	if o.concurrency <= 0 {
		o.concurrency = match.DefaultConcurrency
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.NewString() }
	}
	return o, nil
}

// Create validates req and persists a new task. Every problem found is
// reported in one joined error wrapping task.ErrValidation. A recurring task
// is created pending and due immediately, so its first execution is the
// caller's Execute.
func (o *Orchestrator) Create(ctx context.Context, req Request) (*task.Task, error) {
	req.applyDefaults(o.defaultEvaluator)

	errs := []error{req.validate()}
	if req.Evaluator != "" {
		if _, err := o.evaluators.Get(req.Evaluator); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", task.ErrValidation, err))
		}
	}
	if req.OwnerID != "" && req.ResumeID != "" {
		if _, err := o.resumes.GetResume(ctx, req.OwnerID, req.ResumeID); err != nil {
			if !errors.Is(err, task.ErrResumeNotFound) {
				return nil, fmt.Errorf("pipeline: resolving resume: %w", err)
			}
			errs = append(errs, fmt.Errorf("%w: %w", task.ErrValidation, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	now := o.now().UTC()
	t := &task.Task{
		ID:      o.newID(),
		OwnerID: req.OwnerID,
		Instructions: task.Instructions{
			SearchTerms: req.SearchTerms,
			Location:    req.Location,
			TargetCount: req.TargetCount,
			ResumeID:    req.ResumeID,
			Evaluator:   req.Evaluator,
		},
		Status:    task.StatusPending,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Recurrence != nil {
		r := *req.Recurrence
		t.Recurrence = &r
		t.NextExecutionAt = &now
	}

	if err := o.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("pipeline: creating task: %w", err)
	}
	o.logger.Info("task created",
		"task_id", t.ID,
		"owner_id", t.OwnerID,
		"recurring", t.IsRecurring(),
		"evaluator", t.Instructions.Evaluator,
	)
	return t, nil
}

// Execute runs one execution of t: discovery, then matching over the new
// postings, then a single write of the outcome and, for recurring tasks, the
// next schedule. A task already claimed by the scheduler (running) is not
// started again. The returned error is non-nil only when the task could not
// be started or its outcome could not be persisted.
func (o *Orchestrator) Execute(ctx context.Context, t *task.Task) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", t.ID),
		attribute.Bool("task.recurring", t.IsRecurring()),
	)

	begin := o.now()
	if t.Status != task.StatusRunning {
		if err := t.Start(begin); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: starting task %s: %w", t.ID, err)
		}
		if err := o.store.UpdateTask(ctx, t); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: starting task %s: %w", t.ID, err)
		}
	}
	o.logger.Info("task execution started", "task_id", t.ID, "execution", t.ExecutionCount+1)

	res, execErr := o.run(ctx, t)
	end := o.now()
	res.ProcessingTimeSeconds = end.Sub(begin).Seconds()

	if err := t.Finish(end, res, execErr); err != nil {
		return Outcome{}, fmt.Errorf("pipeline: finishing task %s: %w", t.ID, err)
	}
	// Finalizing must survive a cancelled execution context.
	if err := o.store.UpdateTask(context.WithoutCancel(ctx), t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize failed")
		return Outcome{TaskID: t.ID, Status: t.Status, Result: res, Err: execErr},
			fmt.Errorf("pipeline: finalizing task %s: %w", t.ID, err)
	}

	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	}
	span.SetAttributes(
		attribute.String("task.status", string(t.Status)),
		attribute.Int("task.jobs_found", res.JobsFound),
	)
	o.metrics.ObserveExecution(string(t.Status), end.Sub(begin))

	logArgs := []any{
		"task_id", t.ID,
		"status", t.Status,
		"jobs_found", res.JobsFound,
		"jobs_analyzed", res.JobsAnalyzed,
		"average_score", res.AverageScore,
		"duration", end.Sub(begin),
	}
	if t.NextExecutionAt != nil {
		logArgs = append(logArgs, "next_execution_at", t.NextExecutionAt.Format(time.RFC3339))
	}
	if execErr != nil {
		o.logger.Warn("task execution failed", append(logArgs, "error", execErr)...)
	} else {
		o.logger.Info("task execution finished", logArgs...)
	}

	return Outcome{TaskID: t.ID, Status: t.Status, Result: res, Err: execErr}, nil
}

func (o *Orchestrator) run(ctx context.Context, t *task.Task) (*task.Result, error) {
	in := t.Instructions
	res := &task.Result{
		JobTitles: distinctTitles(in.SearchTerms),
		Location:  in.Location,
		ResumeID:  in.ResumeID,
		Evaluator: in.Evaluator,
	}
	fail := func(err error) (*task.Result, error) {
		res.Error = err.Error()
		return res, err
	}

	matcher, err := o.evaluators.Get(in.Evaluator)
	if err != nil {
		return fail(err)
	}
	resume, err := o.resumes.GetResume(ctx, t.OwnerID, in.ResumeID)
	if err != nil {
		return fail(fmt.Errorf("resolving resume: %w", err))
	}

	dctx := ctx
	if o.discoverTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, o.discoverTimeout)
		defer cancel()
	}
	postings, err := o.discoverer.Discover(dctx, discovery.Request{
		OwnerID:     t.OwnerID,
		TaskID:      t.ID,
		SearchTerms: in.SearchTerms,
		Location:    in.Location,
		TargetCount: in.TargetCount,
	})
	res.JobsFound = len(postings)
	if err != nil {
		return fail(err)
	}
	if len(postings) == 0 {
		return res, nil
	}

	results := o.engine.MatchAll(ctx, matcher, *resume, postings, o.concurrency)
	Aggregate(res, results)
	return res, nil
}

// Submit creates a task and starts its first execution in the background.
// Validation errors are returned synchronously. Use Wait to drain background
// executions on shutdown.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*task.Task, error) {
	t, err := o.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	run := t.Clone()
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if _, err := o.Execute(bg, run); err != nil {
			o.logger.Error("background execution failed", "task_id", run.ID, "error", err)
		}
	}()
	return t, nil
}

// Wait blocks until every execution started by Submit has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Deactivate stops a recurring task owned by ownerID from being scheduled
// again. Its status and history are kept.
func (o *Orchestrator) Deactivate(ctx context.Context, ownerID, id string) (*task.Task, error) {
	t, err := o.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline: deactivating task %s: %w", id, err)
	}
	if t.OwnerID != ownerID {
		return nil, fmt.Errorf("pipeline: deactivating task %s: %w", id, task.ErrNotFound)
	}
	if !t.IsRecurring() {
		return nil, fmt.Errorf("%w: task %s is not recurring", task.ErrValidation, id)
	}

	t.Deactivate()
	t.UpdatedAt = o.now().UTC()
	if err := o.store.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("pipeline: deactivating task %s: %w", id, err)
	}
	o.logger.Info("task deactivated", "task_id", id, "owner_id", ownerID)
	return t, nil
}
