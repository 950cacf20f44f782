package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/flemzord/jobagent/internal/metrics"
	"github.com/flemzord/jobagent/internal/task"
)

// DefaultConcurrency bounds in-flight evaluations when the caller passes no limit.
const DefaultConcurrency = 3

var tracer = otel.Tracer("github.com/flemzord/jobagent/internal/match")

// ScoreWriter persists the result of one evaluation onto its posting.
type ScoreWriter interface {
	UpdatePostingScore(ctx context.Context, id string, score int, analysis task.Analysis) error
}

// EngineConfig holds the Engine dependencies.
type EngineConfig struct {
	Writer ScoreWriter

	// Timeout bounds each matcher call. Zero disables the per-call bound.
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Engine evaluates postings concurrently and persists each result.
type Engine struct {
	writer  ScoreWriter
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		writer:  cfg.Writer,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// MatchAll evaluates every posting against resume with at most limit calls
// in flight. The returned slice has one result per posting, in input order.
// A failing evaluation never aborts the batch: it yields an unsuccessful
// result carrying a failure analysis.
func (e *Engine) MatchAll(ctx context.Context, m Matcher, resume task.Resume, postings []*task.Posting, limit int) []task.MatchResult {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	ctx, span := tracer.Start(ctx, "match.MatchAll")
	defer span.End()
	span.SetAttributes(
		attribute.Int("match.postings", len(postings)),
		attribute.Int("match.concurrency", limit),
	)

	results := make([]task.MatchResult, len(postings))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range postings {
		g.Go(func() error {
			results[i] = e.evaluate(ctx, m, resume, p)
			e.persist(ctx, results[i])
			return nil
		})
	}
	// Workers never return an error.
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("match.failed", failed))
	e.logger.Info("match batch finished",
		"postings", len(postings),
		"failed", failed,
		"concurrency", limit,
	)
	return results
}

func (e *Engine) evaluate(ctx context.Context, m Matcher, resume task.Resume, p *task.Posting) task.MatchResult {
	res := task.MatchResult{PostingID: p.ID, Title: p.Title}

	ctx, span := tracer.Start(ctx, "match.posting")
	defer span.End()
	span.SetAttributes(attribute.String("posting.id", p.ID))

	fail := func(err error) task.MatchResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.ObserveMatch(false)
		e.logger.Warn("posting evaluation failed",
			"posting_id", p.ID,
			"title", p.Title,
			"error", err,
		)
		res.Err = err
		res.Analysis = task.FailedAnalysis(err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ev, err := safeMatch(callCtx, m, resume, *p)
	if err != nil {
		return fail(err)
	}

	res.Score = ClampScore(ev.Score)
	res.Analysis = NormalizeAnalysis(ev.Analysis)
	res.Success = true
	span.SetAttributes(attribute.Int("match.score", res.Score))
	e.metrics.ObserveMatch(true)
	return res
}

func (e *Engine) persist(ctx context.Context, res task.MatchResult) {
	if e.writer == nil || res.PostingID == "" {
		return
	}
	// A resolved item is written even after the batch context is done.
	if err := e.writer.UpdatePostingScore(context.WithoutCancel(ctx), res.PostingID, res.Score, res.Analysis); err != nil {
		e.logger.Error("persisting match result failed",
			"posting_id", res.PostingID,
			"error", err,
		)
	}
}

func safeMatch(ctx context.Context, m Matcher, resume task.Resume, p task.Posting) (ev Evaluation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("match: matcher panicked: %v", r)
		}
	}()
	return m.Match(ctx, resume, p)
}
