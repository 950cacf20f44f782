package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig controls the backoff of a Retrying provider.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first. Defaults to 3.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Defaults to 1s.
	BaseDelay time.Duration

	// MaxDelay caps a single delay. Defaults to 10s.
	MaxDelay time.Duration
}

func (c *RetryConfig) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
}

// Retrying wraps a Provider and retries transient failures (see IsRetryable)
// with exponential backoff and jitter. Waiting respects ctx.
type Retrying struct {
	inner  Provider
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ Provider = (*Retrying)(nil)

// WithRetry returns p wrapped in a Retrying provider.
func WithRetry(p Provider, cfg RetryConfig, logger *slog.Logger) *Retrying {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{inner: p, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Complete implements Provider.
func (r *Retrying) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for attempt := range r.cfg.MaxAttempts {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == r.cfg.MaxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("provider call failed, retrying",
			"model", r.inner.ModelName(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return CompletionResponse{}, fmt.Errorf("provider: retry aborted: %w", err)
		}
	}
	return CompletionResponse{}, lastErr
}

// ModelName implements Provider.
func (r *Retrying) ModelName() string {
	return r.inner.ModelName()
}

// backoff returns base * 2^attempt with ±20% jitter, capped at MaxDelay.
func (r *Retrying) backoff(attempt int) time.Duration {
	d := r.cfg.BaseDelay << attempt
	if d > r.cfg.MaxDelay || d <= 0 {
		d = r.cfg.MaxDelay
	}
	jitter := 0.8 + rand.Float64()*0.4 //nolint:gosec // jitter does not need crypto randomness
	return time.Duration(float64(d) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
