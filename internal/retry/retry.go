package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

// Policy bounds how often and how patiently a failing call is retried.
type Policy struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // delay before the second attempt
	Multiplier   float64       // growth factor per attempt
}

// DefaultPolicy returns 3 attempts starting at 1s and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
	}
}

// Delay computes the wait before the next attempt after the given failed attempt.
// If the error carries a Retry-After duration (HTTP 429), that takes precedence.
func (p Policy) Delay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// initialDelay * multiplier^(attempt-1)
	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy's
// attempt ceiling is reached. The last error is returned on exhaustion.
func Do(ctx context.Context, p Policy, logger *slog.Logger, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == attempts {
			break
		}

		delay := p.Delay(attempt, lastErr)
		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

// RetryAdapter is a decorator that retries transient scrape failures.
type RetryAdapter struct {
	inner  model.SourceAdapter
	policy Policy
	logger *slog.Logger
}

// NewRetryAdapter wraps a SourceAdapter with retry logic.
func NewRetryAdapter(inner model.SourceAdapter, policy Policy, logger *slog.Logger) *RetryAdapter {
	return &RetryAdapter{
		inner:  inner,
		policy: policy,
		logger: logger,
	}
}

func (a *RetryAdapter) Name() string { return a.inner.Name() }

// Scrape attempts the wrapped adapter, retrying on transient errors.
func (a *RetryAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	var postings []model.RawPosting
	err := Do(ctx, a.policy, a.logger.With("source", a.inner.Name()), func(ctx context.Context) error {
		var err error
		postings, err = a.inner.Scrape(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return postings, nil
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) are retryable.
	return true
}
