package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy decides whether and when a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff. Only
// transient fetch errors are retried.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewExponentialRetryPolicy builds a policy allowing maxRetries extra attempts.
func NewExponentialRetryPolicy(maxRetries int) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  250 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

// ShouldRetry decides whether the error is retryable. attempt counts the
// retries already made.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return IsTransient(err)
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// pauseController abstracts how the fetcher waits between attempts.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RetryingFetcher wraps a Fetcher and re-issues requests the policy accepts.
type RetryingFetcher struct {
	next   Fetcher
	policy RetryPolicy
	pauser pauseController
	logger *zap.Logger
}

// NewRetryingFetcher decorates next with policy. A nil policy disables retries.
func NewRetryingFetcher(next Fetcher, policy RetryPolicy, logger *zap.Logger) *RetryingFetcher {
	if policy == nil {
		policy = NewExponentialRetryPolicy(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingFetcher{
		next:   next,
		policy: policy,
		pauser: &timerPauseController{},
		logger: logger,
	}
}

// Fetch implements Fetcher.
func (f *RetryingFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := f.next.Fetch(ctx, req)
		if err == nil || !f.policy.ShouldRetry(err, attempt) {
			return resp, err
		}
		delay := f.policy.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		f.pauser.Pause(ctx, delay)
		if ctx.Err() != nil {
			return FetchResponse{}, err
		}
	}
}
