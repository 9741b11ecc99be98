package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// RetryPolicy defines retry behavior for retryable domain errors.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.0 to 1.0
	Multiplier   float64 // Exponential factor
}

// DefaultRetryPolicy returns a default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		JitterFactor: 0.2,
		Multiplier:   2.0,
	}
}

// PublishRetryPolicy retries a publish transaction after version number
// collisions. retries is the number of extra attempts.
func PublishRetryPolicy(retries int) *RetryPolicy {
	if retries < 0 {
		retries = 0
	}
	return NewRetryPolicy(WithMaxAttempts(retries + 1))
}

// RetryPolicyOption configures a retry policy.
type RetryPolicyOption func(*RetryPolicy)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.MaxAttempts = n
	}
}

// WithBaseDelay sets the initial delay.
func WithBaseDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.BaseDelay = d
	}
}

// WithMaxDelay sets the maximum delay.
func WithMaxDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.MaxDelay = d
	}
}

// WithJitter sets the jitter factor.
func WithJitter(factor float64) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.JitterFactor = factor
	}
}

// NewRetryPolicy creates a new retry policy.
func NewRetryPolicy(opts ...RetryPolicyOption) *RetryPolicy {
	p := DefaultRetryPolicy()
	for _, opt := range opts {
		opt(p)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryNotifyFunc is called before each retry.
type RetryNotifyFunc func(attempt int, err error, delay time.Duration)

// Execute runs fn until it succeeds, fails with a non-retryable error, or
// the attempts run out.
func (p *RetryPolicy) Execute(ctx context.Context, fn RetryableFunc) error {
	return p.ExecuteWithNotify(ctx, fn, nil)
}

// ExecuteWithNotify runs with retry and notifications.
func (p *RetryPolicy) ExecuteWithNotify(ctx context.Context, fn RetryableFunc, notify RetryNotifyFunc) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.CalculateDelay(attempt)
		if notify != nil {
			notify(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &RetryExhaustedError{
		Attempts: p.MaxAttempts,
		LastErr:  lastErr,
	}
}

// CalculateDelay computes the delay for a given attempt.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delay := p.delay(attempt)
	if p.JitterFactor > 0 {
		jitter := delay * p.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
	}
	return time.Duration(delay)
}

func (p *RetryPolicy) delay(attempt int) float64 {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return delay
}

// RetryExhaustedError indicates all retry attempts failed.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
