package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/smallnest/nodeflow/node"
)

// RetryConfig configures retry behavior for leaf nodes
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads each delay by up to ±Jitter of its value. 0 disables it.
	Jitter float64
	// RetryableErrors decides whether an error triggers another attempt.
	// Cancellation is never retried.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: func(_ error) bool {
			return true
		},
	}
}

// retrying wraps an implementation so failed attempts are repeated with backoff.
type retrying struct {
	node.Implementation
	config  *RetryConfig
	onRetry func(attempt int, err error, delay time.Duration)
}

func withRetry(impl node.Implementation, config *RetryConfig, onRetry func(int, error, time.Duration)) node.Implementation {
	if config == nil || config.MaxAttempts <= 1 {
		return impl
	}
	return &retrying{Implementation: impl, config: config, onRetry: onRetry}
}

func (r *retrying) Process(ctx context.Context, inputs node.Values, pc *node.ProcessContext) (node.Values, error) {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("retry cancelled: %w", err)
		}

		outputs, err := r.Implementation.Process(ctx, inputs, pc)
		if err == nil {
			return outputs, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if r.config.RetryableErrors != nil && !r.config.RetryableErrors(err) {
			return nil, err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		wait := r.jittered(delay)
		if r.onRetry != nil {
			r.onRetry(attempt, err, wait)
		}
		select {
		case <-time.After(wait):
			delay = r.next(delay)
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

func (r *retrying) next(delay time.Duration) time.Duration {
	factor := r.config.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	next := time.Duration(float64(delay) * factor)
	if r.config.MaxDelay > 0 {
		next = min(next, r.config.MaxDelay)
	}
	return next
}

func (r *retrying) jittered(delay time.Duration) time.Duration {
	if r.config.Jitter <= 0 || delay <= 0 {
		return delay
	}
	//nolint:gosec // jitter does not need a secure source
	spread := float64(delay) * r.config.Jitter * (2*rand.Float64() - 1)
	return max(0, delay+time.Duration(spread))
}
