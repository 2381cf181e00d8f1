// Package retry applies a bounded backoff policy to idempotent reads.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
)

// Policy controls how a labelled operation is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// DefaultPolicy retries transient transport failures three times.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		Retryable:    transport.IsTransient,
	}
}

// None performs a single attempt.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Retryable == nil {
		p.Retryable = transport.IsTransient
	}
	return p
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.MaxDelay > 0 && d > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
func (p Policy) Do(ctx context.Context, label string, fn func(context.Context) error) error {
	p = p.normalize()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) || attempt == p.MaxAttempts {
			break
		}
		wait := p.delay(attempt)
		logger.Debug("%s: attempt %d/%d failed, retrying in %s: %v", label, attempt, p.MaxAttempts, wait, lastErr)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", label, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %w", label, lastErr)
}

// Value is Do for functions that return a result.
func Value[T any](ctx context.Context, p Policy, label string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, label, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
