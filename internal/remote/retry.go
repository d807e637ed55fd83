package remote

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig bounds retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns the defaults used by the sync engine.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 300 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps an API with bounded retry on transient errors only.
// Validation, conflict and already-exists outcomes pass through untouched;
// the engine branches on those signals.
type RetryClient struct {
	inner  API
	config *RetryConfig
}

// NewRetryClient wraps the given API.
func NewRetryClient(inner API, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			if err := sleep(ctx, rc.backoff(attempt)); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

func (rc *RetryClient) Create(ctx context.Context, resource string, payload Record) (rec Record, err error) {
	err = rc.retry(ctx, "create "+resource, func() error {
		rec, err = rc.inner.Create(ctx, resource, payload)
		return err
	})
	return
}

func (rc *RetryClient) Update(ctx context.Context, resource, id string, payload Record) (rec Record, err error) {
	err = rc.retry(ctx, "update "+resource, func() error {
		rec, err = rc.inner.Update(ctx, resource, id, payload)
		return err
	})
	return
}

func (rc *RetryClient) List(ctx context.Context, resource string, limit int) (recs []Record, err error) {
	err = rc.retry(ctx, "list "+resource, func() error {
		recs, err = rc.inner.List(ctx, resource, limit)
		return err
	})
	return
}
