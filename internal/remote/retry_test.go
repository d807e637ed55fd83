package remote

import (
	"context"
	"testing"
	"time"
)

// flakyAPI fails the first n calls with the configured error, then
// succeeds.
type flakyAPI struct {
	failures int
	err      error
	calls    int
}

func (f *flakyAPI) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyAPI) Create(ctx context.Context, resource string, payload Record) (Record, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return Record{"id": "r-1"}, nil
}

func (f *flakyAPI) Update(ctx context.Context, resource, id string, payload Record) (Record, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return payload, nil
}

func (f *flakyAPI) List(ctx context.Context, resource string, limit int) ([]Record, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return nil, nil
}

func fastRetry(max int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     max,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		JitterFraction: 0,
	}
}

func TestRetryRecoversFromTransient(t *testing.T) {
	inner := &flakyAPI{failures: 2, err: &APIError{Kind: KindTransient, Message: "blip"}}
	rc := NewRetryClient(inner, fastRetry(3))

	echo, err := rc.Create(context.Background(), "customers", Record{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if echo.String("id") != "r-1" {
		t.Errorf("echo id = %q", echo.String("id"))
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryIsBounded(t *testing.T) {
	inner := &flakyAPI{failures: 100, err: &APIError{Kind: KindTransient, Message: "down"}}
	rc := NewRetryClient(inner, fastRetry(2))

	_, err := rc.List(context.Background(), "customers", 0)
	if err == nil {
		t.Fatal("expected failure after bounded retries")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want initial + 2 retries", inner.calls)
	}
}

func TestNonTransientNeverRetried(t *testing.T) {
	for _, kind := range []ErrorKind{KindValidation, KindConflict, KindAlreadyExists, KindNotFound} {
		inner := &flakyAPI{failures: 100, err: &APIError{Kind: kind, Message: "no"}}
		rc := NewRetryClient(inner, fastRetry(3))

		_, err := rc.Update(context.Background(), "customers", "r-1", Record{})
		if KindOf(err) != kind {
			t.Errorf("kind %s not passed through, got %v", kind, err)
		}
		if inner.calls != 1 {
			t.Errorf("kind %s retried %d times", kind, inner.calls-1)
		}
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	inner := &flakyAPI{failures: 100, err: &APIError{Kind: KindTransient, Message: "down"}}
	rc := NewRetryClient(inner, &RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := rc.Create(ctx, "customers", Record{})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled retry waited for backoff")
	}
}
