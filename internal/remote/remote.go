// Package remote talks to the cloud store. The engine only needs three
// operations per entity resource (create, update, list) plus an error
// taxonomy precise enough to tell a retryable blip from a rejected record
// from a divergent copy.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Record is the wire representation of one entity. The sync adapters map
// between Record and the local models; the engine itself never interprets
// entity-specific fields beyond id/version/updated_at.
type Record map[string]any

// String reads a string field, tolerating absence.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Int reads an integer field; JSON numbers arrive as float64.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Float reads a numeric field.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Bool reads a boolean field.
func (r Record) Bool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// ErrorKind classifies a remote failure for the engine.
type ErrorKind string

const (
	// KindTransient covers timeouts, connection failures and 5xx responses.
	// Retryable within the same pass, bounded.
	KindTransient ErrorKind = "transient"
	// KindValidation covers rejected payloads. Non-retryable; surfaced as a
	// per-record failure while the pass continues.
	KindValidation ErrorKind = "validation"
	// KindAlreadyExists is the duplicate-create signal that triggers the
	// update fallback.
	KindAlreadyExists ErrorKind = "already_exists"
	// KindConflict means the remote holds a newer/divergent copy. Routed to
	// the conflict resolver, not treated as a hard failure.
	KindConflict ErrorKind = "conflict"
	// KindNotFound is an expected outcome for stale IDs.
	KindNotFound ErrorKind = "not_found"
)

// APIError is the one error type the engine branches on.
type APIError struct {
	Kind     ErrorKind
	Status   int
	Message  string
	Resource string
	// Existing carries the remote's current copy when a create was rejected
	// as a duplicate, so the caller can fall back to update by remote ID.
	Existing Record
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("remote %s: %s (HTTP %d): %s", e.Resource, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("remote %s: %s: %s", e.Resource, e.Kind, e.Message)
}

// KindOf extracts the classification from any error chain. Unclassified
// errors (raw network failures, cancelled contexts) count as transient.
func KindOf(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) == KindTransient
}

// API is the remote operation set one entity resource exposes. Client is
// the HTTP implementation; RetryClient wraps any API with bounded retry;
// tests substitute an in-memory fake.
type API interface {
	Create(ctx context.Context, resource string, payload Record) (Record, error)
	Update(ctx context.Context, resource, id string, payload Record) (Record, error)
	List(ctx context.Context, resource string, limit int) ([]Record, error)
}
