// Package sync implements the synchronization engine: push of local
// changes, pull and reconciliation of the remote set, conflict detection
// and resolution, and aggregation of a pass into a summary the UI can show.
package sync

import (
	"fmt"
	"time"

	"github.com/pressloop/drycleanpos/internal/models"
)

// SyncError is one per-record failure inside a pass. Errors never abort
// sibling records or sibling entity types.
type SyncError struct {
	Entity    models.EntityType `json:"entity"`
	RecordID  string            `json:"record_id,omitempty"`
	Operation string            `json:"operation"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// EntityStats aggregates one entity type's pass.
type EntityStats struct {
	Total     int `json:"total"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Pulled    int `json:"pulled"`
	Conflicts int `json:"conflicts"`
}

// EntityResult is the outcome of syncing one entity type.
type EntityResult struct {
	Entity models.EntityType `json:"entity"`
	Stats  EntityStats       `json:"stats"`
	Errors []SyncError       `json:"errors,omitempty"`
}

// Summary is the outcome of a full pass. Success is true only when zero
// failures occurred and the pass was not aborted; partial success is
// reported, not collapsed into total failure.
type Summary struct {
	Success   bool                              `json:"success"`
	Aborted   bool                              `json:"aborted"`
	PerEntity map[models.EntityType]EntityStats `json:"per_entity"`
	Errors    []SyncError                       `json:"errors,omitempty"`
	StartedAt time.Time                         `json:"started_at"`
	Duration  time.Duration                     `json:"duration"`
}

// ErrorSummary renders at most n error lines plus a "+K more" tail. The UI
// never sees a raw error dump.
func (s *Summary) ErrorSummary(n int) []string {
	if len(s.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, n+1)
	for i, e := range s.Errors {
		if i == n {
			out = append(out, fmt.Sprintf("+%d more", len(s.Errors)-n))
			break
		}
		out = append(out, fmt.Sprintf("%s %s %s: %s", e.Entity, e.Operation, e.RecordID, e.Message))
	}
	return out
}

// EventSink receives engine events (a pass finished, progress per entity).
// The websocket hub implements it; a nil sink is valid.
type EventSink interface {
	Publish(event string, payload any)
}
