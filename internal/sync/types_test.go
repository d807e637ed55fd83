package sync

import (
	"testing"
	"time"

	"github.com/pressloop/drycleanpos/internal/models"
)

func TestErrorSummaryTruncates(t *testing.T) {
	s := &Summary{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		s.Errors = append(s.Errors, SyncError{
			Entity:    models.EntityTypeCustomer,
			RecordID:  id,
			Operation: "create",
			Message:   "rejected",
			Timestamp: time.Now().UTC(),
		})
	}

	lines := s.ErrorSummary(3)
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 3 errors plus the tail", len(lines))
	}
	if lines[3] != "+2 more" {
		t.Errorf("tail = %q, want %q", lines[3], "+2 more")
	}
	if lines[0] != "customers create a: rejected" {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestErrorSummaryShortList(t *testing.T) {
	s := &Summary{Errors: []SyncError{{Entity: models.EntityTypeOrder, RecordID: "o-1", Operation: "update", Message: "stale"}}}
	lines := s.ErrorSummary(5)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 with no tail", len(lines))
	}

	empty := &Summary{}
	if got := empty.ErrorSummary(5); got != nil {
		t.Errorf("summary with no errors produced %v", got)
	}
}
