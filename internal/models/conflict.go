package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConflictStatus tracks a pending conflict through resolution.
type ConflictStatus string

const (
	ConflictStatusPending  ConflictStatus = "pending"
	ConflictStatusResolved ConflictStatus = "resolved"
)

// ConflictChoice is the user's whole-record resolution decision. There is
// no field-level merge.
type ConflictChoice string

const (
	ChoiceKeepLocal ConflictChoice = "keep_local"
	ChoiceKeepCloud ConflictChoice = "keep_cloud"
)

// SyncConflict is a persisted record of two independently mutated copies of
// the same logical record. It is created during a pull when neither side is
// a strict ancestor of the other, and blocks the record from automatic sync
// until resolved. Persisting it means a restart does not silently drop
// unresolved conflicts.
type SyncConflict struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	EntityType     string         `gorm:"type:varchar(40);not null;index:idx_conflict_entity" json:"entity_type"`
	LocalID        string         `gorm:"type:varchar(36);not null;index:idx_conflict_entity" json:"local_id"`
	LocalVersion   int            `json:"local_version"`
	RemoteVersion  int            `json:"remote_version"`
	LocalSnapshot  datatypes.JSON `json:"local_snapshot"`
	RemoteSnapshot datatypes.JSON `json:"remote_snapshot"`
	Status         ConflictStatus `gorm:"type:varchar(20);default:pending;index" json:"status"`
	Resolution     ConflictChoice `gorm:"type:varchar(20)" json:"resolution,omitempty"`
	ResolvedBy     string         `gorm:"type:varchar(64)" json:"resolved_by,omitempty"`
	DetectedAt     time.Time      `json:"detected_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

func (SyncConflict) TableName() string { return "sync_conflicts" }
