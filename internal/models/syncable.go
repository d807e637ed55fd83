package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncRecord is the base shape embedded by every synchronizable entity.
// ID is the local primary key and never changes; RemoteID is assigned once
// the remote copy exists. Version increases by exactly 1 on every
// sync-relevant local mutation and is never decreased.
type SyncRecord struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RemoteID     *string    `gorm:"type:varchar(64);index" json:"remote_id,omitempty"`
	Version      int        `gorm:"not null;default:1" json:"version"`
	IsLocalOnly  bool       `gorm:"not null;default:true;index" json:"is_local_only"`
	IsDeleted    bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	// Timestamps are sync-relevant state, not audit metadata: MarkSynced
	// must not move UpdatedAt, so GORM's automatic tracking is disabled and
	// Touch is the only writer.
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// Base exposes the embedded record to code that is generic over entities.
func (r *SyncRecord) Base() *SyncRecord { return r }

// Touch registers a sync-relevant local mutation: bump the version by one
// and refresh the update timestamp. All local writes go through here so the
// version stays strictly increasing.
func (r *SyncRecord) Touch() {
	r.Version++
	r.UpdatedAt = time.Now().UTC()
}

// MarkSynced flips the record to the synced state as of syncedAt, the
// update timestamp of the copy that actually reached the remote. Stamping
// the snapshot's time rather than the clock keeps LastSyncedAt <= UpdatedAt:
// an edit that landed while the push was in flight leaves UpdatedAt ahead,
// so the record stays a push candidate. The remote ID is only assigned on
// first push and never overwritten.
func (r *SyncRecord) MarkSynced(remoteID *string, syncedAt time.Time) {
	r.IsLocalOnly = false
	r.LastSyncedAt = &syncedAt
	if r.RemoteID == nil && remoteID != nil {
		r.RemoteID = remoteID
	}
}

// Unsynced reports whether the record has local changes the remote has not
// seen yet.
func (r *SyncRecord) Unsynced() bool {
	if r.IsLocalOnly || r.LastSyncedAt == nil {
		return true
	}
	return r.UpdatedAt.After(*r.LastSyncedAt)
}

// BeforeCreate assigns a local UUID when the caller did not provide one.
func (r *SyncRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return nil
}

// Syncable is implemented by every entity model that participates in sync.
type Syncable interface {
	Base() *SyncRecord
	EntityType() EntityType
}
