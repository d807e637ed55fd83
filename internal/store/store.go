// Package store implements the device-local persistent store. It owns the
// authoritative local copy of every entity; the sync engine and conflict
// resolver operate strictly through its read/write contract.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pressloop/drycleanpos/internal/models"
)

// ErrNotFound signals an operation on an unknown or stale ID. Expected
// absence is reported through this sentinel, never as a raw storage error.
var ErrNotFound = errors.New("record not found")

// ErrInvalidRecord rejects malformed input before any write.
var ErrInvalidRecord = errors.New("invalid record")

// EntityCount is the per-entity figure reported to the status UI.
type EntityCount struct {
	Total    int64 `json:"total"`
	Unsynced int64 `json:"unsynced"`
}

// Store wraps the local database. Writes are serialized per record by the
// underlying transaction; concurrent local updates to the same ID resolve
// last-write-wins (the conflict machinery only protects local-vs-remote
// divergence).
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a Store on an opened database.
func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}
}

// DB exposes the underlying handle for components that need their own
// transactions (order lifecycle updates status and rack load atomically).
func (s *Store) DB() *gorm.DB { return s.db }

func validate(rec models.Syncable) error {
	b := rec.Base()
	if b.Version < 0 {
		return fmt.Errorf("%w: negative version", ErrInvalidRecord)
	}
	if b.IsLocalOnly && b.RemoteID != nil {
		return fmt.Errorf("%w: local-only record carries a remote id", ErrInvalidRecord)
	}
	return nil
}

// Create inserts a new local-only record.
func (s *Store) Create(ctx context.Context, rec models.Syncable) error {
	if err := validate(rec); err != nil {
		return err
	}
	b := rec.Base()
	b.IsLocalOnly = true
	if b.Version == 0 {
		b.Version = 1
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// Update persists a local mutation, bumping the version exactly once.
// The caller passes the mutated record; Touch is applied here so a re-applied
// identical mutation object cannot double-increment.
func (s *Store) Update(ctx context.Context, rec models.Syncable) error {
	if err := validate(rec); err != nil {
		return err
	}
	b := rec.Base()
	if b.ID == "" {
		return ErrNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := models.Describe(rec.EntityType())
		if err != nil {
			return err
		}
		current := d.New()
		if err := tx.First(current, "id = ?", b.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		// Version advances from the stored copy, not from whatever the
		// caller's snapshot carried.
		b.Version = current.Base().Version
		b.CreatedAt = current.Base().CreatedAt
		rec.Base().Touch()
		return tx.Save(rec).Error
	})
}

// Get returns one record by ID, including soft-deleted ones.
func (s *Store) Get(ctx context.Context, et models.EntityType, id string) (models.Syncable, error) {
	d, err := models.Describe(et)
	if err != nil {
		return nil, err
	}
	rec := d.New()
	if err := s.db.WithContext(ctx).First(rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindByRemoteID matches a local record to its remote identity.
func (s *Store) FindByRemoteID(ctx context.Context, et models.EntityType, remoteID string) (models.Syncable, error) {
	d, err := models.Describe(et)
	if err != nil {
		return nil, err
	}
	rec := d.New()
	if err := s.db.WithContext(ctx).First(rec, "remote_id = ?", remoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns all non-deleted records of one entity type, newest first.
func (s *Store) List(ctx context.Context, et models.EntityType) ([]models.Syncable, error) {
	d, err := models.Describe(et)
	if err != nil {
		return nil, err
	}
	slice := d.NewSlice()
	err = s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("updated_at DESC").
		Find(slice).Error
	if err != nil {
		return nil, err
	}
	return d.Items(slice), nil
}

// FindUnsynced returns all non-deleted records that have never been pushed
// or have been mutated since their last successful sync.
func (s *Store) FindUnsynced(ctx context.Context, et models.EntityType) ([]models.Syncable, error) {
	d, err := models.Describe(et)
	if err != nil {
		return nil, err
	}
	slice := d.NewSlice()
	err = s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("is_local_only = ? OR last_synced_at IS NULL OR updated_at > last_synced_at", true).
		Order("updated_at ASC").
		Find(slice).Error
	if err != nil {
		return nil, err
	}
	return d.Items(slice), nil
}

// FindUnsyncedDeletions returns soft-deleted records whose deletion has not
// reached the remote yet. Deleted records are invisible to domain queries
// but keep participating in sync until the tombstone is propagated.
func (s *Store) FindUnsyncedDeletions(ctx context.Context, et models.EntityType) ([]models.Syncable, error) {
	d, err := models.Describe(et)
	if err != nil {
		return nil, err
	}
	slice := d.NewSlice()
	err = s.db.WithContext(ctx).
		Where("is_deleted = ?", true).
		Where("is_local_only = ? OR last_synced_at IS NULL OR updated_at > last_synced_at", true).
		Order("updated_at ASC").
		Find(slice).Error
	if err != nil {
		return nil, err
	}
	return d.Items(slice), nil
}

// MarkSynced records a successful push for one record. syncedAt is the
// UpdatedAt of the snapshot that was pushed; the stored copy is re-read, so
// a mutation that landed mid-push keeps the record unsynced. The remote ID
// is assigned only if the record does not already carry one.
func (s *Store) MarkSynced(ctx context.Context, et models.EntityType, id string, remoteID *string, syncedAt time.Time) (models.Syncable, error) {
	rec, err := s.Get(ctx, et, id)
	if err != nil {
		return nil, err
	}
	rec.Base().MarkSynced(remoteID, syncedAt)
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertFromRemote applies a remote record as the canonical local copy:
// insert if absent, overwrite if present. Conflict gating is the caller's
// responsibility; the resolver never routes a conflicted record here until
// the user picked a side.
func (s *Store) UpsertFromRemote(ctx context.Context, rec models.Syncable) (models.Syncable, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}
	b := rec.Base()
	if b.RemoteID == nil {
		return nil, fmt.Errorf("%w: remote record without remote id", ErrInvalidRecord)
	}
	b.IsLocalOnly = false
	// Synced as of the remote copy's own timestamp, never the clock.
	syncedAt := b.UpdatedAt
	b.LastSyncedAt = &syncedAt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := models.Describe(rec.EntityType())
		if err != nil {
			return err
		}
		existing := d.New()
		lookupErr := tx.First(existing, "id = ?", b.ID).Error
		if lookupErr == nil {
			b.CreatedAt = existing.Base().CreatedAt
			return tx.Save(rec).Error
		}
		if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SoftDelete marks a record invisible to domain queries. The row stays
// until sync confirms the remote deletion.
func (s *Store) SoftDelete(ctx context.Context, et models.EntityType, id string) error {
	return s.setDeleted(ctx, et, id, true)
}

// Restore undoes a soft delete.
func (s *Store) Restore(ctx context.Context, et models.EntityType, id string) error {
	return s.setDeleted(ctx, et, id, false)
}

func (s *Store) setDeleted(ctx context.Context, et models.EntityType, id string, deleted bool) error {
	rec, err := s.Get(ctx, et, id)
	if err != nil {
		return err
	}
	b := rec.Base()
	if b.IsDeleted == deleted {
		return nil
	}
	b.IsDeleted = deleted
	b.Touch()
	return s.db.WithContext(ctx).Save(rec).Error
}

// Counts aggregates total and unsynced figures per entity type for the
// sync-status view.
func (s *Store) Counts(ctx context.Context) (map[models.EntityType]EntityCount, error) {
	out := make(map[models.EntityType]EntityCount, len(models.SyncOrder))
	for _, et := range models.SyncOrder {
		d, err := models.Describe(et)
		if err != nil {
			return nil, err
		}
		var total, unsynced int64
		if err := s.db.WithContext(ctx).Model(d.New()).
			Where("is_deleted = ?", false).
			Count(&total).Error; err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(d.New()).
			Where("is_local_only = ? OR last_synced_at IS NULL OR updated_at > last_synced_at", true).
			Count(&unsynced).Error; err != nil {
			return nil, err
		}
		out[et] = EntityCount{Total: total, Unsynced: unsynced}
	}
	return out, nil
}
