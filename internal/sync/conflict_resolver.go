package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/remote"
	"github.com/pressloop/drycleanpos/internal/store"
)

// ReconcileOutcome classifies what happened to one remote record during a
// pull.
type ReconcileOutcome string

const (
	OutcomeApplied  ReconcileOutcome = "applied"  // remote copy written locally
	OutcomeNoop     ReconcileOutcome = "noop"     // both sides already agree
	OutcomeBlocked  ReconcileOutcome = "blocked"  // pending conflict, left untouched
	OutcomeConflict ReconcileOutcome = "conflict" // new divergence detected
)

// Resolution is one entry in a batch resolve request.
type Resolution struct {
	LocalID string                `json:"id"`
	Choice  models.ConflictChoice `json:"choice"`
}

// Resolver detects divergent edits during a pull and applies user
// decisions. It never holds record copies beyond one call; everything goes
// through the store. Pending conflicts are persisted, so a restart does not
// drop them.
type Resolver struct {
	store    *store.Store
	api      remote.API
	adapters map[models.EntityType]*Adapter
	log      zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(st *store.Store, api remote.API, adapters map[models.EntityType]*Adapter, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:    st,
		api:      api,
		adapters: adapters,
		log:      log.With().Str("component", "conflicts").Logger(),
	}
}

// Pending lists unresolved conflicts, oldest first.
func (r *Resolver) Pending(ctx context.Context) ([]models.SyncConflict, error) {
	var out []models.SyncConflict
	err := r.store.DB().WithContext(ctx).
		Where("status = ?", models.ConflictStatusPending).
		Order("detected_at ASC").
		Find(&out).Error
	return out, err
}

// BlockedIDs returns the set of record IDs of one entity type that are
// frozen until their conflict is resolved.
func (r *Resolver) BlockedIDs(ctx context.Context, et models.EntityType) (map[string]bool, error) {
	var ids []string
	err := r.store.DB().WithContext(ctx).
		Model(&models.SyncConflict{}).
		Where("entity_type = ? AND status = ?", string(et), models.ConflictStatusPending).
		Pluck("local_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Reconcile decides what one pulled remote record means locally. With no
// local copy it is first sight: insert and mark synced. A record with a
// pending conflict is left alone. A local copy that was never pushed while
// the remote already holds the identity is first-time convergence: the copy
// with a remote id wins and the local one is relabeled. An equal version
// with no local edits is a no-op. A clean local copy adopts a moved remote
// one. A locally edited copy whose remote side has not moved since the last
// sync is left for the push path. When both sides moved independently a
// conflict is recorded and nothing is touched.
func (r *Resolver) Reconcile(ctx context.Context, a *Adapter, remoteRec remote.Record) (ReconcileOutcome, error) {
	candidate, err := a.ToLocal(remoteRec)
	if err != nil {
		return "", fmt.Errorf("map remote %s: %w", a.Resource, err)
	}
	cb := candidate.Base()

	local, err := r.findLocal(ctx, a.Entity, cb)
	if errors.Is(err, store.ErrNotFound) {
		if _, err := r.store.UpsertFromRemote(ctx, candidate); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}
	if err != nil {
		return "", err
	}
	lb := local.Base()
	// Reconcile against the found local identity, whatever key matched.
	cb.ID = lb.ID

	blocked, err := r.isBlocked(ctx, a.Entity, lb.ID)
	if err != nil {
		return "", err
	}
	if blocked {
		return OutcomeBlocked, nil
	}

	// First-time convergence: the local copy was never pushed, yet the
	// remote already holds this identity (created by another device or by a
	// prior partial sync). The side with the remote id is canonical.
	if lb.IsLocalOnly {
		if _, err := r.store.UpsertFromRemote(ctx, candidate); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}

	localEdited := lb.Unsynced()
	if cb.Version == lb.Version && !localEdited {
		return OutcomeNoop, nil
	}
	if !localEdited {
		// Local is a strict ancestor of the remote copy.
		if _, err := r.store.UpsertFromRemote(ctx, candidate); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}

	remoteMoved := lb.LastSyncedAt == nil ||
		cb.UpdatedAt.After(*lb.LastSyncedAt) ||
		cb.Version > lb.Version
	if !remoteMoved {
		// Only this device edited; the push phase converges it.
		return OutcomeNoop, nil
	}

	// Both sides mutated independently since the last sync. Freeze the
	// record and surface the divergence; the local copy stays untouched.
	if err := r.recordConflict(ctx, a.Entity, local, remoteRec, cb.Version); err != nil {
		return "", err
	}
	return OutcomeConflict, nil
}

func (r *Resolver) findLocal(ctx context.Context, et models.EntityType, cb *models.SyncRecord) (models.Syncable, error) {
	if cb.RemoteID != nil {
		if local, err := r.store.FindByRemoteID(ctx, et, *cb.RemoteID); err == nil {
			return local, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return r.store.Get(ctx, et, cb.ID)
}

func (r *Resolver) isBlocked(ctx context.Context, et models.EntityType, localID string) (bool, error) {
	var n int64
	err := r.store.DB().WithContext(ctx).
		Model(&models.SyncConflict{}).
		Where("entity_type = ? AND local_id = ? AND status = ?",
			string(et), localID, models.ConflictStatusPending).
		Count(&n).Error
	return n > 0, err
}

// recordConflict persists a pending conflict. Re-detecting the same record
// on a later pull refreshes the stored remote snapshot instead of stacking
// duplicates.
func (r *Resolver) recordConflict(ctx context.Context, et models.EntityType, local models.Syncable, remoteRec remote.Record, remoteVersion int) error {
	localSnap, err := json.Marshal(local)
	if err != nil {
		return fmt.Errorf("snapshot local record: %w", err)
	}
	remoteSnap, err := json.Marshal(remoteRec)
	if err != nil {
		return fmt.Errorf("snapshot remote record: %w", err)
	}

	lb := local.Base()
	conflict := models.SyncConflict{
		EntityType:     string(et),
		LocalID:        lb.ID,
		LocalVersion:   lb.Version,
		RemoteVersion:  remoteVersion,
		LocalSnapshot:  datatypes.JSON(localSnap),
		RemoteSnapshot: datatypes.JSON(remoteSnap),
		Status:         models.ConflictStatusPending,
		DetectedAt:     time.Now().UTC(),
	}

	var existing models.SyncConflict
	err = r.store.DB().WithContext(ctx).
		Where("entity_type = ? AND local_id = ? AND status = ?",
			string(et), lb.ID, models.ConflictStatusPending).
		First(&existing).Error
	if err == nil {
		conflict.ID = existing.ID
		conflict.DetectedAt = existing.DetectedAt
		return r.store.DB().WithContext(ctx).Save(&conflict).Error
	}
	r.log.Warn().
		Str("entity", string(et)).
		Str("id", lb.ID).
		Int("local_version", lb.Version).
		Int("remote_version", remoteVersion).
		Msg("conflict detected, record frozen until resolved")
	return r.store.DB().WithContext(ctx).Create(&conflict).Error
}

// Resolve applies a whole-record decision for one conflicted record.
// keepCloud overwrites the local copy with the stored remote snapshot and
// marks it synced; keepLocal bumps the local version past the remote's and
// re-pushes immediately. Resolution is all-or-nothing per record.
func (r *Resolver) Resolve(ctx context.Context, et models.EntityType, localID string, choice models.ConflictChoice, resolvedBy string) error {
	a, ok := r.adapters[et]
	if !ok {
		return fmt.Errorf("no adapter for entity type %q", et)
	}

	var conflict models.SyncConflict
	err := r.store.DB().WithContext(ctx).
		Where("entity_type = ? AND local_id = ? AND status = ?",
			string(et), localID, models.ConflictStatusPending).
		First(&conflict).Error
	if err != nil {
		return fmt.Errorf("no pending conflict for %s/%s: %w", et, localID, err)
	}

	switch choice {
	case models.ChoiceKeepCloud:
		var remoteRec remote.Record
		if err := json.Unmarshal(conflict.RemoteSnapshot, &remoteRec); err != nil {
			return fmt.Errorf("decode remote snapshot: %w", err)
		}
		candidate, err := a.ToLocal(remoteRec)
		if err != nil {
			return err
		}
		candidate.Base().ID = localID
		if _, err := r.store.UpsertFromRemote(ctx, candidate); err != nil {
			return err
		}

	case models.ChoiceKeepLocal:
		local, err := r.store.Get(ctx, et, localID)
		if err != nil {
			return err
		}
		lb := local.Base()
		if lb.Version <= conflict.RemoteVersion {
			lb.Version = conflict.RemoteVersion + 1
		}
		lb.UpdatedAt = time.Now().UTC()
		if err := r.store.DB().WithContext(ctx).Save(local).Error; err != nil {
			return err
		}
		ack, err := a.PushOne(ctx, r.api, local)
		if err != nil {
			// The record stays unsynced and the next pass retries the
			// push; the user's decision itself is not lost.
			r.log.Warn().Err(err).
				Str("entity", string(et)).
				Str("id", localID).
				Msg("keep-local re-push failed, will retry next pass")
		} else if _, err := r.store.MarkSynced(ctx, et, localID, &ack.RemoteID, lb.UpdatedAt); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown conflict choice %q", choice)
	}

	now := time.Now().UTC()
	conflict.Status = models.ConflictStatusResolved
	conflict.Resolution = choice
	conflict.ResolvedBy = resolvedBy
	conflict.ResolvedAt = &now
	return r.store.DB().WithContext(ctx).Save(&conflict).Error
}

// ResolveBatch applies many decisions for one entity type in one action
// (the UI's "keep all local/cloud" shortcut). Each record resolves
// independently; the first failure stops the batch and reports how many
// were applied.
func (r *Resolver) ResolveBatch(ctx context.Context, et models.EntityType, resolutions []Resolution, resolvedBy string) (int, error) {
	for i, res := range resolutions {
		if err := r.Resolve(ctx, et, res.LocalID, res.Choice, resolvedBy); err != nil {
			return i, err
		}
	}
	return len(resolutions), nil
}
