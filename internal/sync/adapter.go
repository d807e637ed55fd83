package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/remote"
)

// Adapter knows how to move one entity type between the local models and
// the remote schema. One struct parameterized by mapping functions replaces
// seven hand-written per-entity services.
type Adapter struct {
	Entity   models.EntityType
	Resource string

	// ToRemote and ToLocal are pure mappings. They round-trip every field
	// reconciliation depends on: local id, remote id, version, deletion
	// flag, updated_at, and the entity's business fields.
	ToRemote func(models.Syncable) (remote.Record, error)
	ToLocal  func(remote.Record) (models.Syncable, error)
}

// PushAck reports a successful push.
type PushAck struct {
	RemoteID string
	Echo     remote.Record
}

// PushOne attempts create, falling back to update when the remote signals
// the record already exists. The two-step pattern is deliberate: after a
// partial sync the device cannot know whether an earlier pass already
// created the remote copy.
func (a *Adapter) PushOne(ctx context.Context, api remote.API, rec models.Syncable) (*PushAck, error) {
	payload, err := a.ToRemote(rec)
	if err != nil {
		return nil, &remote.APIError{Kind: remote.KindValidation, Resource: a.Resource, Message: err.Error()}
	}

	b := rec.Base()
	if b.RemoteID != nil {
		echo, err := api.Update(ctx, a.Resource, *b.RemoteID, payload)
		if err != nil {
			return nil, err
		}
		return &PushAck{RemoteID: *b.RemoteID, Echo: echo}, nil
	}

	echo, err := api.Create(ctx, a.Resource, payload)
	if err == nil {
		id := echo.String("id")
		if id == "" {
			return nil, &remote.APIError{Kind: remote.KindValidation, Resource: a.Resource,
				Message: "create response missing id"}
		}
		return &PushAck{RemoteID: id, Echo: echo}, nil
	}

	var ae *remote.APIError
	if errors.As(err, &ae) && ae.Kind == remote.KindAlreadyExists {
		existingID := ae.Existing.String("id")
		if existingID == "" {
			return nil, fmt.Errorf("duplicate create without existing id: %w", err)
		}
		echo, uerr := api.Update(ctx, a.Resource, existingID, payload)
		if uerr != nil {
			return nil, uerr
		}
		return &PushAck{RemoteID: existingID, Echo: echo}, nil
	}
	return nil, err
}

// baseToRemote serializes the shared sync fields.
func baseToRemote(b *models.SyncRecord) remote.Record {
	r := remote.Record{
		"local_id":   b.ID,
		"version":    b.Version,
		"is_deleted": b.IsDeleted,
		"created_at": b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if b.RemoteID != nil {
		r["id"] = *b.RemoteID
	}
	return r
}

// baseFromRemote parses the shared sync fields. The device-assigned
// local_id is the logical identity across devices; the remote id becomes
// RemoteID.
func baseFromRemote(rec remote.Record, b *models.SyncRecord) error {
	id := rec.String("id")
	if id == "" {
		return fmt.Errorf("remote record missing id")
	}
	b.RemoteID = &id
	b.ID = rec.String("local_id")
	if b.ID == "" {
		// Remote copies created outside this app have no device id; adopt
		// the remote id as the local key so identity stays stable.
		b.ID = id
	}
	b.Version = rec.Int("version")
	if b.Version < 1 {
		b.Version = 1
	}
	b.IsDeleted = rec.Bool("is_deleted")
	for key, dst := range map[string]*time.Time{
		"created_at": &b.CreatedAt,
		"updated_at": &b.UpdatedAt,
	} {
		if raw := rec.String(key); raw != "" {
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = t.UTC()
		}
	}
	return nil
}
