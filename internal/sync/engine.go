package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/remote"
	"github.com/pressloop/drycleanpos/internal/store"
)

// ErrSyncInProgress rejects overlapping passes; the engine runs one logical
// worker per pass.
var ErrSyncInProgress = errors.New("sync already in progress")

// Config tunes a sync pass.
type Config struct {
	// PushWorkers bounds concurrent pushes within one entity type. Pushes
	// are independent per record; reconciliation never overlaps them.
	PushWorkers int
	// PullLimit caps the remote list size per entity, 0 = remote default.
	PullLimit int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{PushWorkers: 4, PullLimit: 0}
}

// Engine orchestrates sync passes across all entity adapters: fixed
// dependency ordering, per-record isolation, conflict collection, and
// status reporting.
type Engine struct {
	store    *store.Store
	api      remote.API
	adapters map[models.EntityType]*Adapter
	resolver *Resolver
	cfg      Config
	sink     EventSink
	log      zerolog.Logger

	mu      gosync.Mutex
	syncing bool
}

// NewEngine creates an Engine. sink may be nil.
func NewEngine(st *store.Store, api remote.API, adapters map[models.EntityType]*Adapter, resolver *Resolver, cfg Config, sink EventSink, log zerolog.Logger) *Engine {
	if cfg.PushWorkers < 1 {
		cfg.PushWorkers = 1
	}
	return &Engine{
		store:    st,
		api:      api,
		adapters: adapters,
		resolver: resolver,
		cfg:      cfg,
		sink:     sink,
		log:      log.With().Str("component", "sync").Logger(),
	}
}

// Resolver exposes the conflict resolver for the HTTP surface.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Status reports per-entity totals and unsynced counts for the settings UI.
func (e *Engine) Status(ctx context.Context) (map[models.EntityType]store.EntityCount, error) {
	return e.store.Counts(ctx)
}

// SyncAll runs one full pass in the fixed dependency order. A failing
// entity type never blocks the others; cancellation is honored between
// entity types, and progress already committed stays valid.
func (e *Engine) SyncAll(ctx context.Context) (*Summary, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	summary := &Summary{
		PerEntity: make(map[models.EntityType]EntityStats, len(models.SyncOrder)),
		StartedAt: time.Now().UTC(),
	}
	e.log.Info().Msg("sync pass started")

	for _, et := range models.SyncOrder {
		select {
		case <-ctx.Done():
			summary.Aborted = true
			e.log.Warn().Str("entity", string(et)).Msg("sync pass aborted before entity")
		default:
		}
		if summary.Aborted {
			break
		}

		res := e.syncEntityLocked(ctx, et)
		summary.PerEntity[et] = res.Stats
		summary.Errors = append(summary.Errors, res.Errors...)
	}

	summary.Duration = time.Since(summary.StartedAt)
	summary.Success = !summary.Aborted && len(summary.Errors) == 0

	e.log.Info().
		Bool("success", summary.Success).
		Int("errors", len(summary.Errors)).
		Dur("duration", summary.Duration).
		Msg("sync pass finished")
	if len(summary.Errors) > 0 {
		e.log.Warn().Strs("errors", summary.ErrorSummary(5)).Msg("sync pass errors")
	}
	if e.sink != nil {
		e.sink.Publish("sync_result", summary)
	}
	return summary, nil
}

// SyncEntity runs the push/pull/reconcile cycle for a single entity type,
// used for targeted retries after a partial failure.
func (e *Engine) SyncEntity(ctx context.Context, et models.EntityType) (*EntityResult, error) {
	if _, ok := e.adapters[et]; !ok {
		return nil, fmt.Errorf("unknown entity type %q", et)
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	res := e.syncEntityLocked(ctx, et)
	if e.sink != nil {
		e.sink.Publish("sync_entity_result", res)
	}
	return res, nil
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return ErrSyncInProgress
	}
	e.syncing = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

// syncEntityLocked pushes all unsynced records for one entity type, then
// pulls and reconciles. Reconciliation strictly follows the pushes so a
// conflict is never resolved against data an in-flight push is about to
// change.
func (e *Engine) syncEntityLocked(ctx context.Context, et models.EntityType) *EntityResult {
	res := &EntityResult{Entity: et}
	a := e.adapters[et]

	unsynced, err := e.store.FindUnsynced(ctx, et)
	if err != nil {
		e.fail(res, "", "find_unsynced", err)
		return res
	}
	deletions, err := e.store.FindUnsyncedDeletions(ctx, et)
	if err != nil {
		e.fail(res, "", "find_deletions", err)
		return res
	}
	candidates := append(unsynced, deletions...)

	blocked, err := e.resolver.BlockedIDs(ctx, et)
	if err != nil {
		e.fail(res, "", "load_conflicts", err)
		return res
	}

	res.Stats.Total = len(candidates)
	e.pushAll(ctx, a, candidates, blocked, res)
	e.pullAndReconcile(ctx, a, res)

	e.log.Debug().
		Str("entity", string(et)).
		Int("total", res.Stats.Total).
		Int("synced", res.Stats.Synced).
		Int("failed", res.Stats.Failed).
		Int("skipped", res.Stats.Skipped).
		Int("pulled", res.Stats.Pulled).
		Int("conflicts", res.Stats.Conflicts).
		Msg("entity synced")
	return res
}

type pushOutcome struct {
	rec models.Syncable
	ack *PushAck
	err error
}

// pushAll dispatches pushes on a small fixed worker pool. Each push is
// independent; one failure never aborts the batch.
func (e *Engine) pushAll(ctx context.Context, a *Adapter, candidates []models.Syncable, blocked map[string]bool, res *EntityResult) {
	jobs := make(chan models.Syncable)
	outcomes := make(chan pushOutcome, len(candidates))

	var wg gosync.WaitGroup
	for i := 0; i < e.cfg.PushWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				ack, err := a.PushOne(ctx, e.api, rec)
				outcomes <- pushOutcome{rec: rec, ack: ack, err: err}
			}
		}()
	}

	for _, rec := range candidates {
		if blocked[rec.Base().ID] {
			res.Stats.Skipped++
			continue
		}
		jobs <- rec
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		e.recordPush(ctx, a, out, res)
	}
}

func (e *Engine) recordPush(ctx context.Context, a *Adapter, out pushOutcome, res *EntityResult) {
	id := out.rec.Base().ID
	if out.err == nil {
		// Synced as of the pushed snapshot, not the clock: an edit that
		// landed while the push was in flight stays a candidate.
		if _, err := e.store.MarkSynced(ctx, a.Entity, id, &out.ack.RemoteID, out.rec.Base().UpdatedAt); err != nil {
			e.fail(res, id, "mark_synced", err)
			return
		}
		res.Stats.Synced++
		return
	}

	switch remote.KindOf(out.err) {
	case remote.KindConflict:
		// Not a hard failure: the remote holds a divergent copy. Freeze the
		// record for the resolver; when the error carries no remote copy the
		// next pull will re-detect it anyway.
		var ae *remote.APIError
		if errors.As(out.err, &ae) && ae.Existing != nil {
			if _, rerr := e.resolver.Reconcile(ctx, a, ae.Existing); rerr != nil {
				e.fail(res, id, "push_conflict", rerr)
				return
			}
		}
		res.Stats.Skipped++
		res.Stats.Conflicts++
	case remote.KindValidation:
		e.fail(res, id, "push", out.err)
	default:
		// Transient, already retried up to the bound.
		e.fail(res, id, "push", out.err)
	}
}

// pullAndReconcile treats the remote list as the authoritative set and
// routes every record through the conflict resolver.
func (e *Engine) pullAndReconcile(ctx context.Context, a *Adapter, res *EntityResult) {
	records, err := e.api.List(ctx, a.Resource, e.cfg.PullLimit)
	if err != nil {
		e.fail(res, "", "pull", err)
		return
	}

	for _, rec := range records {
		outcome, err := e.resolver.Reconcile(ctx, a, rec)
		if err != nil {
			e.fail(res, rec.String("id"), "reconcile", err)
			continue
		}
		switch outcome {
		case OutcomeApplied:
			res.Stats.Pulled++
		case OutcomeConflict:
			res.Stats.Conflicts++
		case OutcomeBlocked:
			res.Stats.Skipped++
		}
	}
}

func (e *Engine) fail(res *EntityResult, recordID, op string, err error) {
	res.Stats.Failed++
	res.Errors = append(res.Errors, SyncError{
		Entity:    res.Entity,
		RecordID:  recordID,
		Operation: op,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
	e.log.Error().Err(err).
		Str("entity", string(res.Entity)).
		Str("record", recordID).
		Str("op", op).
		Msg("sync error")
}

// RunAutoSync triggers a pass every interval until the context is
// cancelled. A pass already in flight is skipped, not queued.
func (e *Engine) RunAutoSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info().Dur("interval", interval).Msg("auto sync started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("auto sync stopped")
			return
		case <-ticker.C:
			if _, err := e.SyncAll(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				e.log.Error().Err(err).Msg("auto sync pass failed")
			}
		}
	}
}
