package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/pressloop/drycleanpos/internal/remote"
)

// fakeAPI is an in-memory remote with the same contract as the HTTP
// client: duplicate creates are rejected with the existing copy, stale
// updates are rejected with a version conflict.
type fakeAPI struct {
	mu        gosync.Mutex
	records   map[string]map[string]remote.Record // resource -> remote id -> copy
	byLocalID map[string]map[string]string        // resource -> local_id -> remote id
	listing   map[string][]string                 // stable list order per resource
	touched   []string                            // resources in first-touch order

	nextID       int
	createCalls  map[string]int
	updateCalls  map[string]int
	rejectCreate func(resource string, payload remote.Record) *remote.APIError
	onList       func(resource string)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		records:     make(map[string]map[string]remote.Record),
		byLocalID:   make(map[string]map[string]string),
		listing:     make(map[string][]string),
		createCalls: make(map[string]int),
		updateCalls: make(map[string]int),
	}
}

func cloneRecord(r remote.Record) remote.Record {
	out := make(remote.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (f *fakeAPI) touch(resource string) {
	for _, r := range f.touched {
		if r == resource {
			return
		}
	}
	f.touched = append(f.touched, resource)
}

func (f *fakeAPI) ensure(resource string) {
	if f.records[resource] == nil {
		f.records[resource] = make(map[string]remote.Record)
		f.byLocalID[resource] = make(map[string]string)
	}
}

// seed injects a record as if another device had pushed it.
func (f *fakeAPI) seed(resource string, rec remote.Record) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure(resource)
	id, _ := rec["id"].(string)
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("r-%d", f.nextID)
	}
	stored := cloneRecord(rec)
	stored["id"] = id
	f.records[resource][id] = stored
	if lid := stored.String("local_id"); lid != "" {
		f.byLocalID[resource][lid] = id
	}
	f.listing[resource] = append(f.listing[resource], id)
	return id
}

// mutate edits a stored record in place, as a cloud-side change would.
func (f *fakeAPI) mutate(resource, id string, change func(remote.Record)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[resource][id]; ok {
		change(rec)
	}
}

func (f *fakeAPI) get(resource, id string) remote.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[resource][id]; ok {
		return cloneRecord(rec)
	}
	return nil
}

func (f *fakeAPI) Create(ctx context.Context, resource string, payload remote.Record) (remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch(resource)
	f.ensure(resource)
	f.createCalls[resource]++

	if f.rejectCreate != nil {
		if ae := f.rejectCreate(resource, payload); ae != nil {
			return nil, ae
		}
	}

	if lid := payload.String("local_id"); lid != "" {
		if existingID, ok := f.byLocalID[resource][lid]; ok {
			return nil, &remote.APIError{
				Kind:     remote.KindAlreadyExists,
				Status:   409,
				Resource: resource,
				Message:  "record already exists",
				Existing: cloneRecord(f.records[resource][existingID]),
			}
		}
	}

	f.nextID++
	id := fmt.Sprintf("r-%d", f.nextID)
	stored := cloneRecord(payload)
	stored["id"] = id
	f.records[resource][id] = stored
	if lid := stored.String("local_id"); lid != "" {
		f.byLocalID[resource][lid] = id
	}
	f.listing[resource] = append(f.listing[resource], id)
	return cloneRecord(stored), nil
}

func (f *fakeAPI) Update(ctx context.Context, resource, id string, payload remote.Record) (remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch(resource)
	f.ensure(resource)
	f.updateCalls[resource]++

	existing, ok := f.records[resource][id]
	if !ok {
		return nil, &remote.APIError{Kind: remote.KindNotFound, Status: 404, Resource: resource, Message: "no such record"}
	}
	// Optimistic concurrency: an update must carry a version strictly
	// above the stored one.
	if payload.Int("version") <= existing.Int("version") {
		return nil, &remote.APIError{
			Kind:     remote.KindConflict,
			Status:   409,
			Resource: resource,
			Message:  "stale version",
			Existing: cloneRecord(existing),
		}
	}

	stored := cloneRecord(payload)
	stored["id"] = id
	f.records[resource][id] = stored
	if lid := stored.String("local_id"); lid != "" {
		f.byLocalID[resource][lid] = id
	}
	return cloneRecord(stored), nil
}

func (f *fakeAPI) List(ctx context.Context, resource string, limit int) ([]remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch(resource)
	if f.onList != nil {
		f.onList(resource)
	}
	out := make([]remote.Record, 0, len(f.listing[resource]))
	for _, id := range f.listing[resource] {
		out = append(out, cloneRecord(f.records[resource][id]))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
