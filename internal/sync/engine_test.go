package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/remote"
	"github.com/pressloop/drycleanpos/internal/store"
)

type env struct {
	st       *store.Store
	api      *fakeAPI
	adapters map[models.EntityType]*Adapter
	resolver *Resolver
	engine   *Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db, zerolog.Nop())
	api := newFakeAPI()
	adapters := BuildAdapters()
	resolver := NewResolver(st, api, adapters, zerolog.Nop())
	engine := NewEngine(st, api, adapters, resolver, DefaultConfig(), nil, zerolog.Nop())
	return &env{st: st, api: api, adapters: adapters, resolver: resolver, engine: engine}
}

func (e *env) createCustomer(t *testing.T, phone string) *models.Customer {
	t.Helper()
	c := &models.Customer{FirstName: "Ada", Phone: phone}
	if err := e.st.Create(context.Background(), c); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func (e *env) syncAll(t *testing.T) *Summary {
	t.Helper()
	summary, err := e.engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	return summary
}

func TestSyncAllPushesInDependencyOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	records := []models.Syncable{
		&models.Business{Name: "Spotless"},
		&models.Employee{FirstName: "Ray", Role: models.RoleStaff, Active: true},
		&models.Category{Name: "Shirts", Active: true},
		&models.Product{Name: "Dress Shirt", Price: 4.5, Active: true},
		&models.Customer{FirstName: "Ada", Phone: "555-0100"},
		&models.Rack{Code: "A1", Capacity: 20},
	}
	for _, rec := range records {
		if err := e.st.Create(ctx, rec); err != nil {
			t.Fatalf("create %T: %v", rec, err)
		}
	}
	order := &models.Order{OrderNumber: "ORD20250901-0001", CustomerID: "c-1", Status: models.OrderStatusPending}
	if err := order.SetItems([]models.OrderItem{{ProductID: "p-1", Name: "Dress Shirt", Quantity: 2, Price: 4.5}}); err != nil {
		t.Fatalf("set items: %v", err)
	}
	if err := e.st.Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	summary := e.syncAll(t)
	if !summary.Success {
		t.Fatalf("summary not successful: %+v", summary.Errors)
	}

	want := []string{"businesses", "employees", "categories", "products", "customers", "orders", "racks"}
	if len(e.api.touched) != len(want) {
		t.Fatalf("touched resources = %v", e.api.touched)
	}
	for i, res := range want {
		if e.api.touched[i] != res {
			t.Fatalf("resource order = %v, want %v", e.api.touched, want)
		}
	}

	for _, et := range models.SyncOrder {
		unsynced, err := e.st.FindUnsynced(ctx, et)
		if err != nil {
			t.Fatalf("find unsynced %s: %v", et, err)
		}
		if len(unsynced) != 0 {
			t.Errorf("%s still has %d unsynced records", et, len(unsynced))
		}
	}

	got, err := e.st.Get(ctx, models.EntityTypeOrder, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Base().RemoteID == nil {
		t.Error("pushed order has no remote ID")
	}
}

func TestSecondPassIsNoop(t *testing.T) {
	e := newEnv(t)
	e.createCustomer(t, "555-0100")
	e.syncAll(t)

	creates := e.api.createCalls["customers"]
	summary := e.syncAll(t)

	if !summary.Success {
		t.Fatalf("second pass failed: %+v", summary.Errors)
	}
	if e.api.createCalls["customers"] != creates {
		t.Error("second pass re-created an already-synced record")
	}
	if e.api.updateCalls["customers"] != 0 {
		t.Error("second pass pushed an update with no local edits")
	}
	stats := summary.PerEntity[models.EntityTypeCustomer]
	if stats.Total != 0 || stats.Pulled != 0 || stats.Conflicts != 0 {
		t.Errorf("second pass stats = %+v, want all-quiet", stats)
	}
}

func TestRejectedRecordDoesNotAbortSiblings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		p := &models.Product{Name: string(rune('A' + i)), Price: float64(i) + 1, Active: true}
		if err := e.st.Create(ctx, p); err != nil {
			t.Fatalf("create product: %v", err)
		}
	}
	e.api.rejectCreate = func(resource string, payload remote.Record) *remote.APIError {
		if resource == "products" && payload.String("name") == "H" {
			return &remote.APIError{Kind: remote.KindValidation, Status: 422, Resource: resource, Message: "name rejected"}
		}
		return nil
	}
	e.createCustomer(t, "555-0100")

	summary := e.syncAll(t)

	stats := summary.PerEntity[models.EntityTypeProduct]
	if stats.Total != 10 || stats.Synced != 9 || stats.Failed != 1 {
		t.Errorf("product stats = %+v, want total 10 synced 9 failed 1", stats)
	}
	if summary.Success {
		t.Error("summary claims success despite a rejected record")
	}
	if len(summary.Errors) != 1 {
		t.Errorf("got %d errors, want exactly the rejected record", len(summary.Errors))
	}
	if cs := summary.PerEntity[models.EntityTypeCustomer]; cs.Synced != 1 {
		t.Errorf("customer stats = %+v, sibling entity was dragged down", cs)
	}

	unsynced, err := e.st.FindUnsynced(ctx, models.EntityTypeProduct)
	if err != nil {
		t.Fatalf("find unsynced: %v", err)
	}
	if len(unsynced) != 1 {
		t.Errorf("%d products left unsynced, want only the rejected one", len(unsynced))
	}
}

func TestDeletionPropagates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.createCustomer(t, "555-0100")
	e.syncAll(t)

	if err := e.st.SoftDelete(ctx, models.EntityTypeCustomer, c.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	summary := e.syncAll(t)
	if !summary.Success {
		t.Fatalf("pass failed: %+v", summary.Errors)
	}

	got, err := e.st.Get(ctx, models.EntityTypeCustomer, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rid := got.Base().RemoteID
	if rid == nil {
		t.Fatal("deleted record lost its remote ID")
	}
	if rec := e.api.get("customers", *rid); !rec.Bool("is_deleted") {
		t.Errorf("remote copy not tombstoned: %v", rec)
	}
}

func TestDuplicateCreateFallsBackToUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.createCustomer(t, "555-0100")
	// An earlier pass created the remote copy but the ack never landed.
	seededID := e.api.seed("customers", remote.Record{
		"local_id":   c.ID,
		"version":    1,
		"phone":      "555-0100",
		"first_name": "Ada",
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})

	c.Phone = "555-0199"
	if err := e.st.Update(ctx, c); err != nil {
		t.Fatalf("update: %v", err)
	}

	summary := e.syncAll(t)
	if !summary.Success {
		t.Fatalf("pass failed: %+v", summary.Errors)
	}

	got, err := e.st.Get(ctx, models.EntityTypeCustomer, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rid := got.Base().RemoteID; rid == nil || *rid != seededID {
		t.Errorf("remote ID = %v, want adopted %q", rid, seededID)
	}
	if rec := e.api.get("customers", seededID); rec.String("phone") != "555-0199" {
		t.Errorf("remote copy not updated: %v", rec)
	}
}

// divergeCustomer produces the classic two-sided edit: synced record,
// then a local phone change and an independent cloud phone change.
func divergeCustomer(t *testing.T, e *env) (*models.Customer, string) {
	t.Helper()
	ctx := context.Background()

	c := e.createCustomer(t, "555-0100")
	e.syncAll(t)

	got, err := e.st.Get(ctx, models.EntityTypeCustomer, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	local := got.(*models.Customer)
	local.Phone = "555-0111"
	if err := e.st.Update(ctx, local); err != nil {
		t.Fatalf("update: %v", err)
	}

	rid := *local.RemoteID
	e.api.mutate("customers", rid, func(rec remote.Record) {
		rec["phone"] = "555-0222"
		rec["version"] = 2
		rec["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	})
	return local, rid
}

func TestIndependentEditsRecordExactlyOneConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	local, _ := divergeCustomer(t, e)
	summary := e.syncAll(t)

	stats := summary.PerEntity[models.EntityTypeCustomer]
	if stats.Conflicts != 1 {
		t.Errorf("conflicts = %d, want 1", stats.Conflicts)
	}
	if stats.Synced != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, conflicted record must be neither synced nor failed", stats)
	}

	got, err := e.st.Get(ctx, models.EntityTypeCustomer, local.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.(*models.Customer).Phone != "555-0111" {
		t.Error("local copy was overwritten while conflicted")
	}

	pending, err := e.resolver.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending conflicts = %d, want 1", len(pending))
	}

	// A second pass must not duplicate the conflict or touch the record.
	e.syncAll(t)
	pending, err = e.resolver.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending conflicts after re-pull = %d, want still 1", len(pending))
	}
}

func TestResolveKeepCloud(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	local, _ := divergeCustomer(t, e)
	e.syncAll(t)

	if err := e.resolver.Resolve(ctx, models.EntityTypeCustomer, local.ID, models.ChoiceKeepCloud, "mgr-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := e.st.Get(ctx, models.EntityTypeCustomer, local.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.(*models.Customer).Phone != "555-0222" {
		t.Errorf("phone = %q, want the cloud copy", got.(*models.Customer).Phone)
	}
	if got.Base().Unsynced() {
		t.Error("resolved record still unsynced")
	}

	pending, err := e.resolver.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending conflicts = %d after resolution", len(pending))
	}

	summary := e.syncAll(t)
	if stats := summary.PerEntity[models.EntityTypeCustomer]; stats.Conflicts != 0 {
		t.Errorf("re-pull after keep-cloud re-detected a conflict: %+v", stats)
	}
}

func TestResolveKeepLocal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	local, rid := divergeCustomer(t, e)
	e.syncAll(t)

	if err := e.resolver.Resolve(ctx, models.EntityTypeCustomer, local.ID, models.ChoiceKeepLocal, "mgr-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	rec := e.api.get("customers", rid)
	if rec.String("phone") != "555-0111" {
		t.Errorf("remote phone = %q, want the local copy pushed", rec.String("phone"))
	}
	if rec.Int("version") <= 2 {
		t.Errorf("remote version = %d, must move past the divergent copy", rec.Int("version"))
	}

	pending, err := e.resolver.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending conflicts = %d after resolution", len(pending))
	}

	summary := e.syncAll(t)
	if stats := summary.PerEntity[models.EntityTypeCustomer]; stats.Conflicts != 0 || stats.Failed != 0 {
		t.Errorf("pass after keep-local = %+v, want clean", stats)
	}
}

func TestFirstTimeConvergenceAdoptsRemoteCopy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.createCustomer(t, "555-0100")
	rec := remote.Record{
		"id":         "r-cloud",
		"local_id":   c.ID,
		"version":    5,
		"phone":      "555-0555",
		"first_name": "Ada",
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}

	outcome, err := e.resolver.Reconcile(ctx, e.adapters[models.EntityTypeCustomer], rec)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}

	got, err := e.st.Get(ctx, models.EntityTypeCustomer, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	cust := got.(*models.Customer)
	if cust.Phone != "555-0555" {
		t.Errorf("phone = %q, the copy with a remote identity must win", cust.Phone)
	}
	if cust.IsLocalOnly {
		t.Error("record still local-only after convergence")
	}
	if cust.RemoteID == nil || *cust.RemoteID != "r-cloud" {
		t.Errorf("remote ID = %v, want r-cloud", cust.RemoteID)
	}
}

func TestSyncAllAbortsAtEntityBoundary(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := e.createCustomer(t, "555-0100")
	// Cancel while the first entity type is being pulled. The pass must
	// finish that entity and stop before the next one.
	e.api.onList = func(resource string) {
		if resource == "businesses" {
			cancel()
		}
	}

	summary, err := e.engine.SyncAll(ctx)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if !summary.Aborted {
		t.Error("summary not marked aborted")
	}
	if summary.Success {
		t.Error("aborted pass reported as success")
	}
	if len(summary.PerEntity) != 1 {
		t.Errorf("entities processed = %d, want only the first", len(summary.PerEntity))
	}
	if _, ok := summary.PerEntity[models.EntityTypeBusiness]; !ok {
		t.Errorf("per-entity stats = %v, want the completed businesses pass", summary.PerEntity)
	}
	if e.api.createCalls["customers"] != 0 {
		t.Errorf("customers pushed after cancellation: %d creates", e.api.createCalls["customers"])
	}

	unsynced, err := e.st.FindUnsynced(context.Background(), models.EntityTypeCustomer)
	if err != nil {
		t.Fatalf("find unsynced: %v", err)
	}
	if len(unsynced) != 1 || unsynced[0].Base().ID != c.ID {
		t.Errorf("skipped customer not left as a candidate for the next pass")
	}
}

func TestSyncEntityRejectsUnknownType(t *testing.T) {
	e := newEnv(t)
	if _, err := e.engine.SyncEntity(context.Background(), models.EntityType("giraffes")); err == nil {
		t.Fatal("expected an error for an unknown entity type")
	}
}
