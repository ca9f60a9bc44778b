package services_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/events"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/persistence/memory"
)

func itemFor(t *testing.T, d *services.CheckDetail, productID uuid.UUID) *models.InventoryCheckItem {
	t.Helper()
	for _, it := range d.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("no check item for product %s", productID)
	return nil
}

// countedCheck creates, starts and counts a check over the given products.
func countedCheck(t *testing.T, f *fixture, actual map[uuid.UUID]int) *services.CheckDetail {
	t.Helper()
	d, err := f.svc.Checks.Create(f.ctx, f.admin, "Monthly count", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Checks.Start(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for productID, qty := range actual {
		it := itemFor(t, d, productID)
		if _, err := f.svc.Checks.RecordCount(f.ctx, f.admin, d.Check.ID, it.ID, qty, ""); err != nil {
			t.Fatalf("RecordCount: %v", err)
		}
	}
	return d
}

func TestCheck_SnapshotCountApprove(t *testing.T) {
	f := newFixture(t)
	a := f.product("7001", "5.00", "2.00", 10)
	b := f.product("7002", "5.00", "3.00", 5)

	d := countedCheck(t, f, map[uuid.UUID]int{a.ID: 8, b.ID: 7})
	if got := itemFor(t, d, a.ID).SystemQuantity; got != 10 {
		t.Errorf("snapshot of A = %d, want 10", got)
	}
	if got := itemFor(t, d, b.ID).SystemQuantity; got != 5 {
		t.Errorf("snapshot of B = %d, want 5", got)
	}

	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	summary, err := f.svc.Checks.Summary(f.ctx, d.Check.ID)
	if err != nil {
		t.Fatal(err)
	}
	if summary.CheckedItems != 2 || summary.SurplusItems != 1 || summary.ShortageItems != 1 {
		t.Errorf("summary = %+v", summary)
	}
	// -2 * 2.00 + 2 * 3.00
	if !summary.NetValueChange.Equal(dec("2")) {
		t.Errorf("net value change = %s, want 2", summary.NetValueChange)
	}

	check, err := f.svc.Checks.Approve(f.ctx, actor(models.RoleManager), d.Check.ID, true)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if check.Status != models.CheckApproved || !check.Adjusted || check.ApprovedBy == nil {
		t.Errorf("check = %+v", check)
	}
	if f.quantity(a.ID) != 8 || f.quantity(b.ID) != 7 {
		t.Errorf("quantities = %d/%d, want 8/7", f.quantity(a.ID), f.quantity(b.ID))
	}
	for _, p := range []*models.Product{a, b} {
		mv := f.movements(p.ID)
		last := mv[len(mv)-1]
		if last.Kind != models.MovementAdjust || last.ReferenceType != models.RefInventoryCheck || *last.ReferenceID != d.Check.ID {
			t.Errorf("%s: last movement = %+v", p.Barcode, last)
		}
	}
	if got := count(f.outboxTopics(), events.TopicCheckApproved); got != 1 {
		t.Errorf("inventory_check.approved records = %d, want 1", got)
	}

	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, true); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("second approval: got %v", err)
	}
	if len(f.movements(a.ID)) != 2 {
		t.Error("second approval must not adjust again")
	}
}

func TestCheck_ApproveSetsCountedQuantityDespiteDrift(t *testing.T) {
	f := newFixture(t)
	p := f.product("7003", "5.00", "2.00", 10)
	d := countedCheck(t, f, map[uuid.UUID]int{p.ID: 8})
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}

	// Stock moves between count and approval.
	if _, err := f.svc.Stock.ApplyMovement(f.ctx, f.admin, services.MovementRequest{
		ProductID: p.ID, Kind: models.MovementOut, Quantity: 3,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, true); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := f.quantity(p.ID); got != 8 {
		t.Fatalf("quantity = %d, want the counted 8 not 7+(-2)", got)
	}
}

func TestCheck_ApproveWithoutAdjustLeavesLedger(t *testing.T) {
	f := newFixture(t)
	p := f.product("7004", "5.00", "2.00", 10)
	d := countedCheck(t, f, map[uuid.UUID]int{p.ID: 4})
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}
	check, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if check.Status != models.CheckApproved || check.Adjusted {
		t.Errorf("check = %+v", check)
	}
	if f.quantity(p.ID) != 10 || len(f.movements(p.ID)) != 1 {
		t.Error("approval without adjustment must not touch the ledger")
	}
}

func TestCheck_CompleteWithUncheckedItems(t *testing.T) {
	f := newFixture(t)
	a := f.product("7005", "1", "1", 1)
	f.product("7006", "1", "1", 1)
	d := countedCheck(t, f, map[uuid.UUID]int{a.ID: 1})

	_, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 items") {
		t.Errorf("error should name the unchecked count: %v", err)
	}
	got, err := f.svc.Checks.Get(f.ctx, d.Check.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Check.Status != models.CheckInProgress {
		t.Errorf("status = %s, want in_progress", got.Check.Status)
	}
	if got.Summary.UncheckedItems != 1 {
		t.Errorf("unchecked = %d", got.Summary.UncheckedItems)
	}
}

func TestCheck_RecordCount(t *testing.T) {
	f := newFixture(t)
	p := f.product("7007", "1", "1", 6)
	d, err := f.svc.Checks.Create(f.ctx, f.admin, "Spot check", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	it := itemFor(t, d, p.ID)

	if _, err := f.svc.Checks.RecordCount(f.ctx, f.admin, d.Check.ID, it.ID, 5, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("count on draft: got %v", err)
	}
	if _, err := f.svc.Checks.Start(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checks.RecordCount(f.ctx, f.admin, d.Check.ID, it.ID, -1, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative count: got %v", err)
	}
	if _, err := f.svc.Checks.RecordCount(f.ctx, f.admin, d.Check.ID, uuid.New(), 1, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown item: got %v", err)
	}

	cashier := actor(models.RoleCashier)
	for range 2 {
		got, err := f.svc.Checks.RecordCount(f.ctx, cashier, d.Check.ID, it.ID, 4, "shelf B")
		if err != nil {
			t.Fatalf("RecordCount: %v", err)
		}
		if *got.Difference != -2 || *got.CountedBy != cashier.ID || got.Notes != "shelf B" {
			t.Errorf("item = %+v", got)
		}
	}
	if len(f.movements(p.ID)) != 1 {
		t.Error("counting must not write movements")
	}

	other, err := f.svc.Checks.Create(f.ctx, f.admin, "Other", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checks.Start(f.ctx, f.admin, other.Check.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checks.RecordCount(f.ctx, f.admin, other.Check.ID, it.ID, 1, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("item of another check: got %v", err)
	}
}

func TestCheck_Transitions(t *testing.T) {
	f := newFixture(t)
	f.product("7008", "1", "1", 1)
	d, err := f.svc.Checks.Create(f.ctx, f.admin, "Transitions", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	id := d.Check.ID

	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, id); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("complete from draft: got %v", err)
	}
	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, id, false); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("approve from draft: got %v", err)
	}
	if _, err := f.svc.Checks.Start(f.ctx, actor(models.RoleCashier), id); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("cashier start: got %v", err)
	}
	if _, err := f.svc.Checks.Approve(f.ctx, actor(models.RoleStockKeeper), id, false); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("stock keeper approve: got %v", err)
	}
	check, err := f.svc.Checks.Cancel(f.ctx, f.admin, id)
	if err != nil {
		t.Fatal(err)
	}
	if check.Status != models.CheckCancelled || check.CancelledAt == nil {
		t.Errorf("check = %+v", check)
	}
	if _, err := f.svc.Checks.Start(f.ctx, f.admin, id); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("start after cancel: got %v", err)
	}
}

func TestCheck_CompleteTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	p := f.product("7009", "1", "1", 1)
	d := countedCheck(t, f, map[uuid.UUID]int{p.ID: 1})
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("re-complete: got %v", err)
	}
}

func TestCheck_CreateScope(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Checks.Create(f.ctx, f.admin, "Empty", "", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty scope: got %v", err)
	}
	checks, total, err := f.svc.Checks.List(f.ctx, "", repositories.QueryOpts{})
	if err != nil || total != 0 || len(checks) != 0 {
		t.Fatalf("failed create must not persist a check: %d, %v", total, err)
	}

	cat, err := f.svc.Catalog.CreateCategory(f.ctx, f.admin, "Snacks", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Catalog.CreateProduct(f.ctx, f.admin, services.CreateProductRequest{
		Barcode: "7010", Attributes: models.ProductAttributes{Name: "Chips", CategoryID: &cat.ID},
	}); err != nil {
		t.Fatal(err)
	}
	f.product("7011", "1", "1", 2)

	// Deactivated products stay out of the snapshot.
	retired, err := f.svc.Catalog.CreateProduct(f.ctx, f.admin, services.CreateProductRequest{
		Barcode: "7013", Attributes: models.ProductAttributes{Name: "Old crisps", CategoryID: &cat.ID}, InitialStock: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Catalog.SetProductActive(f.ctx, f.admin, retired.ID, false); err != nil {
		t.Fatal(err)
	}

	// A product created outside the catalogue service has no stock row yet.
	bare, err := models.NewProduct("7012", models.ProductAttributes{Name: "Crackers", CategoryID: &cat.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.mem.Products().Create(f.ctx, bare); err != nil {
		t.Fatal(err)
	}

	d, err := f.svc.Checks.Create(f.ctx, f.admin, "Snacks only", "", &cat.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(d.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(d.Items))
	}
	if it := itemFor(t, d, bare.ID); it.SystemQuantity != 0 {
		t.Errorf("lazy row snapshot = %d", it.SystemQuantity)
	}
	if _, err := f.mem.Stock().Get(f.ctx, bare.ID); err != nil {
		t.Errorf("snapshot should create the stock row: %v", err)
	}

	missing := uuid.New()
	if _, err := f.svc.Checks.Create(f.ctx, f.admin, "Nope", "", &missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown category: got %v", err)
	}
	if _, _, err := f.svc.Checks.List(f.ctx, "bogus", repositories.QueryOpts{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown status: got %v", err)
	}
}

func TestCheck_ApprovalIsAtomic(t *testing.T) {
	var fs *faultyStore
	f := newFixtureWith(t, func(m *memory.Store) repositories.Store {
		fs = &faultyStore{Store: m}
		return fs
	}, func(*services.Deps) {})
	a := f.product("7013", "1", "1", 10)
	b := f.product("7014", "1", "1", 10)
	c := f.product("7015", "1", "1", 10)
	d := countedCheck(t, f, map[uuid.UUID]int{a.ID: 1, b.ID: 2, c.ID: 3})
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}

	fs.arm(2)
	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, true); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	for _, p := range []*models.Product{a, b, c} {
		if got := f.quantity(p.ID); got != 10 {
			t.Errorf("%s: quantity = %d, want untouched 10", p.Barcode, got)
		}
		if got := len(f.movements(p.ID)); got != 1 {
			t.Errorf("%s: movements = %d, want 1", p.Barcode, got)
		}
	}
	got, err := f.svc.Checks.Get(f.ctx, d.Check.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Check.Status != models.CheckCompleted {
		t.Fatalf("status = %s, want completed after rollback", got.Check.Status)
	}

	fs.arm(0)
	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, true); err != nil {
		t.Fatalf("retry Approve: %v", err)
	}
	if f.quantity(a.ID) != 1 || f.quantity(b.ID) != 2 || f.quantity(c.ID) != 3 {
		t.Error("retry should apply every adjustment")
	}
}

func TestCheck_Export(t *testing.T) {
	f := newFixture(t)
	f.product("7016", "1", "1", 1)
	d, err := f.svc.Checks.Create(f.ctx, f.admin, "Export", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.svc.Checks.Export(f.ctx, actor(models.RoleCashier), d.Check.ID, &buf); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("cashier export: got %v", err)
	}
	if err := f.svc.Checks.Export(f.ctx, f.admin, uuid.New(), &buf); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown check: got %v", err)
	}
	if err := f.svc.Checks.Export(f.ctx, f.admin, d.Check.ID, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty workbook")
	}
}
