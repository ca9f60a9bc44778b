package services_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/persistence/memory"
)

func (f *fixture) actions(filter repositories.OperationLogFilter) []string {
	f.t.Helper()
	logs, _, err := f.svc.OpLogs.List(f.ctx, f.admin, filter)
	if err != nil {
		f.t.Fatalf("List operation logs: %v", err)
	}
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Action
	}
	return out
}

func TestOperationLog_CheckLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.product("7101", "5.00", "2.00", 10)

	d := countedCheck(t, f, map[uuid.UUID]int{a.ID: 8})
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, true); err != nil {
		t.Fatal(err)
	}

	got := f.actions(repositories.OperationLogFilter{RelatedID: &d.Check.ID})
	want := []string{"check.approved", "check.completed", "check.started", "check.created"}
	if !slices.Equal(got, want) {
		t.Fatalf("check trail = %v, want %v", got, want)
	}
	logs, _, _ := f.svc.OpLogs.List(f.ctx, f.admin, repositories.OperationLogFilter{RelatedID: &d.Check.ID, Type: models.OpInventoryCheck})
	if len(logs) != 4 || logs[0].OperatorID != f.admin.ID {
		t.Fatalf("entries must belong to the acting operator: %+v", logs)
	}

	// Counting alone is not an operation worth logging; the product trail
	// holds its creation only.
	if got := f.actions(repositories.OperationLogFilter{RelatedID: &a.ID}); !slices.Equal(got, []string{"product.created"}) {
		t.Fatalf("product trail = %v", got)
	}
}

func TestOperationLog_WrittenWithTheChange(t *testing.T) {
	var fs *faultyStore
	f := newFixtureWith(t, func(m *memory.Store) repositories.Store {
		fs = &faultyStore{Store: m}
		return fs
	}, func(*services.Deps) {})
	a := f.product("7102", "1", "1", 10)
	d := countedCheck(t, f, map[uuid.UUID]int{a.ID: 4})
	if _, err := f.svc.Checks.Complete(f.ctx, f.admin, d.Check.ID); err != nil {
		t.Fatal(err)
	}

	fs.arm(1)
	if _, err := f.svc.Checks.Approve(f.ctx, f.admin, d.Check.ID, true); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if got := f.actions(repositories.OperationLogFilter{RelatedID: &d.Check.ID}); slices.Contains(got, "check.approved") {
		t.Fatalf("rolled back approval left a log entry: %v", got)
	}

	_, err := f.svc.Stock.ApplyMovement(f.ctx, f.admin, services.MovementRequest{ProductID: a.ID, Kind: models.MovementOut, Quantity: 50})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := f.actions(repositories.OperationLogFilter{RelatedID: &a.ID}); slices.Contains(got, "stock.out") {
		t.Fatalf("rejected movement left a log entry: %v", got)
	}
}

func TestOperationLog_Coverage(t *testing.T) {
	f := newFixture(t)
	cat, err := f.svc.Catalog.CreateCategory(f.ctx, f.admin, "Tea", "")
	if err != nil {
		t.Fatal(err)
	}
	p := f.product("7103", "4.00", "2.00", 0)
	if _, err := f.svc.Stock.ApplyMovement(f.ctx, f.admin, services.MovementRequest{ProductID: p.ID, Kind: models.MovementIn, Quantity: 12, Note: "delivery"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Stock.SetWarningLevel(f.ctx, f.admin, p.ID, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Catalog.SetProductActive(f.ctx, f.admin, p.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Auth.CreateOperator(f.ctx, f.admin, "till9", "till-password", models.RoleCashier); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter repositories.OperationLogFilter
		want   []string
	}{
		{"category", repositories.OperationLogFilter{RelatedID: &cat.ID}, []string{"category.created"}},
		{"product", repositories.OperationLogFilter{RelatedID: &p.ID},
			[]string{"product.deactivated", "stock.warning_level", "stock.in", "product.created"}},
		{"operators", repositories.OperationLogFilter{Type: models.OpOperator}, []string{"operator.created"}},
		{"search details", repositories.OperationLogFilter{Search: "delivery"}, []string{"stock.in"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.actions(tt.filter); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperationLog_List(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		actor   models.Actor
		filter  repositories.OperationLogFilter
		wantErr error
	}{
		{"cashier is forbidden", actor(models.RoleCashier), repositories.OperationLogFilter{}, domain.ErrForbidden},
		{"stock keeper is forbidden", actor(models.RoleStockKeeper), repositories.OperationLogFilter{}, domain.ErrForbidden},
		{"manager may read", actor(models.RoleManager), repositories.OperationLogFilter{}, nil},
		{"unknown type", f.admin, repositories.OperationLogFilter{Type: "OTHER"}, domain.ErrValidation},
		{"inverted range", f.admin, repositories.OperationLogFilter{Since: &now, Until: &earlier}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.OpLogs.List(f.ctx, tt.actor, tt.filter)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
