package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

func TestRole_Can(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermManageOperators, true},
		{RoleManager, PermApproveChecks, true},
		{RoleManager, PermManageOperators, false},
		{RoleStockKeeper, PermStockAdjust, true},
		{RoleStockKeeper, PermApproveChecks, false},
		{RoleStockKeeper, PermSell, false},
		{RoleCashier, PermSell, true},
		{RoleCashier, PermCountInventory, true},
		{RoleCashier, PermStockOut, false},
		{Role("intern"), PermCountInventory, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := tt.role.Can(tt.perm); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActor_Authorize(t *testing.T) {
	if err := (Actor{ID: uuid.New(), Role: RoleCashier}).Authorize(PermStockAdjust); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := (Actor{Role: RoleAdmin}).Authorize(PermSell); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("anonymous actor must be forbidden, got %v", err)
	}
	if err := (Actor{ID: uuid.New(), Role: RoleManager}).Authorize(PermApproveChecks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMovementPermission(t *testing.T) {
	if MovementPermission(MovementIn) != PermStockIn ||
		MovementPermission(MovementOut) != PermStockOut ||
		MovementPermission(MovementAdjust) != PermStockAdjust {
		t.Fatal("unexpected movement permission mapping")
	}
}

func TestNewOperator(t *testing.T) {
	if _, err := NewOperator("alice", "hash", Role("owner")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
	op, err := NewOperator(" alice ", "hash", RoleCashier)
	if err != nil {
		t.Fatalf("NewOperator: %v", err)
	}
	if op.Username != "alice" || op.Actor().Role != RoleCashier {
		t.Fatalf("unexpected operator: %+v", op)
	}
}
