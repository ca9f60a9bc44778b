package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

// Permission names an action that must be authorized before it runs.
type Permission string

const (
	PermManageCatalog    Permission = "catalog.manage"
	PermStockIn          Permission = "stock.in"
	PermStockOut         Permission = "stock.out"
	PermStockAdjust      Permission = "stock.adjust"
	PermCountInventory   Permission = "inventory.count"
	PermManageChecks     Permission = "inventory.manage_checks"
	PermApproveChecks    Permission = "inventory.approve"
	PermSell             Permission = "sales.sell"
	PermRefundSale       Permission = "sales.refund"
	PermManageMembers    Permission = "members.manage"
	PermManageOperators  Permission = "operators.manage"
	PermViewReports      Permission = "reports.view"
	PermViewOperationLog Permission = "system.view_logs"
)

// MovementPermission maps a manual movement kind to the permission it needs.
func MovementPermission(kind MovementKind) Permission {
	switch kind {
	case MovementIn:
		return PermStockIn
	case MovementOut:
		return PermStockOut
	default:
		return PermStockAdjust
	}
}

// Role is an operator's job function.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleStockKeeper Role = "stock_keeper"
	RoleCashier     Role = "cashier"
)

var rolePermissions = map[Role][]Permission{
	RoleStockKeeper: {
		PermManageCatalog, PermStockIn, PermStockOut, PermStockAdjust,
		PermCountInventory, PermManageChecks, PermViewReports,
	},
	RoleCashier: {PermSell, PermManageMembers, PermCountInventory},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStockKeeper, RoleCashier:
		return true
	}
	return false
}

// Can reports whether the role holds p. Admins and managers hold every
// permission except operator management, which is admin-only.
func (r Role) Can(p Permission) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleManager:
		return p != PermManageOperators
	}
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// Actor is the authenticated operator performing an action.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Authorize returns ErrForbidden unless the actor holds p.
func (a Actor) Authorize(p Permission) error {
	if a.ID == uuid.Nil || !a.Role.Can(p) {
		return domain.Forbidden(string(p))
	}
	return nil
}

// Operator is a staff account.
type Operator struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// NewOperator constructs an active operator from an already hashed password.
func NewOperator(username, passwordHash string, role Role) (*Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 64 {
		return nil, domain.Invalid("username must be 1-64 characters")
	}
	if !role.Valid() {
		return nil, domain.Invalid("unknown role %q", role)
	}
	return &Operator{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Actor returns the identity used for authorization.
func (o *Operator) Actor() Actor {
	return Actor{ID: o.ID, Role: o.Role}
}
