package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

// OperationType groups operation log entries by area.
type OperationType string

const (
	OpCatalog        OperationType = "CATALOG"
	OpInventory      OperationType = "INVENTORY"
	OpInventoryCheck OperationType = "INVENTORY_CHECK"
	OpSale           OperationType = "SALE"
	OpMember         OperationType = "MEMBER"
	OpOperator       OperationType = "OPERATOR"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	switch t {
	case OpCatalog, OpInventory, OpInventoryCheck, OpSale, OpMember, OpOperator:
		return true
	}
	return false
}

// OperationLog records who did what to which object. Entries are written
// in the transaction of the change they describe and never updated.
type OperationLog struct {
	ID          uuid.UUID
	OperatorID  uuid.UUID
	Type        OperationType
	Action      string // e.g. "check.approve", "product.update"
	Details     string
	RelatedType string
	RelatedID   uuid.UUID
	CreatedAt   time.Time

	// Read-only, populated on load.
	OperatorName string
}

// NewOperationLog stamps an entry for actor. RelatedType names the
// aggregate ("product", "inventory_check", ...) RelatedID points at.
func NewOperationLog(actor Actor, typ OperationType, action, relatedType string, relatedID uuid.UUID, details string) (*OperationLog, error) {
	if actor.ID == uuid.Nil {
		return nil, domain.Invalid("operation log needs an operator")
	}
	if !typ.Valid() {
		return nil, domain.Invalid("unknown operation type %q", typ)
	}
	if action == "" {
		return nil, domain.Invalid("operation log needs an action")
	}
	return &OperationLog{
		ID:          uuid.New(),
		OperatorID:  actor.ID,
		Type:        typ,
		Action:      action,
		Details:     details,
		RelatedType: relatedType,
		RelatedID:   relatedID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
