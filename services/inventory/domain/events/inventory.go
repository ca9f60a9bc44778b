package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Watermill topics published by the inventory bounded context.
const (
	// TopicMovementRecorded is written through the transactional outbox in
	// the same transaction as the ledger entry.
	TopicMovementRecorded = "stock.movement_recorded"

	// TopicStockLow is published after commit when a movement leaves a
	// product at or below its warning level. Delivery is best effort.
	TopicStockLow = "stock.low"

	TopicCheckApproved = "inventory_check.approved"
	TopicSaleCompleted = "sale.completed"
	TopicSaleCancelled = "sale.cancelled"
)

// Version is the current schema version of every payload below.
const Version = 1

// MovementRecordedEvent mirrors one stock ledger entry.
type MovementRecordedEvent struct {
	EventID        uuid.UUID  `json:"event_id"`
	Version        int        `json:"version"`
	MovementID     uuid.UUID  `json:"movement_id"`
	ProductID      uuid.UUID  `json:"product_id"`
	Barcode        string     `json:"barcode"`
	Kind           string     `json:"kind"`
	Quantity       int        `json:"quantity"`
	QuantityBefore int        `json:"quantity_before"`
	QuantityAfter  int        `json:"quantity_after"`
	OperatorID     uuid.UUID  `json:"operator_id"`
	ReferenceType  string     `json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID `json:"reference_id,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// LowStockEvent signals that a product needs replenishing.
type LowStockEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	Version      int       `json:"version"`
	ProductID    uuid.UUID `json:"product_id"`
	Barcode      string    `json:"barcode"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	WarningLevel int       `json:"warning_level"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// CheckApprovedEvent is recorded when an inventory check is approved.
type CheckApprovedEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	Version       int       `json:"version"`
	CheckID       uuid.UUID `json:"check_id"`
	ApprovedBy    uuid.UUID `json:"approved_by"`
	Adjusted      bool      `json:"adjusted"`
	AdjustedItems int       `json:"adjusted_items"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// SaleEvent is recorded when a sale completes or is cancelled.
type SaleEvent struct {
	EventID      uuid.UUID       `json:"event_id"`
	Version      int             `json:"version"`
	SaleID       uuid.UUID       `json:"sale_id"`
	MemberID     *uuid.UUID      `json:"member_id,omitempty"`
	Status       string          `json:"status"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	PointsEarned int             `json:"points_earned"`
	OperatorID   uuid.UUID       `json:"operator_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
