package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

// MaxQuantity bounds every stored quantity. The stock columns are INTEGER.
const MaxQuantity = math.MaxInt32

// DefaultWarningLevel is used when a stock row is created lazily.
const DefaultWarningLevel = 10

// MovementKind is the direction of a stock movement.
type MovementKind string

const (
	MovementIn     MovementKind = "IN"
	MovementOut    MovementKind = "OUT"
	MovementAdjust MovementKind = "ADJUST"
)

// Valid reports whether k is one of the three known kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

// ReferenceType names the business document that caused a movement.
type ReferenceType string

const (
	RefManual         ReferenceType = "manual"
	RefInitialStock   ReferenceType = "initial_stock"
	RefSale           ReferenceType = "sale"
	RefSaleItemRemove ReferenceType = "sale_item_removed"
	RefSaleCancel     ReferenceType = "sale_cancelled"
	RefInventoryCheck ReferenceType = "inventory_check"
)

// StockLevel is the current on-hand quantity of one product.
// Quantity is never negative.
type StockLevel struct {
	ProductID    uuid.UUID
	Quantity     int
	WarningLevel int
	UpdatedAt    time.Time
}

// NewStockLevel returns an empty stock row.
func NewStockLevel(productID uuid.UUID, warningLevel int) *StockLevel {
	if warningLevel < 0 {
		warningLevel = DefaultWarningLevel
	}
	return &StockLevel{
		ProductID:    productID,
		WarningLevel: warningLevel,
		UpdatedAt:    time.Now().UTC(),
	}
}

// IsLowStock reports quantity <= warning level.
func (s *StockLevel) IsLowStock() bool {
	return s.Quantity <= s.WarningLevel
}

// SetWarningLevel changes the low-stock threshold.
func (s *StockLevel) SetWarningLevel(level int) error {
	if level < 0 || level > MaxQuantity {
		return domain.Invalid("warning level must be between 0 and %d", MaxQuantity)
	}
	s.WarningLevel = level
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Apply mutates the quantity according to kind and returns the magnitude
// to record on the movement. IN and OUT use |quantity|; ADJUST sets the
// quantity to an absolute, non-negative value. An OUT larger than the
// current quantity leaves the level untouched and returns
// *domain.InsufficientStockError.
func (s *StockLevel) Apply(kind MovementKind, quantity int) (int, error) {
	if quantity > MaxQuantity || quantity < -MaxQuantity {
		return 0, domain.Invalid("quantity %d is out of range", quantity)
	}
	magnitude := quantity
	if magnitude < 0 {
		magnitude = -magnitude
	}
	switch kind {
	case MovementIn:
		if magnitude == 0 {
			return 0, domain.Invalid("IN quantity must be non-zero")
		}
		if s.Quantity > MaxQuantity-magnitude {
			return 0, domain.Invalid("IN of %d would exceed the maximum stock of %d", magnitude, MaxQuantity)
		}
		s.Quantity += magnitude
	case MovementOut:
		if magnitude == 0 {
			return 0, domain.Invalid("OUT quantity must be non-zero")
		}
		if s.Quantity < magnitude {
			return 0, &domain.InsufficientStockError{
				ProductID: s.ProductID,
				Requested: magnitude,
				Available: s.Quantity,
			}
		}
		s.Quantity -= magnitude
	case MovementAdjust:
		if quantity < 0 {
			return 0, domain.Invalid("adjusted quantity must not be negative")
		}
		s.Quantity = quantity
	default:
		return 0, domain.Invalid("unknown movement kind %q", kind)
	}
	s.UpdatedAt = time.Now().UTC()
	return magnitude, nil
}

// StockMovement is an immutable ledger entry. Quantity is the magnitude
// (the absolute target for ADJUST); QuantityBefore and QuantityAfter
// capture the stock row around the change.
type StockMovement struct {
	ID             uuid.UUID
	Seq            int64
	ProductID      uuid.UUID
	Kind           MovementKind
	Quantity       int
	QuantityBefore int
	QuantityAfter  int
	OperatorID     uuid.UUID
	Note           string
	ReferenceType  ReferenceType
	ReferenceID    *uuid.UUID
	CreatedAt      time.Time
}

// StockView joins a stock row with the product fields reports need.
type StockView struct {
	StockLevel
	Barcode      string
	Name         string
	CategoryName string
	IsActive     bool
	Price        decimal.Decimal
	Cost         decimal.Decimal
}
