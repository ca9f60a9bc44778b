package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleOpen      SaleStatus = "open"
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

// PaymentMethod records how a sale was settled.
type PaymentMethod string

const (
	PayCash    PaymentMethod = "cash"
	PayWechat  PaymentMethod = "wechat"
	PayAlipay  PaymentMethod = "alipay"
	PayCard    PaymentMethod = "card"
	PayBalance PaymentMethod = "balance"
	PayMixed   PaymentMethod = "mixed"
	PayOther   PaymentMethod = "other"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayWechat, PayAlipay, PayCard, PayBalance, PayMixed, PayOther:
		return true
	}
	return false
}

// UsesBalance reports whether settlement debits a member balance.
func (m PaymentMethod) UsesBalance() bool {
	return m == PayBalance || m == PayMixed
}

// moneyPlaces is the scale money amounts are rounded to.
const moneyPlaces = 2

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Sale is a point-of-sale transaction. Items deduct stock as they are
// added; completion settles payment and member benefits.
type Sale struct {
	ID             uuid.UUID
	MemberID       *uuid.UUID
	Status         SaleStatus
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	PointsEarned   int
	PaymentMethod  PaymentMethod
	BalancePaid    decimal.Decimal
	OperatorID     uuid.UUID
	Remark         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time

	Items []*SaleItem
}

// NewSale opens an empty sale.
func NewSale(operatorID uuid.UUID, memberID *uuid.UUID, remark string) *Sale {
	now := time.Now().UTC()
	return &Sale{
		ID:         uuid.New(),
		MemberID:   memberID,
		Status:     SaleOpen,
		OperatorID: operatorID,
		Remark:     remark,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EnsureOpen returns ErrInvalidTransition unless the sale is open.
func (s *Sale) EnsureOpen() error {
	if s.Status != SaleOpen {
		return fmt.Errorf("%w: sale is %s", domain.ErrInvalidTransition, s.Status)
	}
	return nil
}

// AddItem appends a line and recomputes totals.
func (s *Sale) AddItem(item *SaleItem) error {
	if err := s.EnsureOpen(); err != nil {
		return err
	}
	s.Items = append(s.Items, item)
	s.Recalculate(decimal.Zero)
	return nil
}

// RemoveItem detaches the line with itemID and recomputes totals.
func (s *Sale) RemoveItem(itemID uuid.UUID) (*SaleItem, error) {
	if err := s.EnsureOpen(); err != nil {
		return nil, err
	}
	for i, it := range s.Items {
		if it.ID == itemID {
			s.Items = append(s.Items[:i:i], s.Items[i+1:]...)
			s.Recalculate(decimal.Zero)
			return it, nil
		}
	}
	return nil, domain.NotFound("sale item", itemID)
}

// Recalculate sets TotalAmount to the sum of item subtotals and applies
// discount, clamped to [0, total].
func (s *Sale) Recalculate(discount decimal.Decimal) {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Subtotal)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(total) {
		discount = total
	}
	s.TotalAmount = total
	s.DiscountAmount = RoundMoney(discount)
	s.FinalAmount = total.Sub(s.DiscountAmount)
	s.UpdatedAt = time.Now().UTC()
}

// Complete settles an open sale with at least one item.
func (s *Sale) Complete(method PaymentMethod, balancePaid decimal.Decimal, points int) error {
	if err := s.EnsureOpen(); err != nil {
		return err
	}
	if len(s.Items) == 0 {
		return domain.Invalid("cannot complete a sale without items")
	}
	if !method.Valid() {
		return domain.Invalid("unknown payment method %q", method)
	}
	now := time.Now().UTC()
	s.Status = SaleCompleted
	s.PaymentMethod = method
	s.BalancePaid = balancePaid
	s.PointsEarned = points
	s.UpdatedAt = now
	s.CompletedAt = &now
	return nil
}

// Cancel voids an open or completed sale.
func (s *Sale) Cancel() error {
	if s.Status == SaleCancelled {
		return fmt.Errorf("%w: sale is already cancelled", domain.ErrInvalidTransition)
	}
	now := time.Now().UTC()
	s.Status = SaleCancelled
	s.UpdatedAt = now
	s.CancelledAt = &now
	return nil
}

// SaleItem is one product line of a sale. Price is the catalogue price at
// the time of sale, ActualPrice what was charged per unit.
type SaleItem struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	ProductID   uuid.UUID
	Quantity    int
	Price       decimal.Decimal
	ActualPrice decimal.Decimal
	Subtotal    decimal.Decimal
	CreatedAt   time.Time

	// Read-only product fields populated on load.
	Barcode     string
	ProductName string
}

// NewSaleItem prices a line. A nil actualPrice charges the catalogue price.
func NewSaleItem(saleID uuid.UUID, product *Product, quantity int, actualPrice *decimal.Decimal) (*SaleItem, error) {
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, domain.Invalid("quantity must be between 1 and %d", MaxQuantity)
	}
	charged := product.Price
	if actualPrice != nil {
		if actualPrice.IsNegative() {
			return nil, domain.Invalid("actual price must not be negative")
		}
		charged = *actualPrice
	}
	return &SaleItem{
		ID:          uuid.New(),
		SaleID:      saleID,
		ProductID:   product.ID,
		Quantity:    quantity,
		Price:       product.Price,
		ActualPrice: charged,
		Subtotal:    RoundMoney(charged.Mul(decimal.NewFromInt(int64(quantity)))),
		CreatedAt:   time.Now().UTC(),
		Barcode:     product.Barcode,
		ProductName: product.Name,
	}, nil
}
