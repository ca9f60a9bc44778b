package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

// MemberLevel is a loyalty tier. DiscountRate is the fraction of the total
// the member pays (0.95 means 5% off).
type MemberLevel struct {
	ID              uuid.UUID
	Name            string
	DiscountRate    decimal.Decimal
	PointsThreshold int
	Priority        int
	IsDefault       bool
	IsActive        bool
	CreatedAt       time.Time
}

// NewMemberLevel validates rate in (0, 1] and a non-negative threshold.
func NewMemberLevel(name string, rate decimal.Decimal, threshold, priority int, isDefault bool) (*MemberLevel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("level name is required")
	}
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, domain.Invalid("discount rate must be in (0, 1]")
	}
	if threshold < 0 {
		return nil, domain.Invalid("points threshold must not be negative")
	}
	return &MemberLevel{
		ID:              uuid.New(),
		Name:            name,
		DiscountRate:    rate,
		PointsThreshold: threshold,
		Priority:        priority,
		IsDefault:       isDefault,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Member is a loyalty customer with points and a prepaid balance.
type Member struct {
	ID            uuid.UUID
	LevelID       uuid.UUID
	Name          string
	Phone         string
	MemberCode    string
	Email         string
	Points        int
	Balance       decimal.Decimal
	TotalSpend    decimal.Decimal
	PurchaseCount int
	IsRecharged   bool
	IsActive      bool
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewMember constructs an active member. Phone is the unique lookup key;
// the member code defaults to "M" plus the phone number.
func NewMember(name, phone, code, email string, levelID, createdBy uuid.UUID) (*Member, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" {
		return nil, domain.Invalid("member name is required")
	}
	if phone == "" {
		return nil, domain.Invalid("member phone is required")
	}
	if code = strings.TrimSpace(code); code == "" {
		code = "M" + phone
	}
	now := time.Now().UTC()
	return &Member{
		ID:         uuid.New(),
		LevelID:    levelID,
		Name:       name,
		Phone:      phone,
		MemberCode: code,
		Email:      strings.TrimSpace(email),
		IsActive:   true,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (m *Member) touch() { m.UpdatedAt = time.Now().UTC() }

// Recharge credits a positive amount to the balance.
func (m *Member) Recharge(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Invalid("recharge amount must be positive")
	}
	m.Balance = m.Balance.Add(amount)
	m.IsRecharged = true
	m.touch()
	return nil
}

// Debit withdraws amount from the balance.
func (m *Member) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.Invalid("debit amount must not be negative")
	}
	if m.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, required %s",
			domain.ErrInsufficientBalance, m.Balance.StringFixed(2), amount.StringFixed(2))
	}
	m.Balance = m.Balance.Sub(amount)
	m.touch()
	return nil
}

// AdjustPoints adds delta (which may be negative) to points.
func (m *Member) AdjustPoints(delta int) error {
	if m.Points+delta < 0 {
		return domain.Invalid("points would become negative (%d%+d)", m.Points, delta)
	}
	m.Points += delta
	m.touch()
	return nil
}

// RecordPurchase accumulates spend statistics and earned points.
func (m *Member) RecordPurchase(amount decimal.Decimal, points int) {
	m.TotalSpend = m.TotalSpend.Add(amount)
	m.PurchaseCount++
	m.Points += points
	m.touch()
}

// ReversePurchase undoes RecordPurchase for a cancelled sale and refunds
// balancePaid. Points already spent are not clawed back below zero.
// It returns the points actually removed.
func (m *Member) ReversePurchase(amount, balancePaid decimal.Decimal, points int) int {
	m.TotalSpend = decimal.Max(decimal.Zero, m.TotalSpend.Sub(amount))
	if m.PurchaseCount > 0 {
		m.PurchaseCount--
	}
	removed := min(points, m.Points)
	m.Points -= removed
	m.Balance = m.Balance.Add(balancePaid)
	m.touch()
	return removed
}

// RechargeRecord logs one prepaid top-up. ActualAmount is what the customer
// paid; Amount is what was credited.
type RechargeRecord struct {
	ID            uuid.UUID
	MemberID      uuid.UUID
	Amount        decimal.Decimal
	ActualAmount  decimal.Decimal
	PaymentMethod PaymentMethod
	OperatorID    uuid.UUID
	Remark        string
	CreatedAt     time.Time
}

// MemberTransactionType classifies a points or balance change.
type MemberTransactionType string

const (
	TxPurchase       MemberTransactionType = "PURCHASE"
	TxRefund         MemberTransactionType = "REFUND"
	TxRecharge       MemberTransactionType = "RECHARGE"
	TxPointsEarn     MemberTransactionType = "POINTS_EARN"
	TxPointsRedeem   MemberTransactionType = "POINTS_REDEEM"
	TxPointsAdjust   MemberTransactionType = "POINTS_ADJUST"
	TxBalanceAdjust  MemberTransactionType = "BALANCE_ADJUST"
	TxLevelUpgrade   MemberTransactionType = "LEVEL_UPGRADE"
	TxLevelDowngrade MemberTransactionType = "LEVEL_DOWNGRADE"
	TxOther          MemberTransactionType = "OTHER"
)

// MemberTransaction is an append-only audit line for a member.
type MemberTransaction struct {
	ID            uuid.UUID
	MemberID      uuid.UUID
	Type          MemberTransactionType
	PointsChange  int
	BalanceChange decimal.Decimal
	Description   string
	OperatorID    uuid.UUID
	ReferenceType ReferenceType
	ReferenceID   *uuid.UUID
	CreatedAt     time.Time
}

// NewMemberTransaction stamps an ID and creation time.
func NewMemberTransaction(memberID uuid.UUID, typ MemberTransactionType, points int, balance decimal.Decimal, description string, operatorID uuid.UUID) *MemberTransaction {
	return &MemberTransaction{
		ID:            uuid.New(),
		MemberID:      memberID,
		Type:          typ,
		PointsChange:  points,
		BalanceChange: balance,
		Description:   description,
		OperatorID:    operatorID,
		CreatedAt:     time.Now().UTC(),
	}
}
