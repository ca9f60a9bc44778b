package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

// CheckStatus is the lifecycle state of an inventory check.
type CheckStatus string

const (
	CheckDraft      CheckStatus = "draft"
	CheckInProgress CheckStatus = "in_progress"
	CheckCompleted  CheckStatus = "completed"
	CheckApproved   CheckStatus = "approved"
	CheckCancelled  CheckStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s CheckStatus) Valid() bool {
	switch s {
	case CheckDraft, CheckInProgress, CheckCompleted, CheckApproved, CheckCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s CheckStatus) Terminal() bool {
	return s == CheckApproved || s == CheckCancelled
}

// InventoryCheck is a stocktaking session. Items snapshot the system
// quantity at creation; approval with adjustment reconciles the ledger.
type InventoryCheck struct {
	ID          uuid.UUID
	Name        string
	Description string
	Status      CheckStatus
	CategoryID  *uuid.UUID
	CreatedBy   uuid.UUID
	ApprovedBy  *uuid.UUID
	Adjusted    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ApprovedAt  *time.Time
	CancelledAt *time.Time

	// Items is populated only by reads that load the full check.
	Items []*InventoryCheckItem
}

// NewInventoryCheck constructs a check in draft.
func NewInventoryCheck(name, description string, categoryID *uuid.UUID, createdBy uuid.UUID) (*InventoryCheck, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return nil, domain.Invalid("check name must be 1-100 characters")
	}
	now := time.Now().UTC()
	return &InventoryCheck{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      CheckDraft,
		CategoryID:  categoryID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// transition returns the transition timestamp.
func (c *InventoryCheck) transition(action string, to CheckStatus, from ...CheckStatus) (*time.Time, error) {
	for _, s := range from {
		if c.Status == s {
			now := time.Now().UTC()
			c.Status = to
			c.UpdatedAt = now
			return &now, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot %s a %s check", domain.ErrInvalidTransition, action, c.Status)
}

// Start moves draft to in_progress.
func (c *InventoryCheck) Start() error {
	at, err := c.transition("start", CheckInProgress, CheckDraft)
	if err != nil {
		return err
	}
	c.StartedAt = at
	return nil
}

// Complete moves in_progress to completed once every item is counted.
func (c *InventoryCheck) Complete(unchecked int) error {
	if c.Status == CheckInProgress && unchecked > 0 {
		return domain.Invalid("%d items are still unchecked", unchecked)
	}
	at, err := c.transition("complete", CheckCompleted, CheckInProgress)
	if err != nil {
		return err
	}
	c.CompletedAt = at
	return nil
}

// Approve moves completed to approved.
func (c *InventoryCheck) Approve(approver uuid.UUID, adjusted bool) error {
	at, err := c.transition("approve", CheckApproved, CheckCompleted)
	if err != nil {
		return err
	}
	c.ApprovedBy = &approver
	c.ApprovedAt = at
	c.Adjusted = adjusted
	return nil
}

// Cancel is allowed from any non-terminal state.
func (c *InventoryCheck) Cancel() error {
	at, err := c.transition("cancel", CheckCancelled, CheckDraft, CheckInProgress, CheckCompleted)
	if err != nil {
		return err
	}
	c.CancelledAt = at
	return nil
}

// AcceptsCounts reports whether item counts may be recorded.
func (c *InventoryCheck) AcceptsCounts() error {
	if c.Status != CheckInProgress {
		return fmt.Errorf("%w: counts can only be recorded while in_progress, check is %s",
			domain.ErrInvalidTransition, c.Status)
	}
	return nil
}

// InventoryCheckItem is one product line of a check.
// Difference = ActualQuantity - SystemQuantity once counted.
type InventoryCheckItem struct {
	ID             uuid.UUID
	CheckID        uuid.UUID
	ProductID      uuid.UUID
	SystemQuantity int
	ActualQuantity *int
	Difference     *int
	Notes          string
	CountedBy      *uuid.UUID
	CountedAt      *time.Time

	// Read-only product fields populated on load.
	Barcode     string
	ProductName string
	UnitCost    decimal.Decimal
}

// NewInventoryCheckItem snapshots the system quantity of a product.
func NewInventoryCheckItem(checkID, productID uuid.UUID, systemQuantity int) *InventoryCheckItem {
	return &InventoryCheckItem{
		ID:             uuid.New(),
		CheckID:        checkID,
		ProductID:      productID,
		SystemQuantity: systemQuantity,
	}
}

// RecordCount sets the physically counted quantity. Recounting overwrites.
func (i *InventoryCheckItem) RecordCount(actual int, countedBy uuid.UUID, notes string) error {
	if actual < 0 || actual > MaxQuantity {
		return domain.Invalid("actual quantity must be between 0 and %d", MaxQuantity)
	}
	diff := actual - i.SystemQuantity
	now := time.Now().UTC()
	i.ActualQuantity = &actual
	i.Difference = &diff
	i.CountedBy = &countedBy
	i.CountedAt = &now
	if notes != "" {
		i.Notes = notes
	}
	return nil
}

// Counted reports whether an actual quantity has been recorded.
func (i *InventoryCheckItem) Counted() bool {
	return i.ActualQuantity != nil
}
