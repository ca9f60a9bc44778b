package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

func newCheck(t *testing.T) *InventoryCheck {
	t.Helper()
	c, err := NewInventoryCheck("Monthly count", "", nil, uuid.New())
	if err != nil {
		t.Fatalf("NewInventoryCheck: %v", err)
	}
	return c
}

func TestNewInventoryCheck(t *testing.T) {
	c := newCheck(t)
	if c.Status != CheckDraft {
		t.Fatalf("expected draft, got %s", c.Status)
	}
	if _, err := NewInventoryCheck("   ", "", nil, uuid.New()); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
}

func TestInventoryCheck_HappyPath(t *testing.T) {
	c := newCheck(t)
	approver := uuid.New()

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Complete(0); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := c.Approve(approver, true); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if c.Status != CheckApproved || !c.Adjusted || *c.ApprovedBy != approver {
		t.Fatalf("unexpected state: %+v", c)
	}
	if c.StartedAt == nil || c.CompletedAt == nil || c.ApprovedAt == nil {
		t.Fatal("expected transition timestamps to be set")
	}
	if c.StartedAt.After(*c.ApprovedAt) {
		t.Fatal("started_at must not move with later transitions")
	}
}

func TestInventoryCheck_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		status CheckStatus
		action func(c *InventoryCheck) error
		ok     bool
	}{
		{"start from draft", CheckDraft, (*InventoryCheck).Start, true},
		{"start from in_progress", CheckInProgress, (*InventoryCheck).Start, false},
		{"complete from draft", CheckDraft, func(c *InventoryCheck) error { return c.Complete(0) }, false},
		{"complete from completed", CheckCompleted, func(c *InventoryCheck) error { return c.Complete(0) }, false},
		{"complete from approved", CheckApproved, func(c *InventoryCheck) error { return c.Complete(0) }, false},
		{"approve from in_progress", CheckInProgress, func(c *InventoryCheck) error { return c.Approve(uuid.New(), false) }, false},
		{"approve from approved", CheckApproved, func(c *InventoryCheck) error { return c.Approve(uuid.New(), false) }, false},
		{"cancel from draft", CheckDraft, (*InventoryCheck).Cancel, true},
		{"cancel from in_progress", CheckInProgress, (*InventoryCheck).Cancel, true},
		{"cancel from completed", CheckCompleted, (*InventoryCheck).Cancel, true},
		{"cancel from approved", CheckApproved, (*InventoryCheck).Cancel, false},
		{"cancel from cancelled", CheckCancelled, (*InventoryCheck).Cancel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCheck(t)
			c.Status = tt.status
			err := tt.action(c)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if c.Status != tt.status {
				t.Fatalf("status changed on rejected transition: %s -> %s", tt.status, c.Status)
			}
		})
	}
}

func TestInventoryCheck_CompleteWithUncheckedItems(t *testing.T) {
	c := newCheck(t)
	_ = c.Start()
	err := c.Complete(2)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if c.Status != CheckInProgress {
		t.Fatalf("status should stay in_progress, got %s", c.Status)
	}
}

func TestInventoryCheck_AcceptsCounts(t *testing.T) {
	c := newCheck(t)
	if err := c.AcceptsCounts(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("draft check must reject counts, got %v", err)
	}
	_ = c.Start()
	if err := c.AcceptsCounts(); err != nil {
		t.Fatalf("in_progress check must accept counts: %v", err)
	}
}

func TestInventoryCheckItem_RecordCount(t *testing.T) {
	item := NewInventoryCheckItem(uuid.New(), uuid.New(), 70)
	if item.Counted() {
		t.Fatal("new item must be unchecked")
	}
	counter := uuid.New()
	if err := item.RecordCount(65, counter, "two damaged"); err != nil {
		t.Fatalf("RecordCount: %v", err)
	}
	if *item.ActualQuantity != 65 || *item.Difference != -5 || *item.CountedBy != counter {
		t.Fatalf("unexpected item: actual=%d diff=%d", *item.ActualQuantity, *item.Difference)
	}

	// Recount overwrites.
	if err := item.RecordCount(72, counter, ""); err != nil {
		t.Fatalf("recount: %v", err)
	}
	if *item.Difference != 2 || item.Notes != "two damaged" {
		t.Fatalf("recount: diff=%d notes=%q", *item.Difference, item.Notes)
	}

	for _, bad := range []int{-1, MaxQuantity + 1} {
		if err := item.RecordCount(bad, counter, ""); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("RecordCount(%d): expected validation error, got %v", bad, err)
		}
	}
	if *item.ActualQuantity != 72 {
		t.Fatal("rejected count must not modify the item")
	}
}
