package services

import (
	"testing"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

func mv(kind models.MovementKind, qty, before, after int) *models.StockMovement {
	return &models.StockMovement{Kind: kind, Quantity: qty, QuantityBefore: before, QuantityAfter: after}
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name      string
		movements []*models.StockMovement
		want      int
	}{
		{"empty ledger", nil, 0},
		{"in then out", []*models.StockMovement{
			mv(models.MovementIn, 100, 0, 100),
			mv(models.MovementOut, 30, 100, 70),
		}, 70},
		{"adjust resets", []*models.StockMovement{
			mv(models.MovementIn, 100, 0, 100),
			mv(models.MovementOut, 30, 100, 70),
			mv(models.MovementAdjust, 65, 70, 65),
			mv(models.MovementIn, 5, 65, 70),
		}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Replay(tt.movements); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
			if broken := BrokenLinks(tt.movements); broken != 0 {
				t.Fatalf("expected a consistent chain, got %d broken links", broken)
			}
		})
	}
}

func TestBrokenLinks(t *testing.T) {
	got := BrokenLinks([]*models.StockMovement{
		mv(models.MovementIn, 10, 0, 10),
		mv(models.MovementOut, 5, 8, 3),
	})
	if got != 1 {
		t.Fatalf("expected 1 broken link, got %d", got)
	}
}
