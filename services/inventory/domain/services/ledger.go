// Package services contains stateless domain services for the inventory
// bounded context: ledger replay, pricing rules, check summaries and
// member level eligibility. They operate purely on domain types.
package services

import (
	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// Replay folds a product's movements in ledger order starting from zero
// and returns the quantity the ledger implies. Movements that would drive
// the quantity negative are reported as drift by the caller comparing the
// result with the stock row, so they are applied without clamping.
func Replay(movements []*models.StockMovement) int {
	qty := 0
	for _, m := range movements {
		switch m.Kind {
		case models.MovementIn:
			qty += m.Quantity
		case models.MovementOut:
			qty -= m.Quantity
		case models.MovementAdjust:
			qty = m.Quantity
		}
	}
	return qty
}

// BrokenLinks counts movements whose QuantityBefore does not match the
// QuantityAfter of the previous movement.
func BrokenLinks(movements []*models.StockMovement) int {
	broken := 0
	prev := 0
	for _, m := range movements {
		if m.QuantityBefore != prev {
			broken++
		}
		prev = m.QuantityAfter
	}
	return broken
}
