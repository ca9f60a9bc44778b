package services

import (
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// CheckSummary aggregates the lines of an inventory check. Surplus,
// shortage and discrepancy counts only include counted items; value
// differences are difference * unit cost. SystemValue covers every line
// while ActualValue covers counted lines only, so their gap also carries
// the value still waiting to be counted.
type CheckSummary struct {
	TotalItems       int             `json:"total_items"`
	CheckedItems     int             `json:"checked_items"`
	UncheckedItems   int             `json:"unchecked_items"`
	SurplusItems     int             `json:"surplus_items"`
	ShortageItems    int             `json:"shortage_items"`
	MatchedItems     int             `json:"matched_items"`
	DiscrepancyItems int             `json:"discrepancy_items"`
	SurplusValue     decimal.Decimal `json:"surplus_value"`
	ShortageValue    decimal.Decimal `json:"shortage_value"`
	NetValueChange   decimal.Decimal `json:"net_value_change"`
	SystemValue      decimal.Decimal `json:"system_value"`
	ActualValue      decimal.Decimal `json:"actual_value"`
	CompletionRatio  decimal.Decimal `json:"completion_ratio"`
}

// SummarizeCheck computes a CheckSummary over items.
func SummarizeCheck(items []*models.InventoryCheckItem) CheckSummary {
	s := CheckSummary{
		TotalItems:      len(items),
		SurplusValue:    decimal.Zero,
		ShortageValue:   decimal.Zero,
		CompletionRatio: decimal.Zero,
		SystemValue:     decimal.Zero,
		ActualValue:     decimal.Zero,
	}
	for _, it := range items {
		system := it.UnitCost.Mul(decimal.NewFromInt(int64(it.SystemQuantity)))
		s.SystemValue = s.SystemValue.Add(system)
		if !it.Counted() {
			s.UncheckedItems++
			continue
		}
		s.CheckedItems++
		s.ActualValue = s.ActualValue.Add(it.UnitCost.Mul(decimal.NewFromInt(int64(*it.ActualQuantity))))
		diff := *it.Difference
		value := it.UnitCost.Mul(decimal.NewFromInt(int64(diff)))
		switch {
		case diff > 0:
			s.SurplusItems++
			s.SurplusValue = s.SurplusValue.Add(value)
		case diff < 0:
			s.ShortageItems++
			s.ShortageValue = s.ShortageValue.Add(value.Neg())
		default:
			s.MatchedItems++
		}
	}
	s.DiscrepancyItems = s.SurplusItems + s.ShortageItems
	s.NetValueChange = s.SurplusValue.Sub(s.ShortageValue)
	if s.TotalItems > 0 {
		s.CompletionRatio = decimal.NewFromInt(int64(s.CheckedItems)).
			DivRound(decimal.NewFromInt(int64(s.TotalItems)), 4)
	}
	return s
}
