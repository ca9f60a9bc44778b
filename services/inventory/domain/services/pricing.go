package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// PricePolicy bounds how far a charged price may stray from the catalogue
// price before a warning is raised.
type PricePolicy struct {
	FloorRatio   decimal.Decimal
	CeilingRatio decimal.Decimal
}

// DefaultPricePolicy warns below 50% and above 200% of the catalogue price.
func DefaultPricePolicy() PricePolicy {
	return PricePolicy{
		FloorRatio:   decimal.RequireFromString("0.5"),
		CeilingRatio: decimal.RequireFromString("2.0"),
	}
}

// PriceWarnings returns human-readable warnings for an abnormal charged
// price. Warnings never block a sale. A zero catalogue price has no
// reference point and yields none.
func (p PricePolicy) PriceWarnings(standard, actual decimal.Decimal) []string {
	if !standard.IsPositive() {
		return nil
	}
	var warnings []string
	if floor := standard.Mul(p.FloorRatio); actual.LessThan(floor) {
		warnings = append(warnings, fmt.Sprintf("price %s is below %s%% of the standard price %s",
			actual.StringFixed(2), p.FloorRatio.Shift(2).String(), standard.StringFixed(2)))
	}
	if ceiling := standard.Mul(p.CeilingRatio); actual.GreaterThan(ceiling) {
		warnings = append(warnings, fmt.Sprintf("price %s is above %s%% of the standard price %s",
			actual.StringFixed(2), p.CeilingRatio.Shift(2).String(), standard.StringFixed(2)))
	}
	return warnings
}

// MemberDiscount returns total * (1 - rate) rounded to cents and clamped
// to [0, total]. A rate outside (0, 1] gives no discount.
func MemberDiscount(total, rate decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !rate.IsPositive() || rate.GreaterThan(one) {
		return decimal.Zero
	}
	d := models.RoundMoney(total.Mul(one.Sub(rate)))
	return decimal.Min(decimal.Max(d, decimal.Zero), total)
}

// PointsFor awards one point per whole currency unit of the final amount.
func PointsFor(final decimal.Decimal) int {
	if !final.IsPositive() {
		return 0
	}
	return int(final.IntPart())
}
