// Package export renders inventory reports as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/services"
)

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names.
const (
	CheckSheet   = "Check"
	SummarySheet = "Summary"
	StockSheet   = "Stock"
)

var (
	checkHeader = []any{"Barcode", "Product", "System quantity", "Actual quantity", "Difference", "Unit cost", "Difference value", "Notes"}
	stockHeader = []any{"Barcode", "Name", "Category", "Quantity", "Warning level", "Low stock", "Unit cost", "Cost value"}
)

// WriteCheck writes the lines of an inventory check and its summary.
// Unchecked lines leave the actual and difference cells empty.
func WriteCheck(w io.Writer, check *models.InventoryCheck, items []*models.InventoryCheckItem, summary services.CheckSummary) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", CheckSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, CheckSheet, 1, checkHeader); err != nil {
		return err
	}
	for i, it := range items {
		row := []any{it.Barcode, it.ProductName, it.SystemQuantity, nil, nil, money(it.UnitCost), nil, it.Notes}
		if it.Counted() {
			row[3] = *it.ActualQuantity
			row[4] = *it.Difference
			row[6] = money(it.UnitCost.Mul(decimal.NewFromInt(int64(*it.Difference))))
		}
		if err := setRow(f, CheckSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	rows := [][]any{
		{"Check", check.Name},
		{"Status", string(check.Status)},
		{"Total items", summary.TotalItems},
		{"Checked items", summary.CheckedItems},
		{"Unchecked items", summary.UncheckedItems},
		{"Surplus items", summary.SurplusItems},
		{"Shortage items", summary.ShortageItems},
		{"Matched items", summary.MatchedItems},
		{"Discrepancy items", summary.DiscrepancyItems},
		{"System value", money(summary.SystemValue)},
		{"Actual value", money(summary.ActualValue)},
		{"Surplus value", money(summary.SurplusValue)},
		{"Shortage value", money(summary.ShortageValue)},
		{"Net value change", money(summary.NetValueChange)},
	}
	for i, r := range rows {
		if err := setRow(f, SummarySheet, i+1, r); err != nil {
			return err
		}
	}
	return write(f, w)
}

// WriteStockReport writes one row per stock level.
func WriteStockReport(w io.Writer, levels []*models.StockView) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", StockSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, StockSheet, 1, stockHeader); err != nil {
		return err
	}
	for i, v := range levels {
		low := "no"
		if v.IsLowStock() {
			low = "yes"
		}
		value := v.Cost.Mul(decimal.NewFromInt(int64(v.Quantity)))
		row := []any{v.Barcode, v.Name, v.CategoryName, v.Quantity, v.WarningLevel, low, money(v.Cost), money(value)}
		if err := setRow(f, StockSheet, i+2, row); err != nil {
			return err
		}
	}
	return write(f, w)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func write(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// money renders an amount as a two-decimal number cell.
func money(d decimal.Decimal) float64 {
	return models.RoundMoney(d).InexactFloat64()
}
