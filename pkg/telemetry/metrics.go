package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName scopes every instrument the inventory service registers.
const InstrumentationName = "github.com/ghuser/retailstock/services/inventory"

// InventoryMetrics are the business counters exported on /metrics.
type InventoryMetrics struct {
	movements         metric.Int64Counter
	insufficientStock metric.Int64Counter
	lowStock          metric.Int64Counter
	salesCompleted    metric.Int64Counter
	saleAmount        metric.Float64Histogram
	ledgerDrift       metric.Int64Gauge
}

// NewInventoryMetrics registers the instruments on meter.
func NewInventoryMetrics(meter metric.Meter) (*InventoryMetrics, error) {
	var m InventoryMetrics
	var err error
	if m.movements, err = meter.Int64Counter("inventory.stock.movements",
		metric.WithDescription("Stock movements recorded, by kind and reference type."),
		metric.WithUnit("{movement}")); err != nil {
		return nil, fmt.Errorf("telemetry: movements counter: %w", err)
	}
	if m.insufficientStock, err = meter.Int64Counter("inventory.stock.insufficient",
		metric.WithDescription("OUT movements rejected for insufficient stock.")); err != nil {
		return nil, fmt.Errorf("telemetry: insufficient counter: %w", err)
	}
	if m.lowStock, err = meter.Int64Counter("inventory.stock.low_signals",
		metric.WithDescription("Low-stock signals raised after commit.")); err != nil {
		return nil, fmt.Errorf("telemetry: low stock counter: %w", err)
	}
	if m.salesCompleted, err = meter.Int64Counter("inventory.sales.completed",
		metric.WithDescription("Sales completed, by payment method.")); err != nil {
		return nil, fmt.Errorf("telemetry: sales counter: %w", err)
	}
	if m.saleAmount, err = meter.Float64Histogram("inventory.sales.final_amount",
		metric.WithDescription("Final amount of completed sales.")); err != nil {
		return nil, fmt.Errorf("telemetry: sale amount histogram: %w", err)
	}
	if m.ledgerDrift, err = meter.Int64Gauge("inventory.ledger.drifted_products",
		metric.WithDescription("Products whose stock row disagrees with the replayed ledger.")); err != nil {
		return nil, fmt.Errorf("telemetry: drift gauge: %w", err)
	}
	return &m, nil
}

// MovementRecorded counts one committed ledger entry.
func (m *InventoryMetrics) MovementRecorded(ctx context.Context, kind, reference string) {
	if m == nil {
		return
	}
	m.movements.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reference_type", reference),
	))
}

// InsufficientStock counts a rejected OUT movement.
func (m *InventoryMetrics) InsufficientStock(ctx context.Context) {
	if m == nil {
		return
	}
	m.insufficientStock.Add(ctx, 1)
}

// LowStock counts a low-stock signal.
func (m *InventoryMetrics) LowStock(ctx context.Context) {
	if m == nil {
		return
	}
	m.lowStock.Add(ctx, 1)
}

// SaleCompleted records a completed sale.
func (m *InventoryMetrics) SaleCompleted(ctx context.Context, paymentMethod string, finalAmount float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("payment_method", paymentMethod))
	m.salesCompleted.Add(ctx, 1, attrs)
	m.saleAmount.Record(ctx, finalAmount, attrs)
}

// LedgerDrift records the result of a ledger audit.
func (m *InventoryMetrics) LedgerDrift(ctx context.Context, products int) {
	if m == nil {
		return
	}
	m.ledgerDrift.Record(ctx, int64(products))
}
