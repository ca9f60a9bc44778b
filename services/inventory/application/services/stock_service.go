package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/events"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/retailstock/services/inventory/domain/services"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/export"
)

// StockService owns the stock ledger. Every quantity change in the
// system, including those made by sales and inventory checks, goes
// through a ledger opened by this service.
type StockService struct {
	store    repositories.Store
	settings Settings
	log      logger.Logger
	metrics  *telemetry.InventoryMetrics
	notifier Notifier
}

// NewStockService returns a StockService. Metrics and Notifier may be nil.
func NewStockService(d Deps) *StockService {
	return &StockService{
		store:    d.Store,
		settings: d.Settings,
		log:      d.Logger,
		metrics:  d.Metrics,
		notifier: d.Notifier,
	}
}

// MovementRequest is a manual stock movement.
type MovementRequest struct {
	ProductID uuid.UUID
	Kind      models.MovementKind
	Quantity  int
	Note      string
}

// MovementResult is the state after a committed movement.
type MovementResult struct {
	Level    *models.StockLevel
	Movement *models.StockMovement
	LowStock bool
}

// ApplyMovement records a manual IN, OUT or ADJUST. An OUT larger than
// the quantity on hand fails with *domain.InsufficientStockError and
// writes nothing.
func (s *StockService) ApplyMovement(ctx context.Context, actor models.Actor, req MovementRequest) (*MovementResult, error) {
	if !req.Kind.Valid() {
		return nil, domain.Invalid("unknown movement kind %q", req.Kind)
	}
	if err := actor.Authorize(models.MovementPermission(req.Kind)); err != nil {
		return nil, err
	}

	var (
		res = &MovementResult{}
		l   *ledger
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		l = s.openLedger(tx)
		level, entry, err := l.apply(ctx, movement{
			ProductID:     req.ProductID,
			Kind:          req.Kind,
			Quantity:      req.Quantity,
			OperatorID:    actor.ID,
			Note:          req.Note,
			ReferenceType: models.RefManual,
		})
		if err != nil {
			return err
		}
		res.Level, res.Movement = level, entry
		return recordOp(ctx, tx, actor, models.OpInventory, "stock."+strings.ToLower(string(req.Kind)), "product", req.ProductID,
			"%s %d: %d -> %d %s", req.Kind, entry.Quantity, entry.QuantityBefore, entry.QuantityAfter, req.Note)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.InsufficientStock(ctx)
			s.log.InfoContext(ctx, "stock movement rejected", "product_id", req.ProductID, "kind", req.Kind, "error", err)
		}
		return nil, err
	}
	s.afterCommit(ctx, l)
	res.LowStock = res.Level.IsLowStock()
	return res, nil
}

// HasSufficientStock reports whether the product has at least quantity on
// hand. A product without a stock row has none.
func (s *StockService) HasSufficientStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	if quantity < 0 {
		return false, domain.Invalid("quantity must not be negative")
	}
	level, err := s.store.Stock().Get(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get stock: %w", err)
	}
	return level.Quantity >= quantity, nil
}

// GetStockLevel returns the product's stock row, or an unsaved zero row
// with the default warning level when none exists yet.
func (s *StockService) GetStockLevel(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	if _, err := s.store.Products().GetByID(ctx, productID); err != nil {
		return nil, err
	}
	level, err := s.store.Stock().Get(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return models.NewStockLevel(productID, s.settings.DefaultWarningLevel), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return level, nil
}

// SetWarningLevel changes the low-stock threshold of a product.
func (s *StockService) SetWarningLevel(ctx context.Context, actor models.Actor, productID uuid.UUID, level int) (*models.StockLevel, error) {
	if err := actor.Authorize(models.PermStockAdjust); err != nil {
		return nil, err
	}
	if level < 0 || level > models.MaxQuantity {
		return nil, domain.Invalid("warning level must be between 0 and %d", models.MaxQuantity)
	}
	var out *models.StockLevel
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if _, err := tx.Products().GetByID(ctx, productID); err != nil {
			return err
		}
		row, err := tx.Stock().GetForUpdate(ctx, productID, s.settings.DefaultWarningLevel)
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		if err := row.SetWarningLevel(level); err != nil {
			return err
		}
		if err := tx.Stock().Save(ctx, row); err != nil {
			return fmt.Errorf("save stock: %w", err)
		}
		out = row
		return recordOp(ctx, tx, actor, models.OpInventory, "stock.warning_level", "product", productID,
			"warning level set to %d", level)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "warning level changed", "product_id", productID, "warning_level", level)
	return out, nil
}

// ListLowStock returns active products at or below their warning level.
// Each call re-queries the store.
func (s *StockService) ListLowStock(ctx context.Context) ([]*models.StockView, error) {
	views, err := s.store.Stock().ListLow(ctx)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return views, nil
}

// ListMovements returns ledger entries newest first.
func (s *StockService) ListMovements(ctx context.Context, f repositories.MovementFilter) ([]*models.StockMovement, int, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, 0, domain.Invalid("unknown movement kind %q", f.Kind)
	}
	movements, total, err := s.store.Movements().List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return movements, total, nil
}

// InventoryValuation values the stock of active products.
type InventoryValuation struct {
	Products    int             `json:"products"`
	Units       int             `json:"units"`
	CostValue   decimal.Decimal `json:"cost_value"`
	RetailValue decimal.Decimal `json:"retail_value"`
}

// InventoryValue sums quantity * cost and quantity * price over active products.
func (s *StockService) InventoryValue(ctx context.Context) (*InventoryValuation, error) {
	views, err := s.store.Stock().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	v := &InventoryValuation{CostValue: decimal.Zero, RetailValue: decimal.Zero}
	for _, row := range views {
		if !row.IsActive {
			continue
		}
		qty := decimal.NewFromInt(int64(row.Quantity))
		v.Products++
		v.Units += row.Quantity
		v.CostValue = v.CostValue.Add(row.Cost.Mul(qty))
		v.RetailValue = v.RetailValue.Add(row.Price.Mul(qty))
	}
	v.CostValue = models.RoundMoney(v.CostValue)
	v.RetailValue = models.RoundMoney(v.RetailValue)
	return v, nil
}

// ExportStockReport writes every stock row as an Excel workbook.
func (s *StockService) ExportStockReport(ctx context.Context, actor models.Actor, w io.Writer) error {
	if err := actor.Authorize(models.PermViewReports); err != nil {
		return err
	}
	views, err := s.store.Stock().ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list stock: %w", err)
	}
	return export.WriteStockReport(w, views)
}

// LedgerDrift describes a product whose stock row disagrees with its ledger.
type LedgerDrift struct {
	ProductID   uuid.UUID `json:"product_id"`
	Barcode     string    `json:"barcode"`
	Recorded    int       `json:"recorded"`
	Replayed    int       `json:"replayed"`
	BrokenLinks int       `json:"broken_links"`
}

// AuditLedger replays every product's movements from zero and reports the
// products whose replayed quantity or before/after chain disagrees with
// the stock row.
func (s *StockService) AuditLedger(ctx context.Context) ([]LedgerDrift, error) {
	views, err := s.store.Stock().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	var drift []LedgerDrift
	for _, row := range views {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		movements, err := s.store.Movements().ListForProduct(ctx, row.ProductID)
		if err != nil {
			return nil, fmt.Errorf("list movements for %s: %w", row.ProductID, err)
		}
		replayed := domainsvcs.Replay(movements)
		broken := domainsvcs.BrokenLinks(movements)
		if replayed != row.Quantity || broken > 0 {
			drift = append(drift, LedgerDrift{
				ProductID:   row.ProductID,
				Barcode:     row.Barcode,
				Recorded:    row.Quantity,
				Replayed:    replayed,
				BrokenLinks: broken,
			})
		}
	}
	s.metrics.LedgerDrift(ctx, len(drift))
	if len(drift) > 0 {
		s.log.WarnContext(ctx, "ledger drift detected", "products", len(drift))
	}
	return drift, nil
}

func (s *StockService) openLedger(tx repositories.Tx) *ledger {
	return newLedger(tx, s.settings.DefaultWarningLevel)
}

// afterCommit emits the metrics, logs and low-stock notifications of a
// committed ledger. Notification failures are logged and swallowed.
func (s *StockService) afterCommit(ctx context.Context, l *ledger) {
	if l == nil {
		return
	}
	for _, m := range l.recorded {
		s.metrics.MovementRecorded(ctx, string(m.Kind), string(m.ReferenceType))
		s.log.InfoContext(ctx, "stock movement applied",
			"product_id", m.ProductID,
			"kind", m.Kind,
			"quantity", m.Quantity,
			"new_quantity", m.QuantityAfter,
			"reference_type", m.ReferenceType,
		)
	}
	for _, evt := range l.low {
		s.metrics.LowStock(ctx)
		s.log.WarnContext(ctx, "low stock",
			"product_id", evt.ProductID,
			"barcode", evt.Barcode,
			"quantity", evt.Quantity,
			"warning_level", evt.WarningLevel,
		)
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.PublishJSON(ctx, events.TopicStockLow, evt); err != nil {
			s.log.ErrorContext(ctx, "low stock notification failed", "product_id", evt.ProductID, "error", err)
		}
	}
}
