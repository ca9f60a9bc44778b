package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/events"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/retailstock/services/inventory/domain/services"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/export"
)

// CheckService runs inventory checks: snapshot, count, complete and
// approve. System quantities are snapshotted at creation and not held
// locked, so the stock may drift before approval; approval with
// adjustment sets each differing product to its counted quantity.
type CheckService struct {
	store repositories.Store
	stock *StockService
	log   logger.Logger
}

func NewCheckService(d Deps, stock *StockService) *CheckService {
	return &CheckService{store: d.Store, stock: stock, log: d.Logger}
}

// CheckDetail is a check with its lines and summary.
type CheckDetail struct {
	Check   *models.InventoryCheck
	Items   []*models.InventoryCheckItem
	Summary domainsvcs.CheckSummary
}

// Create opens a draft check with one line per active product in scope.
// Products without a stock row get one with quantity 0. The snapshot is
// written atomically.
func (s *CheckService) Create(ctx context.Context, actor models.Actor, name, description string, categoryID *uuid.UUID) (*CheckDetail, error) {
	if err := actor.Authorize(models.PermManageChecks); err != nil {
		return nil, err
	}
	check, err := models.NewInventoryCheck(name, description, categoryID, actor.ID)
	if err != nil {
		return nil, err
	}

	var items []*models.InventoryCheckItem
	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if categoryID != nil {
			if _, err := tx.Categories().GetByID(ctx, *categoryID); err != nil {
				return err
			}
		}
		products, err := tx.Products().ListActive(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		if len(products) == 0 {
			return domain.Invalid("no active products in scope")
		}
		if err := tx.Checks().Create(ctx, check); err != nil {
			return fmt.Errorf("create check: %w", err)
		}
		items = make([]*models.InventoryCheckItem, 0, len(products))
		for _, p := range products {
			level, err := tx.Stock().GetForUpdate(ctx, p.ID, s.stock.settings.DefaultWarningLevel)
			if err != nil {
				return fmt.Errorf("snapshot stock: %w", err)
			}
			item := models.NewInventoryCheckItem(check.ID, p.ID, level.Quantity)
			item.Barcode, item.ProductName, item.UnitCost = p.Barcode, p.Name, p.Cost
			items = append(items, item)
		}
		if err := tx.Checks().CreateItems(ctx, items); err != nil {
			return fmt.Errorf("create check items: %w", err)
		}
		return recordOp(ctx, tx, actor, models.OpInventoryCheck, "check.created", "inventory_check", check.ID,
			"created check %q with %d items", check.Name, len(items))
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "inventory check created", "check_id", check.ID, "items", len(items))
	return &CheckDetail{Check: check, Items: items, Summary: domainsvcs.SummarizeCheck(items)}, nil
}

// Start moves a draft check to in_progress.
func (s *CheckService) Start(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.InventoryCheck, error) {
	return s.transition(ctx, actor, id, models.PermManageChecks, "started", func(tx repositories.Tx, c *models.InventoryCheck) error {
		return c.Start()
	})
}

// Complete moves an in_progress check to completed. It fails with a
// validation error naming the number of unchecked items and leaves the
// status unchanged when any item is uncounted.
func (s *CheckService) Complete(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.InventoryCheck, error) {
	return s.transition(ctx, actor, id, models.PermManageChecks, "completed", func(tx repositories.Tx, c *models.InventoryCheck) error {
		unchecked, err := tx.Checks().CountUnchecked(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("count unchecked: %w", err)
		}
		return c.Complete(unchecked)
	})
}

// Cancel abandons a check that is not yet approved or cancelled.
func (s *CheckService) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.InventoryCheck, error) {
	return s.transition(ctx, actor, id, models.PermManageChecks, "cancelled", func(tx repositories.Tx, c *models.InventoryCheck) error {
		return c.Cancel()
	})
}

func (s *CheckService) transition(ctx context.Context, actor models.Actor, id uuid.UUID, perm models.Permission, verb string,
	fn func(tx repositories.Tx, c *models.InventoryCheck) error,
) (*models.InventoryCheck, error) {
	if err := actor.Authorize(perm); err != nil {
		return nil, err
	}
	var check *models.InventoryCheck
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if check, err = tx.Checks().GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := fn(tx, check); err != nil {
			return err
		}
		if err := tx.Checks().Update(ctx, check); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpInventoryCheck, "check."+verb, "inventory_check", check.ID,
			"check %q %s", check.Name, verb)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "inventory check "+verb, "check_id", id, "status", check.Status, "operator_id", actor.ID)
	return check, nil
}

// RecordCount stores the counted quantity of one line. The check must be
// in_progress and the item must belong to it. Recounting overwrites the
// previous count and never touches the ledger.
func (s *CheckService) RecordCount(ctx context.Context, actor models.Actor, checkID, itemID uuid.UUID, actual int, notes string) (*models.InventoryCheckItem, error) {
	if err := actor.Authorize(models.PermCountInventory); err != nil {
		return nil, err
	}
	if actual < 0 || actual > models.MaxQuantity {
		return nil, domain.Invalid("actual quantity must be between 0 and %d", models.MaxQuantity)
	}
	var item *models.InventoryCheckItem
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		check, err := tx.Checks().GetForUpdate(ctx, checkID)
		if err != nil {
			return err
		}
		if err := check.AcceptsCounts(); err != nil {
			return err
		}
		if item, err = tx.Checks().GetItem(ctx, itemID); err != nil {
			return err
		}
		if item.CheckID != check.ID {
			return domain.NotFound("check item", itemID)
		}
		if err := item.RecordCount(actual, actor.ID, notes); err != nil {
			return err
		}
		return tx.Checks().UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "count recorded", "check_id", checkID, "item_id", itemID, "actual", actual, "difference", *item.Difference)
	return item, nil
}

// Approve moves a completed check to approved. With adjust, every counted
// line whose difference is non-zero becomes an ADJUST movement to the
// counted quantity. All adjustments and the status change commit together.
func (s *CheckService) Approve(ctx context.Context, actor models.Actor, id uuid.UUID, adjust bool) (*models.InventoryCheck, error) {
	if err := actor.Authorize(models.PermApproveChecks); err != nil {
		return nil, err
	}
	var (
		check    *models.InventoryCheck
		l        *ledger
		adjusted int
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		adjusted = 0
		if check, err = tx.Checks().GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := check.Approve(actor.ID, adjust); err != nil {
			return err
		}
		l = s.stock.openLedger(tx)
		if adjust {
			items, err := tx.Checks().Items(ctx, id)
			if err != nil {
				return fmt.Errorf("load items: %w", err)
			}
			ref := check.ID
			for _, it := range items {
				if !it.Counted() || *it.Difference == 0 {
					continue
				}
				_, _, err := l.apply(ctx, movement{
					ProductID:     it.ProductID,
					Kind:          models.MovementAdjust,
					Quantity:      *it.ActualQuantity,
					OperatorID:    actor.ID,
					Note:          fmt.Sprintf("inventory check %q", check.Name),
					ReferenceType: models.RefInventoryCheck,
					ReferenceID:   &ref,
				})
				if err != nil {
					return fmt.Errorf("adjust %s: %w", it.ProductID, err)
				}
				adjusted++
			}
		}
		if err := tx.Checks().Update(ctx, check); err != nil {
			return err
		}
		if err := recordOp(ctx, tx, actor, models.OpInventoryCheck, "check.approved", "inventory_check", check.ID,
			"approved check %q, adjust=%t, %d items adjusted", check.Name, adjust, adjusted); err != nil {
			return err
		}
		return tx.Outbox().Record(ctx, events.TopicCheckApproved, events.CheckApprovedEvent{
			EventID:       uuid.New(),
			Version:       events.Version,
			CheckID:       check.ID,
			ApprovedBy:    actor.ID,
			Adjusted:      adjust,
			AdjustedItems: adjusted,
			OccurredAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.stock.afterCommit(ctx, l)
	s.log.InfoContext(ctx, "inventory check approved", "check_id", id, "adjust", adjust, "adjusted_items", adjusted)
	return check, nil
}

// Get returns a check with its lines and summary.
func (s *CheckService) Get(ctx context.Context, id uuid.UUID) (*CheckDetail, error) {
	check, err := s.store.Checks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Checks().Items(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return &CheckDetail{Check: check, Items: items, Summary: domainsvcs.SummarizeCheck(items)}, nil
}

// Summary recomputes the summary of a check from its current lines.
func (s *CheckService) Summary(ctx context.Context, id uuid.UUID) (domainsvcs.CheckSummary, error) {
	if _, err := s.store.Checks().GetByID(ctx, id); err != nil {
		return domainsvcs.CheckSummary{}, err
	}
	items, err := s.store.Checks().Items(ctx, id)
	if err != nil {
		return domainsvcs.CheckSummary{}, fmt.Errorf("load items: %w", err)
	}
	return domainsvcs.SummarizeCheck(items), nil
}

// List returns checks newest first, optionally filtered by status.
func (s *CheckService) List(ctx context.Context, status models.CheckStatus, opts repositories.QueryOpts) ([]*models.InventoryCheck, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, domain.Invalid("unknown check status %q", status)
	}
	return s.store.Checks().List(ctx, status, opts)
}

// Export writes the check sheet and its summary as an Excel workbook.
func (s *CheckService) Export(ctx context.Context, actor models.Actor, id uuid.UUID, w io.Writer) error {
	if err := actor.Authorize(models.PermViewReports); err != nil {
		return err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return export.WriteCheck(w, d.Check, d.Items, d.Summary)
}
