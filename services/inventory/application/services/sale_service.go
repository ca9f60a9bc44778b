package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/events"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/retailstock/services/inventory/domain/services"
)

// SaleService runs the point-of-sale workflow. A sale item never exists
// without the OUT movement that took its quantity from stock, and the
// sale total always equals the sum of its item subtotals.
type SaleService struct {
	store   repositories.Store
	stock   *StockService
	prices  domainsvcs.PricePolicy
	log     logger.Logger
	metrics *telemetry.InventoryMetrics
}

func NewSaleService(d Deps, stock *StockService) *SaleService {
	return &SaleService{
		store:   d.Store,
		stock:   stock,
		prices:  d.Settings.Prices,
		log:     d.Logger,
		metrics: d.Metrics,
	}
}

// Create opens an empty sale, optionally for an active member.
func (s *SaleService) Create(ctx context.Context, actor models.Actor, memberID *uuid.UUID, remark string) (*models.Sale, error) {
	if err := actor.Authorize(models.PermSell); err != nil {
		return nil, err
	}
	sale := models.NewSale(actor.ID, memberID, strings.TrimSpace(remark))
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if memberID != nil {
			m, err := tx.Members().GetByID(ctx, *memberID)
			if err != nil {
				return err
			}
			if !m.IsActive {
				return domain.Invalid("member is inactive")
			}
		}
		return tx.Sales().Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// AddItemResult is the sale after an item was added. Warnings flag an
// unusual charged price and never block the sale.
type AddItemResult struct {
	Sale     *models.Sale
	Item     *models.SaleItem
	Warnings []string
}

// AddItem takes quantity of a product out of stock and adds it to an open
// sale. A nil actualPrice charges the catalogue price. Insufficient stock
// fails with *domain.InsufficientStockError and adds nothing.
func (s *SaleService) AddItem(ctx context.Context, actor models.Actor, saleID, productID uuid.UUID, quantity int, actualPrice *decimal.Decimal) (*AddItemResult, error) {
	if err := actor.Authorize(models.PermSell); err != nil {
		return nil, err
	}
	if quantity <= 0 || quantity > models.MaxQuantity {
		return nil, domain.Invalid("quantity must be between 1 and %d", models.MaxQuantity)
	}

	res := &AddItemResult{}
	var l *ledger
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		sale, err := tx.Sales().GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := sale.EnsureOpen(); err != nil {
			return err
		}
		product, err := tx.Products().GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return domain.Invalid("product %s is inactive", product.Barcode)
		}
		item, err := models.NewSaleItem(sale.ID, product, quantity, actualPrice)
		if err != nil {
			return err
		}

		l = s.stock.openLedger(tx)
		ref := sale.ID
		if _, _, err := l.apply(ctx, movement{
			ProductID:     productID,
			Kind:          models.MovementOut,
			Quantity:      quantity,
			OperatorID:    actor.ID,
			Note:          "sale",
			ReferenceType: models.RefSale,
			ReferenceID:   &ref,
		}); err != nil {
			return err
		}
		if err := sale.AddItem(item); err != nil {
			return err
		}
		if err := tx.Sales().AddItem(ctx, item); err != nil {
			return fmt.Errorf("add sale item: %w", err)
		}
		if err := tx.Sales().Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		res.Sale, res.Item = sale, item
		res.Warnings = s.prices.PriceWarnings(product.Price, item.ActualPrice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.stock.afterCommit(ctx, l)
	for _, w := range res.Warnings {
		s.log.WarnContext(ctx, "abnormal sale price", "sale_id", saleID, "product_id", productID, "warning", w)
	}
	return res, nil
}

// RemoveItem deletes an item of an open sale and returns its quantity to
// stock.
func (s *SaleService) RemoveItem(ctx context.Context, actor models.Actor, saleID, itemID uuid.UUID) (*models.Sale, error) {
	if err := actor.Authorize(models.PermSell); err != nil {
		return nil, err
	}
	var (
		sale *models.Sale
		l    *ledger
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if sale, err = tx.Sales().GetForUpdate(ctx, saleID); err != nil {
			return err
		}
		item, err := sale.RemoveItem(itemID)
		if err != nil {
			return err
		}
		l = s.stock.openLedger(tx)
		ref := sale.ID
		if _, _, err := l.apply(ctx, movement{
			ProductID:     item.ProductID,
			Kind:          models.MovementIn,
			Quantity:      item.Quantity,
			OperatorID:    actor.ID,
			Note:          "sale item removed",
			ReferenceType: models.RefSaleItemRemove,
			ReferenceID:   &ref,
		}); err != nil {
			return err
		}
		if err := tx.Sales().DeleteItem(ctx, item.ID); err != nil {
			return fmt.Errorf("delete sale item: %w", err)
		}
		return tx.Sales().Update(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	s.stock.afterCommit(ctx, l)
	return sale, nil
}

// CompleteRequest settles a sale. BalanceAmount is required for mixed
// payments and is the part paid from the member balance.
type CompleteRequest struct {
	PaymentMethod models.PaymentMethod
	BalanceAmount *decimal.Decimal
}

// Complete applies the member discount, settles payment and credits the
// member with spend and points.
func (s *SaleService) Complete(ctx context.Context, actor models.Actor, saleID uuid.UUID, req CompleteRequest) (*models.Sale, error) {
	if err := actor.Authorize(models.PermSell); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, domain.Invalid("unknown payment method %q", req.PaymentMethod)
	}

	var sale *models.Sale
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if sale, err = tx.Sales().GetForUpdate(ctx, saleID); err != nil {
			return err
		}
		if err := sale.EnsureOpen(); err != nil {
			return err
		}
		if len(sale.Items) == 0 {
			return domain.Invalid("cannot complete a sale without items")
		}

		var member *models.Member
		discount := decimal.Zero
		if sale.MemberID != nil {
			if member, err = tx.Members().GetForUpdate(ctx, *sale.MemberID); err != nil {
				return err
			}
			level, err := tx.Members().GetLevel(ctx, member.LevelID)
			if err != nil {
				return err
			}
			if level.IsActive {
				discount = domainsvcs.MemberDiscount(sale.TotalAmount, level.DiscountRate)
			}
		}
		sale.Recalculate(discount)

		balancePaid, err := s.balancePortion(sale, member, req)
		if err != nil {
			return err
		}
		if balancePaid.IsPositive() {
			if err := member.Debit(balancePaid); err != nil {
				return err
			}
		}
		if err := sale.Complete(req.PaymentMethod, balancePaid, domainsvcs.PointsFor(sale.FinalAmount)); err != nil {
			return err
		}
		if member != nil {
			if err := s.creditMember(ctx, tx, sale, member, actor.ID); err != nil {
				return err
			}
		}
		if err := tx.Sales().Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		if err := recordOp(ctx, tx, actor, models.OpSale, "sale.completed", "sale", sale.ID,
			"completed: %s paid by %s", sale.FinalAmount.StringFixed(2), sale.PaymentMethod); err != nil {
			return err
		}
		return tx.Outbox().Record(ctx, events.TopicSaleCompleted, saleEvent(sale, actor.ID))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SaleCompleted(ctx, string(sale.PaymentMethod), sale.FinalAmount.InexactFloat64())
	s.log.InfoContext(ctx, "sale completed",
		"sale_id", sale.ID,
		"final_amount", sale.FinalAmount.StringFixed(2),
		"payment_method", sale.PaymentMethod,
		"points_earned", sale.PointsEarned,
	)
	return sale, nil
}

func (s *SaleService) balancePortion(sale *models.Sale, member *models.Member, req CompleteRequest) (decimal.Decimal, error) {
	if !req.PaymentMethod.UsesBalance() {
		return decimal.Zero, nil
	}
	if member == nil {
		return decimal.Zero, domain.Invalid("payment method %q requires a member", req.PaymentMethod)
	}
	if req.PaymentMethod == models.PayBalance {
		return sale.FinalAmount, nil
	}
	if req.BalanceAmount == nil {
		return decimal.Zero, domain.Invalid("mixed payment requires a balance amount")
	}
	amount := models.RoundMoney(*req.BalanceAmount)
	if !amount.IsPositive() || amount.GreaterThan(sale.FinalAmount) {
		return decimal.Zero, domain.Invalid("balance amount must be in (0, %s]", sale.FinalAmount.StringFixed(2))
	}
	return amount, nil
}

func (s *SaleService) creditMember(ctx context.Context, tx repositories.Tx, sale *models.Sale, m *models.Member, operator uuid.UUID) error {
	m.RecordPurchase(sale.FinalAmount, sale.PointsEarned)
	ref := sale.ID

	purchase := models.NewMemberTransaction(m.ID, models.TxPurchase, 0, sale.BalancePaid.Neg(),
		fmt.Sprintf("purchase %s", sale.FinalAmount.StringFixed(2)), operator)
	purchase.ReferenceType, purchase.ReferenceID = models.RefSale, &ref
	if err := tx.Members().AddTransaction(ctx, purchase); err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	if sale.PointsEarned > 0 {
		earn := models.NewMemberTransaction(m.ID, models.TxPointsEarn, sale.PointsEarned, decimal.Zero,
			fmt.Sprintf("earned %d points", sale.PointsEarned), operator)
		earn.ReferenceType, earn.ReferenceID = models.RefSale, &ref
		if err := tx.Members().AddTransaction(ctx, earn); err != nil {
			return fmt.Errorf("record points: %w", err)
		}
	}
	if err := promote(ctx, tx, m, operator, models.RefSale, &ref); err != nil {
		return err
	}
	return tx.Members().Update(ctx, m)
}

// Cancel voids an open or completed sale and returns every item to stock.
// A completed member sale also takes back its points and refunds the
// balance paid. Cancelling a completed sale needs the refund permission.
func (s *SaleService) Cancel(ctx context.Context, actor models.Actor, saleID uuid.UUID, reason string) (*models.Sale, error) {
	if err := actor.Authorize(models.PermSell); err != nil {
		return nil, err
	}
	var (
		sale *models.Sale
		l    *ledger
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if sale, err = tx.Sales().GetForUpdate(ctx, saleID); err != nil {
			return err
		}
		wasCompleted := sale.Status == models.SaleCompleted
		if wasCompleted {
			if err := actor.Authorize(models.PermRefundSale); err != nil {
				return err
			}
		}
		if err := sale.Cancel(); err != nil {
			return err
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			sale.Remark = strings.TrimSpace(sale.Remark + "\ncancelled: " + reason)
		}

		l = s.stock.openLedger(tx)
		ref := sale.ID
		items := slices.Clone(sale.Items)
		slices.SortFunc(items, func(a, b *models.SaleItem) int {
			return cmp.Compare(a.ProductID.String(), b.ProductID.String())
		})
		for _, it := range items {
			if _, _, err := l.apply(ctx, movement{
				ProductID:     it.ProductID,
				Kind:          models.MovementIn,
				Quantity:      it.Quantity,
				OperatorID:    actor.ID,
				Note:          "sale cancelled",
				ReferenceType: models.RefSaleCancel,
				ReferenceID:   &ref,
			}); err != nil {
				return err
			}
		}

		if wasCompleted && sale.MemberID != nil {
			m, err := tx.Members().GetForUpdate(ctx, *sale.MemberID)
			if err != nil {
				return err
			}
			removed := m.ReversePurchase(sale.FinalAmount, sale.BalancePaid, sale.PointsEarned)
			refund := models.NewMemberTransaction(m.ID, models.TxRefund, -removed, sale.BalancePaid,
				fmt.Sprintf("sale cancelled, %s refunded to balance", sale.BalancePaid.StringFixed(2)), actor.ID)
			refund.ReferenceType, refund.ReferenceID = models.RefSaleCancel, &ref
			if err := tx.Members().AddTransaction(ctx, refund); err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
			if err := tx.Members().Update(ctx, m); err != nil {
				return err
			}
		}
		if err := tx.Sales().Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		if err := recordOp(ctx, tx, actor, models.OpSale, "sale.cancelled", "sale", sale.ID,
			"cancelled, %d lines restocked. %s", len(items), reason); err != nil {
			return err
		}
		return tx.Outbox().Record(ctx, events.TopicSaleCancelled, saleEvent(sale, actor.ID))
	})
	if err != nil {
		return nil, err
	}
	s.stock.afterCommit(ctx, l)
	s.log.InfoContext(ctx, "sale cancelled", "sale_id", saleID, "items", len(sale.Items))
	return sale, nil
}

func (s *SaleService) Get(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	return s.store.Sales().GetByID(ctx, id)
}

func (s *SaleService) List(ctx context.Context, f repositories.SaleFilter) ([]*models.Sale, int, error) {
	switch f.Status {
	case "", models.SaleOpen, models.SaleCompleted, models.SaleCancelled:
	default:
		return nil, 0, domain.Invalid("unknown sale status %q", f.Status)
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return nil, 0, domain.Invalid("until must not be before since")
	}
	return s.store.Sales().List(ctx, f)
}

func saleEvent(sale *models.Sale, operator uuid.UUID) events.SaleEvent {
	return events.SaleEvent{
		EventID:      uuid.New(),
		Version:      events.Version,
		SaleID:       sale.ID,
		MemberID:     sale.MemberID,
		Status:       string(sale.Status),
		FinalAmount:  sale.FinalAmount,
		PointsEarned: sale.PointsEarned,
		OperatorID:   operator,
		OccurredAt:   time.Now().UTC(),
	}
}
