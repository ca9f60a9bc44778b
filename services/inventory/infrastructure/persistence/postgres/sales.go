package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type saleRepo struct{ q database.DBTX }

const saleColumns = `id, member_id, status, total_amount, discount_amount, final_amount, points_earned,
	payment_method, balance_paid, operator_id, remark, created_at, updated_at, completed_at, cancelled_at`

func scanSale(s scanner) (*models.Sale, error) {
	var (
		sale                 models.Sale
		member               sql.Null[uuid.UUID]
		completed, cancelled sql.Null[time.Time]
	)
	err := s.Scan(&sale.ID, &member, &sale.Status, &sale.TotalAmount, &sale.DiscountAmount, &sale.FinalAmount,
		&sale.PointsEarned, &sale.PaymentMethod, &sale.BalancePaid, &sale.OperatorID, &sale.Remark,
		&sale.CreatedAt, &sale.UpdatedAt, &completed, &cancelled)
	if err != nil {
		return nil, err
	}
	sale.MemberID = nullable(member)
	sale.CompletedAt = nullable(completed)
	sale.CancelledAt = nullable(cancelled)
	return &sale, nil
}

func (r saleRepo) Create(ctx context.Context, s *models.Sale) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.MemberID, s.Status, s.TotalAmount, s.DiscountAmount, s.FinalAmount, s.PointsEarned,
		s.PaymentMethod, s.BalancePaid, s.OperatorID, s.Remark, s.CreatedAt, s.UpdatedAt, s.CompletedAt, s.CancelledAt)
	return translate(err, "insert sale")
}

func (r saleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	return r.load(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

func (r saleRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	return r.load(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r saleRepo) load(ctx context.Context, query string, id uuid.UUID) (*models.Sale, error) {
	s, err := scanSale(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "sale", id)
	}
	if s.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

func (r saleRepo) items(ctx context.Context, saleID uuid.UUID) ([]*models.SaleItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT i.id, i.sale_id, i.product_id, i.quantity, i.price, i.actual_price, i.subtotal, i.created_at,
			p.barcode, p.name
		FROM sale_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.sale_id = $1
		ORDER BY i.created_at, i.id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()
	out := []*models.SaleItem{}
	for rows.Next() {
		var it models.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.Price, &it.ActualPrice,
			&it.Subtotal, &it.CreatedAt, &it.Barcode, &it.ProductName); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

func (r saleRepo) Update(ctx context.Context, s *models.Sale) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sales SET status = $2, total_amount = $3, discount_amount = $4, final_amount = $5,
			points_earned = $6, payment_method = $7, balance_paid = $8, remark = $9, updated_at = $10,
			completed_at = $11, cancelled_at = $12
		WHERE id = $1`,
		s.ID, s.Status, s.TotalAmount, s.DiscountAmount, s.FinalAmount, s.PointsEarned,
		s.PaymentMethod, s.BalancePaid, s.Remark, s.UpdatedAt, s.CompletedAt, s.CancelledAt)
	if err != nil {
		return translate(err, "update sale")
	}
	return mustAffect(res, "sale", s.ID)
}

func (r saleRepo) AddItem(ctx context.Context, it *models.SaleItem) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, price, actual_price, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		it.ID, it.SaleID, it.ProductID, it.Quantity, it.Price, it.ActualPrice, it.Subtotal, it.CreatedAt)
	return translate(err, "insert sale item")
}

func (r saleRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sale_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete sale item: %w", err)
	}
	return mustAffect(res, "sale item", itemID)
}

func (r saleRepo) List(ctx context.Context, f repositories.SaleFilter) ([]*models.Sale, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.MemberID != nil {
		w.add("member_id = ?", *f.MemberID)
	}
	if f.Since != nil {
		w.add("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		w.add("created_at < ?", *f.Until)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM sales`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}
	filter := w.String()
	limit := w.page(f.QueryOpts)
	rows, err := r.q.QueryContext(ctx, `SELECT `+saleColumns+` FROM sales`+filter+` ORDER BY created_at DESC, id`+limit, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query sales: %w", err)
	}
	var out []*models.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	// Items are loaded after the cursor is closed; a *sql.Tx runs one query at a time.
	for _, s := range out {
		if s.Items, err = r.items(ctx, s.ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}
