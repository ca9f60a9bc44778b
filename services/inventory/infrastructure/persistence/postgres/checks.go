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

type checkRepo struct{ q database.DBTX }

const checkColumns = `id, name, description, status, category_id, created_by, approved_by, adjusted,
	created_at, updated_at, started_at, completed_at, approved_at, cancelled_at`

func scanCheck(s scanner) (*models.InventoryCheck, error) {
	var (
		c                                       models.InventoryCheck
		category, approver                      sql.Null[uuid.UUID]
		started, completed, approved, cancelled sql.Null[time.Time]
	)
	err := s.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &category, &c.CreatedBy, &approver, &c.Adjusted,
		&c.CreatedAt, &c.UpdatedAt, &started, &completed, &approved, &cancelled)
	if err != nil {
		return nil, err
	}
	c.CategoryID = nullable(category)
	c.ApprovedBy = nullable(approver)
	c.StartedAt = nullable(started)
	c.CompletedAt = nullable(completed)
	c.ApprovedAt = nullable(approved)
	c.CancelledAt = nullable(cancelled)
	return &c, nil
}

func (r checkRepo) Create(ctx context.Context, c *models.InventoryCheck) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO inventory_checks (`+checkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.Name, c.Description, c.Status, c.CategoryID, c.CreatedBy, c.ApprovedBy, c.Adjusted,
		c.CreatedAt, c.UpdatedAt, c.StartedAt, c.CompletedAt, c.ApprovedAt, c.CancelledAt)
	return translate(err, "insert inventory check")
}

func (r checkRepo) CreateItems(ctx context.Context, items []*models.InventoryCheckItem) error {
	for _, it := range items {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO inventory_check_items (id, check_id, product_id, system_quantity, actual_quantity,
				difference, notes, counted_by, counted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, it.CheckID, it.ProductID, it.SystemQuantity, it.ActualQuantity,
			it.Difference, it.Notes, it.CountedBy, it.CountedAt)
		if err != nil {
			return translate(err, "insert inventory check item")
		}
	}
	return nil
}

func (r checkRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryCheck, error) {
	c, err := scanCheck(r.q.QueryRowContext(ctx, `SELECT `+checkColumns+` FROM inventory_checks WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "inventory check", id)
	}
	return c, nil
}

func (r checkRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryCheck, error) {
	c, err := scanCheck(r.q.QueryRowContext(ctx, `SELECT `+checkColumns+` FROM inventory_checks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "inventory check", id)
	}
	return c, nil
}

func (r checkRepo) Update(ctx context.Context, c *models.InventoryCheck) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE inventory_checks SET name = $2, description = $3, status = $4, approved_by = $5, adjusted = $6,
			updated_at = $7, started_at = $8, completed_at = $9, approved_at = $10, cancelled_at = $11
		WHERE id = $1`,
		c.ID, c.Name, c.Description, c.Status, c.ApprovedBy, c.Adjusted,
		c.UpdatedAt, c.StartedAt, c.CompletedAt, c.ApprovedAt, c.CancelledAt)
	if err != nil {
		return translate(err, "update inventory check")
	}
	return mustAffect(res, "inventory check", c.ID)
}

func (r checkRepo) List(ctx context.Context, status models.CheckStatus, opts repositories.QueryOpts) ([]*models.InventoryCheck, int, error) {
	var w where
	if status != "" {
		w.add("status = ?", status)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM inventory_checks`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inventory checks: %w", err)
	}
	filter := w.String()
	limit := w.page(opts)
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+checkColumns+` FROM inventory_checks`+filter+` ORDER BY created_at DESC, id`+limit, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query inventory checks: %w", err)
	}
	defer rows.Close()
	var out []*models.InventoryCheck
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan inventory check: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

const checkItemQuery = `
	SELECT i.id, i.check_id, i.product_id, i.system_quantity, i.actual_quantity, i.difference,
		i.notes, i.counted_by, i.counted_at, p.barcode, p.name, p.cost
	FROM inventory_check_items i
	JOIN products p ON p.id = i.product_id`

func scanCheckItem(s scanner) (*models.InventoryCheckItem, error) {
	var (
		it           models.InventoryCheckItem
		actual, diff sql.Null[int]
		countedBy    sql.Null[uuid.UUID]
		countedAt    sql.Null[time.Time]
	)
	err := s.Scan(&it.ID, &it.CheckID, &it.ProductID, &it.SystemQuantity, &actual, &diff,
		&it.Notes, &countedBy, &countedAt, &it.Barcode, &it.ProductName, &it.UnitCost)
	if err != nil {
		return nil, err
	}
	it.ActualQuantity = nullable(actual)
	it.Difference = nullable(diff)
	it.CountedBy = nullable(countedBy)
	it.CountedAt = nullable(countedAt)
	return &it, nil
}

func (r checkRepo) Items(ctx context.Context, checkID uuid.UUID) ([]*models.InventoryCheckItem, error) {
	if _, err := r.GetByID(ctx, checkID); err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, checkItemQuery+` WHERE i.check_id = $1 ORDER BY i.product_id`, checkID)
	if err != nil {
		return nil, fmt.Errorf("query inventory check items: %w", err)
	}
	defer rows.Close()
	var out []*models.InventoryCheckItem
	for rows.Next() {
		it, err := scanCheckItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory check item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r checkRepo) GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryCheckItem, error) {
	it, err := scanCheckItem(r.q.QueryRowContext(ctx, checkItemQuery+` WHERE i.id = $1`, itemID))
	if err != nil {
		return nil, notFound(err, "inventory check item", itemID)
	}
	return it, nil
}

func (r checkRepo) UpdateItem(ctx context.Context, it *models.InventoryCheckItem) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE inventory_check_items SET actual_quantity = $2, difference = $3, notes = $4,
			counted_by = $5, counted_at = $6
		WHERE id = $1`,
		it.ID, it.ActualQuantity, it.Difference, it.Notes, it.CountedBy, it.CountedAt)
	if err != nil {
		return translate(err, "update inventory check item")
	}
	return mustAffect(res, "inventory check item", it.ID)
}

func (r checkRepo) CountUnchecked(ctx context.Context, checkID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*) FROM inventory_check_items WHERE check_id = $1 AND actual_quantity IS NULL`, checkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unchecked items: %w", err)
	}
	return n, nil
}
