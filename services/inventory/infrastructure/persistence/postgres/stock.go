package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type stockRepo struct{ q database.DBTX }

func (r stockRepo) Get(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	var s models.StockLevel
	err := r.q.QueryRowContext(ctx,
		`SELECT product_id, quantity, warning_level, updated_at FROM stock_levels WHERE product_id = $1`, productID).
		Scan(&s.ProductID, &s.Quantity, &s.WarningLevel, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "stock level", productID)
	}
	return &s, nil
}

// GetForUpdate inserts the row when missing and then takes the row lock.
// Concurrent first movements on the same product race on the insert; ON
// CONFLICT lets the loser fall through to the lock.
func (r stockRepo) GetForUpdate(ctx context.Context, productID uuid.UUID, defaultWarningLevel int) (*models.StockLevel, error) {
	if defaultWarningLevel < 0 {
		defaultWarningLevel = models.DefaultWarningLevel
	}
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO stock_levels (product_id, quantity, warning_level, updated_at)
		VALUES ($1, 0, $2, now())
		ON CONFLICT (product_id) DO NOTHING`, productID, defaultWarningLevel); err != nil {
		if database.ErrorCode(err) == database.CodeForeignKeyViolation {
			return nil, domain.NotFound("product", productID)
		}
		return nil, fmt.Errorf("insert stock level: %w", err)
	}
	var s models.StockLevel
	err := r.q.QueryRowContext(ctx, `
		SELECT product_id, quantity, warning_level, updated_at
		FROM stock_levels WHERE product_id = $1 FOR UPDATE`, productID).
		Scan(&s.ProductID, &s.Quantity, &s.WarningLevel, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "stock level", productID)
	}
	return &s, nil
}

func (r stockRepo) Save(ctx context.Context, s *models.StockLevel) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE stock_levels SET quantity = $2, warning_level = $3, updated_at = $4
		WHERE product_id = $1`, s.ProductID, s.Quantity, s.WarningLevel, s.UpdatedAt)
	if err != nil {
		return translate(err, "update stock level")
	}
	return mustAffect(res, "stock level", s.ProductID)
}

const stockViewQuery = `
	SELECT s.product_id, s.quantity, s.warning_level, s.updated_at,
		p.barcode, p.name, COALESCE(c.name, ''), p.is_active, p.price, p.cost
	FROM stock_levels s
	JOIN products p ON p.id = s.product_id
	LEFT JOIN categories c ON c.id = p.category_id`

func (r stockRepo) ListLow(ctx context.Context) ([]*models.StockView, error) {
	return r.views(ctx, stockViewQuery+` WHERE p.is_active AND s.quantity <= s.warning_level ORDER BY s.quantity, p.barcode`)
}

func (r stockRepo) ListAll(ctx context.Context) ([]*models.StockView, error) {
	return r.views(ctx, stockViewQuery+` ORDER BY p.barcode`)
}

func (r stockRepo) views(ctx context.Context, query string) ([]*models.StockView, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()
	var out []*models.StockView
	for rows.Next() {
		var v models.StockView
		if err := rows.Scan(&v.ProductID, &v.Quantity, &v.WarningLevel, &v.UpdatedAt,
			&v.Barcode, &v.Name, &v.CategoryName, &v.IsActive, &v.Price, &v.Cost); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

type movementRepo struct{ q database.DBTX }

const movementColumns = `id, seq, product_id, kind, quantity, quantity_before, quantity_after,
	operator_id, note, reference_type, reference_id, created_at`

func (r movementRepo) Create(ctx context.Context, m *models.StockMovement) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO stock_movements (id, product_id, kind, quantity, quantity_before, quantity_after,
			operator_id, note, reference_type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`,
		m.ID, m.ProductID, m.Kind, m.Quantity, m.QuantityBefore, m.QuantityAfter,
		m.OperatorID, m.Note, m.ReferenceType, m.ReferenceID, m.CreatedAt).Scan(&m.Seq)
	return translate(err, "insert stock movement")
}

func (r movementRepo) List(ctx context.Context, f repositories.MovementFilter) ([]*models.StockMovement, int, error) {
	var w where
	if f.ProductID != nil {
		w.add("product_id = ?", *f.ProductID)
	}
	if f.Kind != "" {
		w.add("kind = ?", f.Kind)
	}
	if f.Since != nil {
		w.add("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		w.add("created_at < ?", *f.Until)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM stock_movements`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock movements: %w", err)
	}
	filter := w.String()
	limit := w.page(f.QueryOpts)
	out, err := r.query(ctx, `SELECT `+movementColumns+` FROM stock_movements`+filter+` ORDER BY seq DESC`+limit, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r movementRepo) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*models.StockMovement, error) {
	return r.query(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE product_id = $1 ORDER BY seq`, productID)
}

func (r movementRepo) query(ctx context.Context, query string, args ...any) ([]*models.StockMovement, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer rows.Close()
	var out []*models.StockMovement
	for rows.Next() {
		var (
			m   models.StockMovement
			ref uuid.NullUUID
		)
		if err := rows.Scan(&m.ID, &m.Seq, &m.ProductID, &m.Kind, &m.Quantity, &m.QuantityBefore, &m.QuantityAfter,
			&m.OperatorID, &m.Note, &m.ReferenceType, &ref, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		if ref.Valid {
			m.ReferenceID = &ref.UUID
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
