package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type operatorRepo struct{ q database.DBTX }

const operatorColumns = `id, username, password_hash, role, is_active, created_at`

func scanOperator(s scanner) (*models.Operator, error) {
	var o models.Operator
	if err := s.Scan(&o.ID, &o.Username, &o.PasswordHash, &o.Role, &o.IsActive, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r operatorRepo) Create(ctx context.Context, o *models.Operator) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO operators (`+operatorColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Username, o.PasswordHash, o.Role, o.IsActive, o.CreatedAt)
	return translate(err, "insert operator")
}

func (r operatorRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	o, err := scanOperator(r.q.QueryRowContext(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "operator", id)
	}
	return o, nil
}

func (r operatorRepo) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	o, err := scanOperator(r.q.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE lower(username) = lower($1)`, username))
	if err != nil {
		return nil, notFound(err, "operator", username)
	}
	return o, nil
}

type categoryRepo struct{ q database.DBTX }

func (r categoryRepo) Create(ctx context.Context, c *models.Category) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Description, c.CreatedAt)
	return translate(err, "insert category")
}

func (r categoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, "category", id)
	}
	return &c, nil
}

func (r categoryRepo) List(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var out []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

type productRepo struct{ q database.DBTX }

const productColumns = `p.id, p.barcode, p.name, p.category_id, p.price, p.cost, p.specification,
	p.manufacturer, p.description, p.is_active, p.created_at, p.updated_at`

func scanProduct(s scanner) (*models.Product, error) {
	var (
		p        models.Product
		category uuid.NullUUID
	)
	err := s.Scan(&p.ID, &p.Barcode, &p.Name, &category, &p.Price, &p.Cost, &p.Specification,
		&p.Manufacturer, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		p.CategoryID = &category.UUID
	}
	return &p, nil
}

func (r productRepo) Create(ctx context.Context, p *models.Product) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, barcode, name, category_id, price, cost, specification,
			manufacturer, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Barcode, p.Name, p.CategoryID, p.Price, p.Cost, p.Specification,
		p.Manufacturer, p.Description, p.IsActive, p.CreatedAt, p.UpdatedAt)
	return translate(err, "insert product")
}

func (r productRepo) Update(ctx context.Context, p *models.Product) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE products SET name = $2, category_id = $3, price = $4, cost = $5, specification = $6,
			manufacturer = $7, description = $8, is_active = $9, updated_at = $10
		WHERE id = $1`,
		p.ID, p.Name, p.CategoryID, p.Price, p.Cost, p.Specification,
		p.Manufacturer, p.Description, p.IsActive, p.UpdatedAt)
	if err != nil {
		return translate(err, "update product")
	}
	return mustAffect(res, "product", p.ID)
}

func (r productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return p, nil
}

func (r productRepo) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.barcode = $1`, barcode))
	if err != nil {
		return nil, notFound(err, "product with barcode", barcode)
	}
	return p, nil
}

func (r productRepo) List(ctx context.Context, f repositories.ProductFilter) ([]*models.Product, int, error) {
	var w where
	if f.CategoryID != nil {
		w.add("p.category_id = ?", *f.CategoryID)
	}
	if f.Active != nil {
		w.add("p.is_active = ?", *f.Active)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add(`(p.name ILIKE ? OR p.barcode LIKE ?)`, likePattern(s))
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM products p`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	filter := w.String()
	limit := w.page(f.QueryOpts)
	products, err := r.query(ctx, `SELECT `+productColumns+` FROM products p`+filter+` ORDER BY p.name, p.barcode`+limit, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r productRepo) ListActive(ctx context.Context, categoryID *uuid.UUID) ([]*models.Product, error) {
	var w where
	w.conds = append(w.conds, "p.is_active")
	if categoryID != nil {
		w.add("p.category_id = ?", *categoryID)
	}
	return r.query(ctx, `SELECT `+productColumns+` FROM products p`+w.String()+` ORDER BY p.id`, w.args...)
}

func (r productRepo) query(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	var out []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
