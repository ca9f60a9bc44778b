package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/barcode"
	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// CatalogService manages categories and products.
type CatalogService struct {
	store   repositories.Store
	stock   *StockService
	log     logger.Logger
	cache   ProductCache
	barcode BarcodeLookup
}

// NewCatalogService returns a CatalogService. Cache and Barcode may be nil.
func NewCatalogService(d Deps, stock *StockService) *CatalogService {
	return &CatalogService{
		store:   d.Store,
		stock:   stock,
		log:     d.Logger,
		cache:   d.Cache,
		barcode: d.Barcode,
	}
}

// CreateCategory adds a category with a unique name.
func (s *CatalogService) CreateCategory(ctx context.Context, actor models.Actor, name, description string) (*models.Category, error) {
	if err := actor.Authorize(models.PermManageCatalog); err != nil {
		return nil, err
	}
	c, err := models.NewCategory(name, description)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if err := tx.Categories().Create(ctx, c); err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		return recordOp(ctx, tx, actor, models.OpCatalog, "category.created", "category", c.ID, "created category %q", c.Name)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.store.Categories().List(ctx)
}

// CreateProductRequest describes a new product. InitialStock is recorded
// as an IN movement in the same transaction as the product.
type CreateProductRequest struct {
	Barcode      string
	Attributes   models.ProductAttributes
	InitialStock int
	WarningLevel *int
}

// CreateProduct adds a product, its stock row and any initial stock atomically.
func (s *CatalogService) CreateProduct(ctx context.Context, actor models.Actor, req CreateProductRequest) (*models.Product, error) {
	if err := actor.Authorize(models.PermManageCatalog); err != nil {
		return nil, err
	}
	if req.InitialStock < 0 || req.InitialStock > models.MaxQuantity {
		return nil, domain.Invalid("initial stock must be between 0 and %d", models.MaxQuantity)
	}
	if req.WarningLevel != nil && (*req.WarningLevel < 0 || *req.WarningLevel > models.MaxQuantity) {
		return nil, domain.Invalid("warning level must be between 0 and %d", models.MaxQuantity)
	}
	p, err := models.NewProduct(req.Barcode, req.Attributes)
	if err != nil {
		return nil, err
	}

	var l *ledger
	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if err := s.checkCategory(ctx, tx, p.CategoryID); err != nil {
			return err
		}
		if err := tx.Products().Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		level, err := tx.Stock().GetForUpdate(ctx, p.ID, s.stock.settings.DefaultWarningLevel)
		if err != nil {
			return fmt.Errorf("create stock: %w", err)
		}
		if req.WarningLevel != nil {
			if err := level.SetWarningLevel(*req.WarningLevel); err != nil {
				return err
			}
			if err := tx.Stock().Save(ctx, level); err != nil {
				return fmt.Errorf("save stock: %w", err)
			}
		}
		l = s.stock.openLedger(tx)
		if req.InitialStock > 0 {
			_, _, err := l.apply(ctx, movement{
				ProductID:     p.ID,
				Kind:          models.MovementIn,
				Quantity:      req.InitialStock,
				OperatorID:    actor.ID,
				Note:          "initial stock",
				ReferenceType: models.RefInitialStock,
			})
			if err != nil {
				return err
			}
		}
		return recordOp(ctx, tx, actor, models.OpCatalog, "product.created", "product", p.ID,
			"created product %s %q at %s, initial stock %d", p.Barcode, p.Name, p.Price, req.InitialStock)
	})
	if err != nil {
		return nil, err
	}
	s.stock.afterCommit(ctx, l)
	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "barcode", p.Barcode, "initial_stock", req.InitialStock)
	return p, nil
}

// UpdateProduct replaces the descriptive attributes of a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor models.Actor, id uuid.UUID, attrs models.ProductAttributes) (*models.Product, error) {
	if err := actor.Authorize(models.PermManageCatalog); err != nil {
		return nil, err
	}
	var p *models.Product
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if p, err = tx.Products().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.checkCategory(ctx, tx, attrs.CategoryID); err != nil {
			return err
		}
		if err := p.Update(attrs); err != nil {
			return err
		}
		if err := tx.Products().Update(ctx, p); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpCatalog, "product.updated", "product", p.ID,
			"updated product %s %q, price %s, cost %s", p.Barcode, p.Name, p.Price, p.Cost)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.Barcode)
	return p, nil
}

// SetProductActive activates or deactivates a product. Deactivated
// products keep their history but cannot be sold or counted.
func (s *CatalogService) SetProductActive(ctx context.Context, actor models.Actor, id uuid.UUID, active bool) (*models.Product, error) {
	if err := actor.Authorize(models.PermManageCatalog); err != nil {
		return nil, err
	}
	var p *models.Product
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if p, err = tx.Products().GetByID(ctx, id); err != nil {
			return err
		}
		p.SetActive(active)
		if err := tx.Products().Update(ctx, p); err != nil {
			return err
		}
		action := "product.deactivated"
		if active {
			action = "product.activated"
		}
		return recordOp(ctx, tx, actor, models.OpCatalog, action, "product", p.ID, "product %s %q", p.Barcode, p.Name)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.Barcode)
	s.log.InfoContext(ctx, "product active flag changed", "product_id", id, "active", active)
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.store.Products().GetByID(ctx, id)
}

// GetProductByBarcode reads through the product cache. Cache failures
// fall back to the store.
func (s *CatalogService) GetProductByBarcode(ctx context.Context, code string) (*models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Invalid("barcode is required")
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, code)
		switch {
		case err == nil:
			return fromCache(cached), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			s.log.WarnContext(ctx, "product cache read failed", "barcode", code, "error", err)
		}
	}
	p, err := s.store.Products().GetByBarcode(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, toCache(p)); err != nil {
			s.log.WarnContext(ctx, "product cache write failed", "barcode", code, "error", err)
		}
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f repositories.ProductFilter) ([]*models.Product, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.store.Products().List(ctx, f)
}

// BarcodeLookupResult is either a known product or an advisory suggestion.
// Both are nil when nothing could be found.
type BarcodeLookupResult struct {
	Product    *models.Product     `json:"product,omitempty"`
	Suggestion *barcode.Suggestion `json:"suggestion,omitempty"`
}

// LookupBarcode returns the existing product for code, else a suggestion
// from the external catalogue. Lookup failures are logged and produce an
// empty result.
func (s *CatalogService) LookupBarcode(ctx context.Context, code string) (*BarcodeLookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Invalid("barcode is required")
	}
	p, err := s.store.Products().GetByBarcode(ctx, code)
	switch {
	case err == nil:
		return &BarcodeLookupResult{Product: p}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	if s.barcode == nil {
		return &BarcodeLookupResult{}, nil
	}
	sug, err := s.barcode.Lookup(ctx, code)
	if err != nil {
		if !errors.Is(err, barcode.ErrNotFound) && !errors.Is(err, barcode.ErrDisabled) {
			s.log.WarnContext(ctx, "barcode lookup failed", "barcode", code, "error", err)
		}
		return &BarcodeLookupResult{}, nil
	}
	return &BarcodeLookupResult{Suggestion: sug}, nil
}

func (s *CatalogService) checkCategory(ctx context.Context, tx repositories.Tx, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := tx.Categories().GetByID(ctx, *id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("category %s does not exist", id)
		}
		return err
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.WarnContext(ctx, "product cache invalidation failed", "barcode", code, "error", err)
	}
}

func toCache(p *models.Product) *cache.CachedProduct {
	return &cache.CachedProduct{
		ID:            p.ID,
		Barcode:       p.Barcode,
		Name:          p.Name,
		CategoryID:    p.CategoryID,
		Price:         p.Price,
		Cost:          p.Cost,
		Specification: p.Specification,
		Manufacturer:  p.Manufacturer,
		Description:   p.Description,
		IsActive:      p.IsActive,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromCache(c *cache.CachedProduct) *models.Product {
	return &models.Product{
		ID:      c.ID,
		Barcode: c.Barcode,
		ProductAttributes: models.ProductAttributes{
			Name:          c.Name,
			CategoryID:    c.CategoryID,
			Price:         c.Price,
			Cost:          c.Cost,
			Specification: c.Specification,
			Manufacturer:  c.Manufacturer,
			Description:   c.Description,
		},
		IsActive:  c.IsActive,
		UpdatedAt: c.UpdatedAt,
	}
}
