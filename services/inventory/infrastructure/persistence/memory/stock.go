package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type stockRepo struct{ v *view }

func (r stockRepo) Get(_ context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	s, ok := st.stock[productID]
	if !ok {
		return nil, domain.NotFound("stock for product", productID)
	}
	return &s, nil
}

func (r stockRepo) GetForUpdate(_ context.Context, productID uuid.UUID, defaultWarningLevel int) (*models.StockLevel, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.products[productID]; !ok {
		return nil, domain.NotFound("product", productID)
	}
	s, ok := st.stock[productID]
	if !ok {
		s = *models.NewStockLevel(productID, defaultWarningLevel)
		st.stock[productID] = s
	}
	return &s, nil
}

func (r stockRepo) Save(_ context.Context, s *models.StockLevel) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if s.Quantity < 0 {
		return domain.Invalid("stock quantity must not be negative")
	}
	st.stock[s.ProductID] = *s
	return nil
}

func (r stockRepo) view(st *state, s models.StockLevel) *models.StockView {
	p := st.products[s.ProductID]
	v := &models.StockView{
		StockLevel: s,
		Barcode:    p.Barcode,
		Name:       p.Name,
		IsActive:   p.IsActive,
		Price:      p.Price,
		Cost:       p.Cost,
	}
	if p.CategoryID != nil {
		v.CategoryName = st.categories[*p.CategoryID].Name
	}
	return v
}

func (r stockRepo) ListLow(_ context.Context) ([]*models.StockView, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.StockView
	for _, s := range st.stock {
		if !s.IsLowStock() || !st.products[s.ProductID].IsActive {
			continue
		}
		out = append(out, r.view(st, s))
	}
	slices.SortFunc(out, func(a, b *models.StockView) int {
		return cmp.Or(cmp.Compare(a.Quantity, b.Quantity), cmp.Compare(a.Barcode, b.Barcode))
	})
	return out, nil
}

func (r stockRepo) ListAll(_ context.Context) ([]*models.StockView, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	out := make([]*models.StockView, 0, len(st.stock))
	for _, s := range st.stock {
		out = append(out, r.view(st, s))
	}
	slices.SortFunc(out, func(a, b *models.StockView) int { return cmp.Compare(a.Barcode, b.Barcode) })
	return out, nil
}

type movementRepo struct{ v *view }

func (r movementRepo) Create(_ context.Context, m *models.StockMovement) error {
	st, unlock := r.v.acquire()
	defer unlock()
	st.seq++
	m.Seq = st.seq
	st.movements = append(st.movements, *m)
	return nil
}

func matchesMovement(m *models.StockMovement, f repositories.MovementFilter) bool {
	if f.ProductID != nil && m.ProductID != *f.ProductID {
		return false
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.Since != nil && m.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !m.CreatedAt.Before(*f.Until) {
		return false
	}
	return true
}

// List returns newest movements first.
func (r movementRepo) List(_ context.Context, f repositories.MovementFilter) ([]*models.StockMovement, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.StockMovement
	for i := len(st.movements) - 1; i >= 0; i-- {
		m := st.movements[i]
		if matchesMovement(&m, f) {
			out = append(out, &m)
		}
	}
	return page(out, f.QueryOpts), len(out), nil
}

func (r movementRepo) ListForProduct(_ context.Context, productID uuid.UUID) ([]*models.StockMovement, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.StockMovement
	for _, m := range st.movements {
		if m.ProductID == productID {
			out = append(out, &m)
		}
	}
	return out, nil
}
