package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type operatorRepo struct{ v *view }

func (r operatorRepo) Create(_ context.Context, o *models.Operator) error {
	st, unlock := r.v.acquire()
	defer unlock()
	for _, existing := range st.operators {
		if strings.EqualFold(existing.Username, o.Username) {
			return domain.ErrAlreadyExists
		}
	}
	st.operators[o.ID] = *o
	return nil
}

func (r operatorRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Operator, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	o, ok := st.operators[id]
	if !ok {
		return nil, domain.NotFound("operator", id)
	}
	return &o, nil
}

func (r operatorRepo) GetByUsername(_ context.Context, username string) (*models.Operator, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	for _, o := range st.operators {
		if strings.EqualFold(o.Username, username) {
			return &o, nil
		}
	}
	return nil, domain.NotFound("operator", username)
}

type categoryRepo struct{ v *view }

func (r categoryRepo) Create(_ context.Context, c *models.Category) error {
	st, unlock := r.v.acquire()
	defer unlock()
	for _, existing := range st.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return domain.ErrAlreadyExists
		}
	}
	st.categories[c.ID] = *c
	return nil
}

func (r categoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	c, ok := st.categories[id]
	if !ok {
		return nil, domain.NotFound("category", id)
	}
	return &c, nil
}

func (r categoryRepo) List(_ context.Context) ([]*models.Category, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	out := make([]*models.Category, 0, len(st.categories))
	for _, c := range st.categories {
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *models.Category) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

type productRepo struct{ v *view }

func (r productRepo) Create(_ context.Context, p *models.Product) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, taken := st.barcodes[p.Barcode]; taken {
		return domain.ErrAlreadyExists
	}
	if p.CategoryID != nil {
		if _, ok := st.categories[*p.CategoryID]; !ok {
			return domain.NotFound("category", *p.CategoryID)
		}
	}
	st.products[p.ID] = *p
	st.barcodes[p.Barcode] = p.ID
	return nil
}

func (r productRepo) Update(_ context.Context, p *models.Product) error {
	st, unlock := r.v.acquire()
	defer unlock()
	old, ok := st.products[p.ID]
	if !ok {
		return domain.NotFound("product", p.ID)
	}
	if old.Barcode != p.Barcode {
		if _, taken := st.barcodes[p.Barcode]; taken {
			return domain.ErrAlreadyExists
		}
		delete(st.barcodes, old.Barcode)
		st.barcodes[p.Barcode] = p.ID
	}
	if p.CategoryID != nil {
		if _, ok := st.categories[*p.CategoryID]; !ok {
			return domain.NotFound("category", *p.CategoryID)
		}
	}
	st.products[p.ID] = *p
	return nil
}

func (r productRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	p, ok := st.products[id]
	if !ok {
		return nil, domain.NotFound("product", id)
	}
	return &p, nil
}

func (r productRepo) GetByBarcode(_ context.Context, barcode string) (*models.Product, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	id, ok := st.barcodes[barcode]
	if !ok {
		return nil, domain.NotFound("product with barcode", barcode)
	}
	p := st.products[id]
	return &p, nil
}

func (r productRepo) List(_ context.Context, f repositories.ProductFilter) ([]*models.Product, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []*models.Product
	for _, p := range st.products {
		if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
			continue
		}
		if f.Active != nil && p.IsActive != *f.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(p.Barcode, search) {
			continue
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *models.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Barcode, b.Barcode))
	})
	return page(out, f.QueryOpts), len(out), nil
}

func (r productRepo) ListActive(_ context.Context, categoryID *uuid.UUID) ([]*models.Product, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.Product
	for _, p := range st.products {
		if !p.IsActive {
			continue
		}
		if categoryID != nil && (p.CategoryID == nil || *p.CategoryID != *categoryID) {
			continue
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *models.Product) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	return out, nil
}
