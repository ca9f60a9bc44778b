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

type saleRepo struct{ v *view }

func (r saleRepo) Create(_ context.Context, s *models.Sale) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if s.MemberID != nil {
		if _, ok := st.members[*s.MemberID]; !ok {
			return domain.NotFound("member", *s.MemberID)
		}
	}
	stored := *s
	stored.Items = nil
	st.sales[s.ID] = stored
	return nil
}

func (r saleRepo) load(st *state, id uuid.UUID) (*models.Sale, error) {
	s, ok := st.sales[id]
	if !ok {
		return nil, domain.NotFound("sale", id)
	}
	items := st.saleItems[id]
	s.Items = make([]*models.SaleItem, 0, len(items))
	for _, it := range items {
		p := st.products[it.ProductID]
		it.Barcode = p.Barcode
		it.ProductName = p.Name
		s.Items = append(s.Items, &it)
	}
	return &s, nil
}

func (r saleRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Sale, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	return r.load(st, id)
}

func (r saleRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*models.Sale, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	return r.load(st, id)
}

func (r saleRepo) Update(_ context.Context, s *models.Sale) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.sales[s.ID]; !ok {
		return domain.NotFound("sale", s.ID)
	}
	stored := *s
	stored.Items = nil
	st.sales[s.ID] = stored
	return nil
}

func (r saleRepo) AddItem(_ context.Context, item *models.SaleItem) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.sales[item.SaleID]; !ok {
		return domain.NotFound("sale", item.SaleID)
	}
	st.saleItems[item.SaleID] = append(st.saleItems[item.SaleID], *item)
	return nil
}

func (r saleRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	st, unlock := r.v.acquire()
	defer unlock()
	for saleID, items := range st.saleItems {
		if i := slices.IndexFunc(items, func(it models.SaleItem) bool { return it.ID == itemID }); i >= 0 {
			st.saleItems[saleID] = slices.Delete(items, i, i+1)
			return nil
		}
	}
	return domain.NotFound("sale item", itemID)
}

func (r saleRepo) List(_ context.Context, f repositories.SaleFilter) ([]*models.Sale, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var ids []uuid.UUID
	for id, s := range st.sales {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.MemberID != nil && (s.MemberID == nil || *s.MemberID != *f.MemberID) {
			continue
		}
		if f.Since != nil && s.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && !s.CreatedAt.Before(*f.Until) {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return cmp.Or(st.sales[b].CreatedAt.Compare(st.sales[a].CreatedAt), cmp.Compare(a.String(), b.String()))
	})
	total := len(ids)
	ids = page(ids, f.QueryOpts)
	out := make([]*models.Sale, 0, len(ids))
	for _, id := range ids {
		s, _ := r.load(st, id)
		out = append(out, s)
	}
	return out, total, nil
}
