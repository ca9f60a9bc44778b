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

type checkRepo struct{ v *view }

func (r checkRepo) Create(_ context.Context, c *models.InventoryCheck) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, exists := st.checks[c.ID]; exists {
		return domain.ErrAlreadyExists
	}
	stored := *c
	stored.Items = nil
	st.checks[c.ID] = stored
	return nil
}

func (r checkRepo) CreateItems(_ context.Context, items []*models.InventoryCheckItem) error {
	st, unlock := r.v.acquire()
	defer unlock()
	for _, it := range items {
		if _, ok := st.checks[it.CheckID]; !ok {
			return domain.NotFound("inventory check", it.CheckID)
		}
		for _, existing := range st.checkItems[it.CheckID] {
			if existing.ProductID == it.ProductID {
				return domain.ErrAlreadyExists
			}
		}
		st.checkItems[it.CheckID] = append(st.checkItems[it.CheckID], *it)
		st.itemCheck[it.ID] = it.CheckID
	}
	for _, it := range items {
		slices.SortFunc(st.checkItems[it.CheckID], func(a, b models.InventoryCheckItem) int {
			return cmp.Compare(a.ProductID.String(), b.ProductID.String())
		})
	}
	return nil
}

func (r checkRepo) get(st *state, id uuid.UUID) (*models.InventoryCheck, error) {
	c, ok := st.checks[id]
	if !ok {
		return nil, domain.NotFound("inventory check", id)
	}
	return &c, nil
}

func (r checkRepo) GetByID(_ context.Context, id uuid.UUID) (*models.InventoryCheck, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	return r.get(st, id)
}

func (r checkRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*models.InventoryCheck, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	return r.get(st, id)
}

func (r checkRepo) Update(_ context.Context, c *models.InventoryCheck) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.checks[c.ID]; !ok {
		return domain.NotFound("inventory check", c.ID)
	}
	stored := *c
	stored.Items = nil
	st.checks[c.ID] = stored
	return nil
}

func (r checkRepo) List(_ context.Context, status models.CheckStatus, opts repositories.QueryOpts) ([]*models.InventoryCheck, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.InventoryCheck
	for _, c := range st.checks {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *models.InventoryCheck) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return page(out, opts), len(out), nil
}

func (r checkRepo) withProduct(st *state, it models.InventoryCheckItem) *models.InventoryCheckItem {
	p := st.products[it.ProductID]
	it.Barcode = p.Barcode
	it.ProductName = p.Name
	it.UnitCost = p.Cost
	return &it
}

func (r checkRepo) Items(_ context.Context, checkID uuid.UUID) ([]*models.InventoryCheckItem, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.checks[checkID]; !ok {
		return nil, domain.NotFound("inventory check", checkID)
	}
	items := st.checkItems[checkID]
	out := make([]*models.InventoryCheckItem, 0, len(items))
	for _, it := range items {
		out = append(out, r.withProduct(st, it))
	}
	return out, nil
}

func (r checkRepo) GetItem(_ context.Context, itemID uuid.UUID) (*models.InventoryCheckItem, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	checkID, ok := st.itemCheck[itemID]
	if !ok {
		return nil, domain.NotFound("inventory check item", itemID)
	}
	for _, it := range st.checkItems[checkID] {
		if it.ID == itemID {
			return r.withProduct(st, it), nil
		}
	}
	return nil, domain.NotFound("inventory check item", itemID)
}

func (r checkRepo) UpdateItem(_ context.Context, item *models.InventoryCheckItem) error {
	st, unlock := r.v.acquire()
	defer unlock()
	items := st.checkItems[item.CheckID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = *item
			return nil
		}
	}
	return domain.NotFound("inventory check item", item.ID)
}

func (r checkRepo) CountUnchecked(_ context.Context, checkID uuid.UUID) (int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	n := 0
	for _, it := range st.checkItems[checkID] {
		if !it.Counted() {
			n++
		}
	}
	return n, nil
}
