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

type memberRepo struct{ v *view }

func (r memberRepo) CreateLevel(_ context.Context, l *models.MemberLevel) error {
	st, unlock := r.v.acquire()
	defer unlock()
	for _, existing := range st.levels {
		if strings.EqualFold(existing.Name, l.Name) {
			return domain.ErrAlreadyExists
		}
	}
	st.levels[l.ID] = *l
	return nil
}

func (r memberRepo) GetLevel(_ context.Context, id uuid.UUID) (*models.MemberLevel, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	l, ok := st.levels[id]
	if !ok {
		return nil, domain.NotFound("member level", id)
	}
	return &l, nil
}

// ListLevels orders by priority then points threshold.
func (r memberRepo) ListLevels(_ context.Context, activeOnly bool) ([]*models.MemberLevel, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.MemberLevel
	for _, l := range st.levels {
		if activeOnly && !l.IsActive {
			continue
		}
		out = append(out, &l)
	}
	slices.SortFunc(out, func(a, b *models.MemberLevel) int {
		return cmp.Or(
			cmp.Compare(a.Priority, b.Priority),
			cmp.Compare(a.PointsThreshold, b.PointsThreshold),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return out, nil
}

func (r memberRepo) ClearDefaultLevel(_ context.Context) error {
	st, unlock := r.v.acquire()
	defer unlock()
	for id, l := range st.levels {
		if l.IsDefault {
			l.IsDefault = false
			st.levels[id] = l
		}
	}
	return nil
}

func (r memberRepo) Create(_ context.Context, m *models.Member) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.levels[m.LevelID]; !ok {
		return domain.NotFound("member level", m.LevelID)
	}
	for _, existing := range st.members {
		if existing.Phone == m.Phone || existing.MemberCode == m.MemberCode {
			return domain.ErrAlreadyExists
		}
	}
	st.members[m.ID] = *m
	return nil
}

func (r memberRepo) get(st *state, id uuid.UUID) (*models.Member, error) {
	m, ok := st.members[id]
	if !ok {
		return nil, domain.NotFound("member", id)
	}
	return &m, nil
}

func (r memberRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Member, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	return r.get(st, id)
}

func (r memberRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*models.Member, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	return r.get(st, id)
}

func (r memberRepo) Update(_ context.Context, m *models.Member) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.members[m.ID]; !ok {
		return domain.NotFound("member", m.ID)
	}
	if _, ok := st.levels[m.LevelID]; !ok {
		return domain.NotFound("member level", m.LevelID)
	}
	for id, existing := range st.members {
		if id != m.ID && (existing.Phone == m.Phone || existing.MemberCode == m.MemberCode) {
			return domain.ErrAlreadyExists
		}
	}
	st.members[m.ID] = *m
	return nil
}

func (r memberRepo) List(_ context.Context, f repositories.MemberFilter) ([]*models.Member, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var out []*models.Member
	for _, m := range st.members {
		if f.Active != nil && m.IsActive != *f.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) &&
			!strings.Contains(m.Phone, q) && !strings.Contains(strings.ToLower(m.MemberCode), q) {
			continue
		}
		out = append(out, &m)
	}
	slices.SortFunc(out, func(a, b *models.Member) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.MemberCode, b.MemberCode))
	})
	return page(out, f.QueryOpts), len(out), nil
}

func (r memberRepo) AddRecharge(_ context.Context, rec *models.RechargeRecord) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.members[rec.MemberID]; !ok {
		return domain.NotFound("member", rec.MemberID)
	}
	st.recharges = append(st.recharges, *rec)
	return nil
}

func (r memberRepo) AddTransaction(_ context.Context, t *models.MemberTransaction) error {
	st, unlock := r.v.acquire()
	defer unlock()
	if _, ok := st.members[t.MemberID]; !ok {
		return domain.NotFound("member", t.MemberID)
	}
	st.memberTxs = append(st.memberTxs, *t)
	return nil
}

// ListTransactions returns newest first.
func (r memberRepo) ListTransactions(_ context.Context, memberID uuid.UUID, opts repositories.QueryOpts) ([]*models.MemberTransaction, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	var out []*models.MemberTransaction
	for i := len(st.memberTxs) - 1; i >= 0; i-- {
		if t := st.memberTxs[i]; t.MemberID == memberID {
			out = append(out, &t)
		}
	}
	return page(out, opts), len(out), nil
}
