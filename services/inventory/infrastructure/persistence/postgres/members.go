package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type memberRepo struct{ q database.DBTX }

const levelColumns = `id, name, discount_rate, points_threshold, priority, is_default, is_active, created_at`

func scanLevel(s scanner) (*models.MemberLevel, error) {
	var l models.MemberLevel
	if err := s.Scan(&l.ID, &l.Name, &l.DiscountRate, &l.PointsThreshold, &l.Priority,
		&l.IsDefault, &l.IsActive, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r memberRepo) CreateLevel(ctx context.Context, l *models.MemberLevel) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO member_levels (`+levelColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.Name, l.DiscountRate, l.PointsThreshold, l.Priority, l.IsDefault, l.IsActive, l.CreatedAt)
	return translate(err, "insert member level")
}

func (r memberRepo) GetLevel(ctx context.Context, id uuid.UUID) (*models.MemberLevel, error) {
	l, err := scanLevel(r.q.QueryRowContext(ctx, `SELECT `+levelColumns+` FROM member_levels WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "member level", id)
	}
	return l, nil
}

func (r memberRepo) ListLevels(ctx context.Context, activeOnly bool) ([]*models.MemberLevel, error) {
	query := `SELECT ` + levelColumns + ` FROM member_levels`
	if activeOnly {
		query += ` WHERE is_active`
	}
	rows, err := r.q.QueryContext(ctx, query+` ORDER BY priority, points_threshold, name`)
	if err != nil {
		return nil, fmt.Errorf("query member levels: %w", err)
	}
	defer rows.Close()
	var out []*models.MemberLevel
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member level: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r memberRepo) ClearDefaultLevel(ctx context.Context) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE member_levels SET is_default = FALSE WHERE is_default`); err != nil {
		return fmt.Errorf("clear default level: %w", err)
	}
	return nil
}

const memberColumns = `id, level_id, name, phone, member_code, email, points, balance, total_spend,
	purchase_count, is_recharged, is_active, created_by, created_at, updated_at`

func scanMember(s scanner) (*models.Member, error) {
	var m models.Member
	if err := s.Scan(&m.ID, &m.LevelID, &m.Name, &m.Phone, &m.MemberCode, &m.Email, &m.Points, &m.Balance,
		&m.TotalSpend, &m.PurchaseCount, &m.IsRecharged, &m.IsActive, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r memberRepo) Create(ctx context.Context, m *models.Member) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, m.LevelID, m.Name, m.Phone, m.MemberCode, m.Email, m.Points, m.Balance, m.TotalSpend,
		m.PurchaseCount, m.IsRecharged, m.IsActive, m.CreatedBy, m.CreatedAt, m.UpdatedAt)
	return translate(err, "insert member")
}

func (r memberRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := scanMember(r.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "member", id)
	}
	return m, nil
}

func (r memberRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := scanMember(r.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "member", id)
	}
	return m, nil
}

func (r memberRepo) Update(ctx context.Context, m *models.Member) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE members SET level_id = $2, name = $3, phone = $4, member_code = $5, email = $6, points = $7,
			balance = $8, total_spend = $9, purchase_count = $10, is_recharged = $11, is_active = $12,
			updated_at = $13
		WHERE id = $1`,
		m.ID, m.LevelID, m.Name, m.Phone, m.MemberCode, m.Email, m.Points,
		m.Balance, m.TotalSpend, m.PurchaseCount, m.IsRecharged, m.IsActive, m.UpdatedAt)
	if err != nil {
		return translate(err, "update member")
	}
	return mustAffect(res, "member", m.ID)
}

func (r memberRepo) List(ctx context.Context, f repositories.MemberFilter) ([]*models.Member, int, error) {
	var w where
	if f.Active != nil {
		w.add("is_active = ?", *f.Active)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(name ILIKE ? OR phone LIKE ? OR member_code ILIKE ?)", likePattern(s))
	}
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM members`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}
	filter := w.String()
	limit := w.page(f.QueryOpts)
	rows, err := r.q.QueryContext(ctx, `SELECT `+memberColumns+` FROM members`+filter+` ORDER BY created_at DESC, member_code`+limit, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	var out []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r memberRepo) AddRecharge(ctx context.Context, rec *models.RechargeRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO recharge_records (id, member_id, amount, actual_amount, payment_method, operator_id, remark, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.MemberID, rec.Amount, rec.ActualAmount, rec.PaymentMethod, rec.OperatorID, rec.Remark, rec.CreatedAt)
	return translate(err, "insert recharge record")
}

func (r memberRepo) AddTransaction(ctx context.Context, t *models.MemberTransaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO member_transactions (id, member_id, type, points_change, balance_change, description,
			operator_id, reference_type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.MemberID, t.Type, t.PointsChange, t.BalanceChange, t.Description,
		t.OperatorID, t.ReferenceType, t.ReferenceID, t.CreatedAt)
	return translate(err, "insert member transaction")
}

func (r memberRepo) ListTransactions(ctx context.Context, memberID uuid.UUID, opts repositories.QueryOpts) ([]*models.MemberTransaction, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM member_transactions WHERE member_id = $1`, memberID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count member transactions: %w", err)
	}
	w := where{args: []any{memberID}}
	limit := w.page(opts)
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, member_id, type, points_change, balance_change, description, operator_id,
			reference_type, reference_id, created_at
		FROM member_transactions WHERE member_id = $1
		ORDER BY created_at DESC, id`+limit, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query member transactions: %w", err)
	}
	defer rows.Close()
	var out []*models.MemberTransaction
	for rows.Next() {
		var (
			t   models.MemberTransaction
			ref sql.Null[uuid.UUID]
		)
		if err := rows.Scan(&t.ID, &t.MemberID, &t.Type, &t.PointsChange, &t.BalanceChange, &t.Description,
			&t.OperatorID, &t.ReferenceType, &ref, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan member transaction: %w", err)
		}
		t.ReferenceID = nullable(ref)
		out = append(out, &t)
	}
	return out, total, rows.Err()
}
