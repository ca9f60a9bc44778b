package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/retailstock/services/inventory/domain/services"
)

// MemberService manages loyalty levels, members, balances and points.
type MemberService struct {
	store repositories.Store
	log   logger.Logger
}

func NewMemberService(store repositories.Store, log logger.Logger) *MemberService {
	return &MemberService{store: store, log: log}
}

// LevelRequest describes a new member level.
type LevelRequest struct {
	Name            string
	DiscountRate    decimal.Decimal
	PointsThreshold int
	Priority        int
	IsDefault       bool
}

// CreateLevel adds a level. A new default level replaces the previous one.
func (s *MemberService) CreateLevel(ctx context.Context, actor models.Actor, req LevelRequest) (*models.MemberLevel, error) {
	if err := actor.Authorize(models.PermManageMembers); err != nil {
		return nil, err
	}
	level, err := models.NewMemberLevel(req.Name, req.DiscountRate, req.PointsThreshold, req.Priority, req.IsDefault)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if level.IsDefault {
			if err := tx.Members().ClearDefaultLevel(ctx); err != nil {
				return fmt.Errorf("clear default level: %w", err)
			}
		}
		if err := tx.Members().CreateLevel(ctx, level); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpMember, "member_level.created", "member_level", level.ID,
			"created level %q, rate %s, threshold %d", level.Name, level.DiscountRate, level.PointsThreshold)
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

func (s *MemberService) ListLevels(ctx context.Context, activeOnly bool) ([]*models.MemberLevel, error) {
	return s.store.Members().ListLevels(ctx, activeOnly)
}

// MemberRequest describes a new member. A nil LevelID assigns the default level.
type MemberRequest struct {
	Name    string
	Phone   string
	Code    string
	Email   string
	LevelID *uuid.UUID
}

// Create registers a member.
func (s *MemberService) Create(ctx context.Context, actor models.Actor, req MemberRequest) (*models.Member, error) {
	if err := actor.Authorize(models.PermManageMembers); err != nil {
		return nil, err
	}
	var m *models.Member
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		level, err := s.resolveLevel(ctx, tx, req.LevelID)
		if err != nil {
			return err
		}
		if m, err = models.NewMember(req.Name, req.Phone, req.Code, req.Email, level.ID, actor.ID); err != nil {
			return err
		}
		if err := tx.Members().Create(ctx, m); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpMember, "member.created", "member", m.ID,
			"created member %s %q", m.MemberCode, m.Name)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "member created", "member_id", m.ID, "level_id", m.LevelID)
	return m, nil
}

func (s *MemberService) resolveLevel(ctx context.Context, tx repositories.Tx, id *uuid.UUID) (*models.MemberLevel, error) {
	if id != nil {
		level, err := tx.Members().GetLevel(ctx, *id)
		if err != nil {
			return nil, err
		}
		if !level.IsActive {
			return nil, domain.Invalid("member level %q is inactive", level.Name)
		}
		return level, nil
	}
	levels, err := tx.Members().ListLevels(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	level := domainsvcs.DefaultLevel(levels)
	if level == nil {
		return nil, domain.Invalid("no active member level is configured")
	}
	return level, nil
}

// MemberUpdate holds the fields to change; nil fields are left as they are.
type MemberUpdate struct {
	Name     *string
	Phone    *string
	Email    *string
	LevelID  *uuid.UUID
	IsActive *bool
}

// Update edits a member. A manual level change is recorded as a
// LEVEL_UPGRADE or LEVEL_DOWNGRADE transaction by points threshold.
func (s *MemberService) Update(ctx context.Context, actor models.Actor, id uuid.UUID, req MemberUpdate) (*models.Member, error) {
	if err := actor.Authorize(models.PermManageMembers); err != nil {
		return nil, err
	}
	var m *models.Member
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if m, err = tx.Members().GetForUpdate(ctx, id); err != nil {
			return err
		}
		if req.Name != nil {
			if m.Name = strings.TrimSpace(*req.Name); m.Name == "" {
				return domain.Invalid("member name is required")
			}
		}
		if req.Phone != nil {
			if m.Phone = strings.TrimSpace(*req.Phone); m.Phone == "" {
				return domain.Invalid("member phone is required")
			}
		}
		if req.Email != nil {
			m.Email = strings.TrimSpace(*req.Email)
		}
		if req.IsActive != nil {
			m.IsActive = *req.IsActive
		}
		if req.LevelID != nil && *req.LevelID != m.LevelID {
			if err := s.changeLevel(ctx, tx, m, *req.LevelID, actor.ID); err != nil {
				return err
			}
		}
		if err := tx.Members().Update(ctx, m); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpMember, "member.updated", "member", m.ID,
			"updated member %s, active=%t", m.MemberCode, m.IsActive)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MemberService) changeLevel(ctx context.Context, tx repositories.Tx, m *models.Member, levelID, operator uuid.UUID) error {
	next, err := tx.Members().GetLevel(ctx, levelID)
	if err != nil {
		return err
	}
	if !next.IsActive {
		return domain.Invalid("member level %q is inactive", next.Name)
	}
	typ, from := models.TxLevelUpgrade, "none"
	current, err := tx.Members().GetLevel(ctx, m.LevelID)
	switch {
	case err == nil:
		from = current.Name
		if next.PointsThreshold < current.PointsThreshold {
			typ = models.TxLevelDowngrade
		}
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	m.LevelID = next.ID
	t := models.NewMemberTransaction(m.ID, typ, 0, decimal.Zero,
		fmt.Sprintf("level changed from %s to %s", from, next.Name), operator)
	t.ReferenceType = models.RefManual
	return tx.Members().AddTransaction(ctx, t)
}

func (s *MemberService) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return s.store.Members().GetByID(ctx, id)
}

func (s *MemberService) List(ctx context.Context, f repositories.MemberFilter) ([]*models.Member, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.store.Members().List(ctx, f)
}

// RechargeRequest credits Amount to the balance. ActualAmount is what the
// customer paid and defaults to Amount.
type RechargeRequest struct {
	Amount        decimal.Decimal
	ActualAmount  *decimal.Decimal
	PaymentMethod models.PaymentMethod
	Remark        string
}

// Recharge tops up a member's prepaid balance.
func (s *MemberService) Recharge(ctx context.Context, actor models.Actor, id uuid.UUID, req RechargeRequest) (*models.Member, *models.RechargeRecord, error) {
	if err := actor.Authorize(models.PermManageMembers); err != nil {
		return nil, nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, nil, domain.Invalid("recharge amount must be positive")
	}
	if !req.PaymentMethod.Valid() || req.PaymentMethod.UsesBalance() {
		return nil, nil, domain.Invalid("payment method %q cannot fund a recharge", req.PaymentMethod)
	}
	actual := req.Amount
	if req.ActualAmount != nil {
		if req.ActualAmount.IsNegative() {
			return nil, nil, domain.Invalid("actual amount must not be negative")
		}
		actual = *req.ActualAmount
	}

	var (
		m   *models.Member
		rec *models.RechargeRecord
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if m, err = tx.Members().GetForUpdate(ctx, id); err != nil {
			return err
		}
		if !m.IsActive {
			return domain.Invalid("member is inactive")
		}
		if err := m.Recharge(req.Amount); err != nil {
			return err
		}
		rec = &models.RechargeRecord{
			ID:            uuid.New(),
			MemberID:      m.ID,
			Amount:        req.Amount,
			ActualAmount:  actual,
			PaymentMethod: req.PaymentMethod,
			OperatorID:    actor.ID,
			Remark:        req.Remark,
			CreatedAt:     m.UpdatedAt,
		}
		if err := tx.Members().AddRecharge(ctx, rec); err != nil {
			return fmt.Errorf("record recharge: %w", err)
		}
		t := models.NewMemberTransaction(m.ID, models.TxRecharge, 0, req.Amount,
			fmt.Sprintf("recharge %s via %s", req.Amount.StringFixed(2), req.PaymentMethod), actor.ID)
		if err := tx.Members().AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		if err := tx.Members().Update(ctx, m); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpMember, "member.recharged", "member", m.ID,
			"recharged %s (paid %s via %s)", req.Amount.StringFixed(2), actual.StringFixed(2), req.PaymentMethod)
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.InfoContext(ctx, "member recharged", "member_id", id, "amount", req.Amount.StringFixed(2), "balance", m.Balance.StringFixed(2))
	return m, rec, nil
}

// AdjustPoints adds delta to a member's points and re-evaluates the level.
// The result must stay non-negative. Levels only move up automatically.
func (s *MemberService) AdjustPoints(ctx context.Context, actor models.Actor, id uuid.UUID, delta int, reason string) (*models.Member, error) {
	if err := actor.Authorize(models.PermManageMembers); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, domain.Invalid("points delta must be non-zero")
	}
	var m *models.Member
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if m, err = tx.Members().GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := m.AdjustPoints(delta); err != nil {
			return err
		}
		desc := strings.TrimSpace(reason)
		if desc == "" {
			desc = "manual points adjustment"
		}
		t := models.NewMemberTransaction(m.ID, models.TxPointsAdjust, delta, decimal.Zero, desc, actor.ID)
		t.ReferenceType = models.RefManual
		if err := tx.Members().AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		if err := promote(ctx, tx, m, actor.ID, models.RefManual, nil); err != nil {
			return err
		}
		if err := tx.Members().Update(ctx, m); err != nil {
			return err
		}
		return recordOp(ctx, tx, actor, models.OpMember, "member.points_adjusted", "member", m.ID,
			"points %+d: %s", delta, desc)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListTransactions returns a member's audit trail newest first.
func (s *MemberService) ListTransactions(ctx context.Context, id uuid.UUID, opts repositories.QueryOpts) ([]*models.MemberTransaction, int, error) {
	if _, err := s.store.Members().GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.store.Members().ListTransactions(ctx, id, opts)
}

// promote moves m to the highest active level its points qualify for when
// that level ranks above the current one, recording a LEVEL_UPGRADE.
// The caller persists m.
func promote(ctx context.Context, tx repositories.Tx, m *models.Member, operator uuid.UUID, ref models.ReferenceType, refID *uuid.UUID) error {
	levels, err := tx.Members().ListLevels(ctx, true)
	if err != nil {
		return fmt.Errorf("list levels: %w", err)
	}
	current, err := tx.Members().GetLevel(ctx, m.LevelID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	candidate := domainsvcs.EligibleLevel(levels, m.Points)
	if !domainsvcs.ShouldUpgrade(current, candidate) {
		return nil
	}
	from := "none"
	if current != nil {
		from = current.Name
	}
	m.LevelID = candidate.ID
	t := models.NewMemberTransaction(m.ID, models.TxLevelUpgrade, 0, decimal.Zero,
		fmt.Sprintf("level upgraded from %s to %s", from, candidate.Name), operator)
	t.ReferenceType, t.ReferenceID = ref, refID
	if err := tx.Members().AddTransaction(ctx, t); err != nil {
		return fmt.Errorf("record level upgrade: %w", err)
	}
	return nil
}
