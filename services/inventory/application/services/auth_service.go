package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

const minPasswordLength = 8

// dummyHash is compared against when the username is unknown so a failed
// login costs the same either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("retailstock-timing-equalizer"), bcrypt.DefaultCost)

// AuthService authenticates operators and manages their accounts.
type AuthService struct {
	store repositories.Store
	log   logger.Logger
	cost  int
}

func NewAuthService(store repositories.Store, log logger.Logger) *AuthService {
	return &AuthService{store: store, log: log, cost: bcrypt.DefaultCost}
}

// Login verifies credentials. Unknown usernames, wrong passwords and
// deactivated operators all fail with domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Operator, error) {
	op, err := s.store.Operators().GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get operator: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		s.log.InfoContext(ctx, "login rejected", "operator_id", op.ID)
		return nil, domain.ErrInvalidCredentials
	}
	if !op.IsActive {
		s.log.InfoContext(ctx, "login rejected for inactive operator", "operator_id", op.ID)
		return nil, domain.ErrInvalidCredentials
	}
	return op, nil
}

func (s *AuthService) GetOperator(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	return s.store.Operators().GetByID(ctx, id)
}

// CreateOperator adds a staff account. Only admins may do this.
func (s *AuthService) CreateOperator(ctx context.Context, actor models.Actor, username, password string, role models.Role) (*models.Operator, error) {
	if err := actor.Authorize(models.PermManageOperators); err != nil {
		return nil, err
	}
	return s.create(ctx, &actor, username, password, role)
}

// EnsureAdmin creates an admin account with the given credentials unless
// the username is already taken. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.store.Operators().GetByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("get operator: %w", err)
	}
	op, err := s.create(ctx, nil, username, password, models.RoleAdmin)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.InfoContext(ctx, "bootstrap admin created", "operator_id", op.ID, "username", op.Username)
	return true, nil
}

// create stores the account and its operation log entry. A nil actor marks
// the bootstrap admin, which is logged as its own creator.
func (s *AuthService) create(ctx context.Context, actor *models.Actor, username, password string, role models.Role) (*models.Operator, error) {
	if len(password) < minPasswordLength || len(password) > 72 {
		return nil, domain.Invalid("password must be %d-72 bytes", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	op, err := models.NewOperator(username, string(hash), role)
	if err != nil {
		return nil, err
	}
	by := op.Actor()
	if actor != nil {
		by = *actor
	}
	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if err := tx.Operators().Create(ctx, op); err != nil {
			return fmt.Errorf("create operator: %w", err)
		}
		return recordOp(ctx, tx, by, models.OpOperator, "operator.created", "operator", op.ID,
			"created operator %q with role %s", op.Username, op.Role)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}
