package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// OperationLogService reads the operator audit trail. Entries are written
// by the other services inside the transaction of the change.
type OperationLogService struct {
	store repositories.Store
}

func NewOperationLogService(store repositories.Store) *OperationLogService {
	return &OperationLogService{store: store}
}

// List returns entries newest first.
func (s *OperationLogService) List(ctx context.Context, actor models.Actor, f repositories.OperationLogFilter) ([]*models.OperationLog, int, error) {
	if err := actor.Authorize(models.PermViewOperationLog); err != nil {
		return nil, 0, err
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, domain.Invalid("unknown operation type %q", f.Type)
	}
	if f.Since != nil && f.Until != nil && !f.Since.Before(*f.Until) {
		return nil, 0, domain.Invalid("since must be before until")
	}
	return s.store.OperationLogs().List(ctx, f)
}

// recordOp appends an operation log entry to tx.
func recordOp(ctx context.Context, tx repositories.Tx, actor models.Actor, typ models.OperationType, action, relatedType string, relatedID uuid.UUID, format string, args ...any) error {
	entry, err := models.NewOperationLog(actor, typ, action, relatedType, relatedID, fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	if err := tx.OperationLogs().Record(ctx, entry); err != nil {
		return fmt.Errorf("record operation log: %w", err)
	}
	return nil
}
