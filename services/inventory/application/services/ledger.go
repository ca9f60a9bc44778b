package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/events"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// movement describes one ledger write.
type movement struct {
	ProductID     uuid.UUID
	Kind          models.MovementKind
	Quantity      int
	OperatorID    uuid.UUID
	Note          string
	ReferenceType models.ReferenceType
	ReferenceID   *uuid.UUID
}

// ledger applies movements inside one transaction. Each call locks the
// stock row, mutates it, appends the ledger entry and records the outbox
// event. Low-stock signals are collected for delivery after commit.
type ledger struct {
	tx                  repositories.Tx
	defaultWarningLevel int

	recorded []*models.StockMovement
	low      []events.LowStockEvent
}

func newLedger(tx repositories.Tx, defaultWarningLevel int) *ledger {
	return &ledger{tx: tx, defaultWarningLevel: defaultWarningLevel}
}

func (l *ledger) apply(ctx context.Context, m movement) (*models.StockLevel, *models.StockMovement, error) {
	product, err := l.tx.Products().GetByID(ctx, m.ProductID)
	if err != nil {
		return nil, nil, err
	}
	level, err := l.tx.Stock().GetForUpdate(ctx, m.ProductID, l.defaultWarningLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("lock stock: %w", err)
	}

	before := level.Quantity
	magnitude, err := level.Apply(m.Kind, m.Quantity)
	if err != nil {
		var short *domain.InsufficientStockError
		if errors.As(err, &short) {
			short.Barcode = product.Barcode
			short.Name = product.Name
		}
		return nil, nil, err
	}
	if err := l.tx.Stock().Save(ctx, level); err != nil {
		return nil, nil, fmt.Errorf("save stock: %w", err)
	}

	ref := m.ReferenceType
	if ref == "" {
		ref = models.RefManual
	}
	entry := &models.StockMovement{
		ID:             uuid.New(),
		ProductID:      m.ProductID,
		Kind:           m.Kind,
		Quantity:       magnitude,
		QuantityBefore: before,
		QuantityAfter:  level.Quantity,
		OperatorID:     m.OperatorID,
		Note:           m.Note,
		ReferenceType:  ref,
		ReferenceID:    m.ReferenceID,
		CreatedAt:      level.UpdatedAt,
	}
	if err := l.tx.Movements().Create(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("record movement: %w", err)
	}
	if err := l.tx.Outbox().Record(ctx, events.TopicMovementRecorded, events.MovementRecordedEvent{
		EventID:        uuid.New(),
		Version:        events.Version,
		MovementID:     entry.ID,
		ProductID:      entry.ProductID,
		Barcode:        product.Barcode,
		Kind:           string(entry.Kind),
		Quantity:       entry.Quantity,
		QuantityBefore: entry.QuantityBefore,
		QuantityAfter:  entry.QuantityAfter,
		OperatorID:     entry.OperatorID,
		ReferenceType:  string(entry.ReferenceType),
		ReferenceID:    entry.ReferenceID,
		OccurredAt:     entry.CreatedAt,
	}); err != nil {
		return nil, nil, fmt.Errorf("outbox: %w", err)
	}

	l.recorded = append(l.recorded, entry)
	if level.IsLowStock() {
		l.low = append(l.low, events.LowStockEvent{
			EventID:      uuid.New(),
			Version:      events.Version,
			ProductID:    product.ID,
			Barcode:      product.Barcode,
			Name:         product.Name,
			Quantity:     level.Quantity,
			WarningLevel: level.WarningLevel,
			OccurredAt:   time.Now().UTC(),
		})
	}
	return level, entry, nil
}
