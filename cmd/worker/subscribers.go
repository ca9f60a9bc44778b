package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/retailstock/pkg/app"
	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/logger"
	invevents "github.com/ghuser/retailstock/services/inventory/domain/events"
)

type handlerFunc = func(context.Context, *message.Message) error

// lowStockIndex receives products that just went low.
type lowStockIndex interface {
	Add(ctx context.Context, e cache.LowStockEntry) error
}

// barcodeCache is the product read-through cache.
type barcodeCache interface {
	Delete(ctx context.Context, barcode string) error
}

// registerSubscribers wires all domain event handlers.
// Add new topics here as more services publish events.
func registerSubscribers(ctx context.Context, a *app.Application) error {
	handlers := map[string]handlerFunc{
		invevents.TopicStockLow:         handleStockLow(cache.NewLowStockSnapshot(a.Redis), a.Logger),
		invevents.TopicMovementRecorded: handleMovementRecorded(cache.NewProductCache(a.Redis), a.Logger),
		invevents.TopicCheckApproved:    handleCheckApproved(a.Logger),
		invevents.TopicSaleCompleted:    handleSale(a.Logger),
		invevents.TopicSaleCancelled:    handleSale(a.Logger),
	}

	topics := make([]string, 0, len(handlers))
	for topic, h := range handlers {
		errCh, err := a.EventBus.Subscribe(ctx, topic, h)
		if err != nil {
			return err
		}
		// Drain subscriber errors in background so the channel never blocks.
		go func() {
			for err := range errCh {
				a.Logger.ErrorContext(ctx, "subscriber error", "topic", topic, "error", err)
			}
		}()
		topics = append(topics, topic)
	}

	a.Logger.Info("event subscribers registered", "topics", topics)
	return nil
}

// handleStockLow adds the product to the low-stock snapshot so dashboards
// see it before the next digest.
// Handlers must be idempotent; EventBus retries up to 3x on failure.
func handleStockLow(index lowStockIndex, log logger.Logger) handlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		var evt invevents.LowStockEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", invevents.TopicStockLow, err)
		}
		log.WarnContext(ctx, "product below warning level",
			"product_id", evt.ProductID,
			"barcode", evt.Barcode,
			"quantity", evt.Quantity,
			"warning_level", evt.WarningLevel,
		)
		return index.Add(ctx, cache.LowStockEntry{ProductID: evt.ProductID.String(), Quantity: evt.Quantity})
	}
}

// handleMovementRecorded evicts the product from the barcode cache. The
// cache carries no quantities, so eviction is best-effort.
func handleMovementRecorded(products barcodeCache, log logger.Logger) handlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		var evt invevents.MovementRecordedEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", invevents.TopicMovementRecorded, err)
		}
		if evt.Barcode == "" {
			return nil
		}
		if err := products.Delete(ctx, evt.Barcode); err != nil {
			log.WarnContext(ctx, "barcode cache eviction failed", "barcode", evt.Barcode, "error", err)
		}
		return nil
	}
}

func handleCheckApproved(log logger.Logger) handlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		var evt invevents.CheckApprovedEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", invevents.TopicCheckApproved, err)
		}
		log.InfoContext(ctx, "inventory check approved",
			"check_id", evt.CheckID,
			"approved_by", evt.ApprovedBy,
			"adjusted", evt.Adjusted,
			"adjusted_items", evt.AdjustedItems,
		)
		return nil
	}
}

func handleSale(log logger.Logger) handlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		var evt invevents.SaleEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode sale event: %w", err)
		}
		log.InfoContext(ctx, "sale "+evt.Status,
			"sale_id", evt.SaleID,
			"final_amount", evt.FinalAmount.StringFixed(2),
			"points", evt.PointsEarned,
		)
		return nil
	}
}
