package workflows

import (
	"context"
	"errors"
	"time"

	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

const digestLockKey = "retailstock:lock:low-stock-digest"

// LowStockLister re-queries the low-stock list. *services.StockService
// satisfies it.
type LowStockLister interface {
	ListLowStock(ctx context.Context) ([]*models.StockView, error)
}

// SnapshotWriter replaces the published low-stock snapshot.
type SnapshotWriter interface {
	Replace(ctx context.Context, entries []cache.LowStockEntry) error
}

// Locker takes a short-lived lock shared by all worker replicas.
// *cache.Locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// LowStockDigest periodically rebuilds the low-stock snapshot. Only the
// replica holding the lock does the work in a given round.
type LowStockDigest struct {
	stock    LowStockLister
	snapshot SnapshotWriter
	locker   Locker
	interval time.Duration
	log      logger.Logger
}

func NewLowStockDigest(stock LowStockLister, snapshot SnapshotWriter, locker Locker, interval time.Duration, log logger.Logger) *LowStockDigest {
	return &LowStockDigest{stock: stock, snapshot: snapshot, locker: locker, interval: interval, log: log}
}

// Run builds a digest every interval until ctx is cancelled.
func (d *LowStockDigest) Run(ctx context.Context) {
	if d.interval <= 0 {
		d.log.Warn("low stock digest disabled", "interval", d.interval)
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.log.Info("low stock digest stopped")
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.log.ErrorContext(ctx, "low stock digest failed", "error", err)
			}
		}
	}
}

// RunOnce rebuilds the snapshot if this replica wins the lock. It reports
// whether the digest ran.
func (d *LowStockDigest) RunOnce(ctx context.Context) (bool, error) {
	release, err := d.locker.TryLock(ctx, digestLockKey, d.lockTTL())
	if errors.Is(err, cache.ErrLockHeld) {
		d.log.DebugContext(ctx, "low stock digest skipped, another worker holds the lock")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			d.log.WarnContext(ctx, "release digest lock", "error", err)
		}
	}()

	views, err := d.stock.ListLowStock(ctx)
	if err != nil {
		return false, err
	}
	entries := make([]cache.LowStockEntry, 0, len(views))
	barcodes := make([]string, 0, len(views))
	for _, v := range views {
		entries = append(entries, cache.LowStockEntry{ProductID: v.ProductID.String(), Quantity: v.Quantity})
		barcodes = append(barcodes, v.Barcode)
	}
	if err := d.snapshot.Replace(ctx, entries); err != nil {
		return false, err
	}
	if len(views) > 0 {
		d.log.WarnContext(ctx, "low stock digest", "products", len(views), "barcodes", barcodes)
	} else {
		d.log.InfoContext(ctx, "low stock digest", "products", 0)
	}
	return true, nil
}

// lockTTL keeps the lock for most of one round so a slow replica cannot
// overlap the next tick.
func (d *LowStockDigest) lockTTL() time.Duration {
	return max(d.interval*3/4, time.Second)
}
