package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lowStockKey = "retailstock:stock:low"

// LowStockEntry is one member of the snapshot, scored by quantity.
type LowStockEntry struct {
	ProductID string
	Quantity  int
}

// LowStockSnapshot is a sorted set of product IDs at or below their
// warning level, rebuilt periodically by the worker and read by dashboards.
type LowStockSnapshot struct {
	client *RedisClient
}

// NewLowStockSnapshot creates a LowStockSnapshot backed by the given RedisClient.
func NewLowStockSnapshot(r *RedisClient) *LowStockSnapshot {
	return &LowStockSnapshot{client: r}
}

// Replace atomically swaps the snapshot for entries and stamps the rebuild time.
func (s *LowStockSnapshot) Replace(ctx context.Context, entries []LowStockEntry) error {
	pipe := s.client.Client().TxPipeline()
	pipe.Del(ctx, lowStockKey)
	if len(entries) > 0 {
		members := make([]redis.Z, 0, len(entries))
		for _, e := range entries {
			members = append(members, redis.Z{Score: float64(e.Quantity), Member: e.ProductID})
		}
		pipe.ZAdd(ctx, lowStockKey, members...)
	}
	pipe.Set(ctx, lowStockKey+":rebuilt_at", time.Now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("low stock snapshot replace: %w", err)
	}
	return nil
}

// Add records a single product as low without rebuilding the snapshot.
func (s *LowStockSnapshot) Add(ctx context.Context, e LowStockEntry) error {
	err := s.client.Client().ZAdd(ctx, lowStockKey, redis.Z{Score: float64(e.Quantity), Member: e.ProductID}).Err()
	if err != nil {
		return fmt.Errorf("low stock snapshot add: %w", err)
	}
	return nil
}

// Members returns the snapshot ordered by ascending quantity.
func (s *LowStockSnapshot) Members(ctx context.Context) ([]LowStockEntry, error) {
	zs, err := s.client.Client().ZRangeWithScores(ctx, lowStockKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("low stock snapshot read: %w", err)
	}
	out := make([]LowStockEntry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, LowStockEntry{ProductID: id, Quantity: int(z.Score)})
	}
	return out, nil
}
