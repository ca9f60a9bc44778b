package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	// ProductCacheTTL bounds how long a stale entry can survive a missed
	// invalidation.
	ProductCacheTTL = 6 * time.Hour

	productCacheKeyPrefix = "retailstock:product:barcode"
)

// ErrCacheMiss is returned by Get when no entry exists.
var ErrCacheMiss = errors.New("cache miss")

// CachedProduct is the denormalized product read model stored as a Redis hash.
type CachedProduct struct {
	ID            uuid.UUID
	Barcode       string
	Name          string
	CategoryID    *uuid.UUID
	Price         decimal.Decimal
	Cost          decimal.Decimal
	Specification string
	Manufacturer  string
	Description   string
	IsActive      bool
	UpdatedAt     time.Time
}

// ProductCache caches products by barcode for scanner lookups.
// Key format: "retailstock:product:barcode:{barcode}"
type ProductCache struct {
	client *RedisClient
}

// NewProductCache creates a ProductCache backed by the given RedisClient.
func NewProductCache(r *RedisClient) *ProductCache {
	return &ProductCache{client: r}
}

// Get returns ErrCacheMiss when the barcode is not cached.
func (c *ProductCache) Get(ctx context.Context, barcode string) (*CachedProduct, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(barcode)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrCacheMiss
	}

	id, err := uuid.Parse(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("cache parse id: %w", err)
	}
	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return nil, fmt.Errorf("cache parse price: %w", err)
	}
	cost, err := decimal.NewFromString(vals["cost"])
	if err != nil {
		return nil, fmt.Errorf("cache parse cost: %w", err)
	}
	active, err := strconv.ParseBool(vals["is_active"])
	if err != nil {
		return nil, fmt.Errorf("cache parse is_active: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, vals["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("cache parse updated_at: %w", err)
	}
	var categoryID *uuid.UUID
	if s := vals["category_id"]; s != "" {
		cid, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("cache parse category_id: %w", err)
		}
		categoryID = &cid
	}

	return &CachedProduct{
		ID:            id,
		Barcode:       vals["barcode"],
		Name:          vals["name"],
		CategoryID:    categoryID,
		Price:         price,
		Cost:          cost,
		Specification: vals["specification"],
		Manufacturer:  vals["manufacturer"],
		Description:   vals["description"],
		IsActive:      active,
		UpdatedAt:     updatedAt,
	}, nil
}

// Set writes the product hash and its TTL in one pipeline.
func (c *ProductCache) Set(ctx context.Context, p *CachedProduct) error {
	category := ""
	if p.CategoryID != nil {
		category = p.CategoryID.String()
	}
	key := c.key(p.Barcode)
	pipe := c.client.Client().TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"id", p.ID.String(),
		"barcode", p.Barcode,
		"name", p.Name,
		"category_id", category,
		"price", p.Price.String(),
		"cost", p.Cost.String(),
		"specification", p.Specification,
		"manufacturer", p.Manufacturer,
		"description", p.Description,
		"is_active", strconv.FormatBool(p.IsActive),
		"updated_at", p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, ProductCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete invalidates the entry for barcode.
func (c *ProductCache) Delete(ctx context.Context, barcode string) error {
	if err := c.client.Client().Del(ctx, c.key(barcode)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *ProductCache) key(barcode string) string {
	return productCacheKeyPrefix + ":" + barcode
}
