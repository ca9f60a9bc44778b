// Package cache holds the Redis client and the read models kept in Redis:
// the product-by-barcode cache used at the till and the low-stock snapshot
// maintained by the worker.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghuser/retailstock/pkg/config"
)

const defaultPoolSize = 10

// RedisClient owns the connection pool shared by sessions, the product
// cache, the low-stock snapshot and the worker locks.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to cfg.RedisURL and verifies connectivity with a
// 2s ping.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", opts.Addr, err)
	}
	return &RedisClient{client: rdb}, nil
}

// redisOptions names the connection after the service so CLIENT LIST tells
// API and worker replicas apart. The idle floor scales with the pool and
// never exceeds it.
func redisOptions(cfg *config.Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	pool := cfg.RedisPoolSize
	if pool <= 0 {
		pool = defaultPoolSize
	}
	opts.ClientName = cfg.ServiceName
	opts.PoolSize = pool
	opts.MinIdleConns = max(1, pool/5)
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	// Till lookups fall back to Postgres on a cache miss; a slow Redis must
	// not stall checkout for longer than a database round trip would.
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.PoolTimeout = 2 * time.Second
	return opts, nil
}

// Ping checks the Redis connection health.
func (r *RedisClient) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (r *RedisClient) Close() error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// Client returns the underlying redis.Client for the session store and
// the lock client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}
