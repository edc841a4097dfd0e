package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hamza-javed/amm-settlement/internal/models"
)

const (
	recentKey      = "settlements:recent"
	recentMaxLen   = 500
	pricePrefix    = "price:"
	channelAll     = "settlements:all"
	channelPair    = "settlements:pair:"
	channelPool    = "settlements:pool:"
	channelPrices  = "price:updates"
	subscribeBufSz = 64
)

// RedisCache keeps the recent-settlements list and per-pool spot prices, and
// fans settlements out over pub/sub.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

type RedisConfig struct {
	Addr string
	DB   int
}

// NewRedisCache connects a new client and verifies it with a ping.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, nil), nil
}

// NewRedisCacheFromClient wraps an existing client (shared with other stores).
func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

// AddRecentSettlement pushes a record onto the capped recent list.
func (r *RedisCache) AddRecentSettlement(ctx context.Context, rec *models.SettlementRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, recentMaxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent settlement: %w", err)
	}
	return nil
}

// GetRecentSettlements returns up to limit most recent records, newest first.
func (r *RedisCache) GetRecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	vals, err := r.client.LRange(ctx, recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent settlements: %w", err)
	}

	out := make([]*models.SettlementRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.SettlementRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			r.logger.WithError(err).Warn("skipping malformed settlement record in cache")
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// UpdatePrice stores the latest spot price for a pool.
func (r *RedisCache) UpdatePrice(ctx context.Context, pool string, price float64) error {
	if err := r.client.Set(ctx, pricePrefix+pool, price, 0).Err(); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

// GetPrice returns the latest cached spot price for a pool.
func (r *RedisCache) GetPrice(ctx context.Context, pool string) (float64, error) {
	price, err := r.client.Get(ctx, pricePrefix+pool).Float64()
	if err == redis.Nil {
		return 0, fmt.Errorf("no price for pool %s", pool)
	}
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}
	return price, nil
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
