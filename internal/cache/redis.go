package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisReportCache stores payloads in Redis with a per-entry TTL. Every Redis
// failure degrades to a cache miss so the service keeps working without Redis.
type RedisReportCache struct {
	client *redis.Client
	logger *log.Logger
}

func NewRedisReportCache(ctx context.Context, cfg RedisConfig, logger *log.Logger) (*RedisReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisReportCache{client: client, logger: logger}, nil
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Printf("report cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return value, true
}

func (c *RedisReportCache) Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, key, []byte(payload), ttl).Err(); err != nil && c.logger != nil {
		c.logger.Printf("report cache put failed key=%s err=%v", key, err)
	}
}
