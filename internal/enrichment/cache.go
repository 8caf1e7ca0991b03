package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps raw lookup payloads keyed by barcode.
type Cache interface {
	Get(ctx context.Context, barcode string) ([]byte, bool, error)
	Set(ctx context.Context, barcode string, payload []byte) error
}

const keyPrefix = "pos:lookup:"

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects lazily. Lookups keep working when Redis is down.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   -1,
	})
}

func (c *RedisCache) Get(ctx context.Context, barcode string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+barcode).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *RedisCache) Set(ctx context.Context, barcode string, payload []byte) error {
	return c.rdb.Set(ctx, keyPrefix+barcode, payload, c.ttl).Err()
}
