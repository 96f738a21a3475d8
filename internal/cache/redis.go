package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"costboard/internal/log"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return client, nil
}

// RedisCache stores JSON encoded values under namespace:key so several
// service instances share parsed snapshots.
type RedisCache[T any] struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *log.Logger
}

var _ Cache[int] = (*RedisCache[int])(nil)

func NewRedisCache[T any](client *redis.Client, namespace string, ttl time.Duration, logger *log.Logger) *RedisCache[T] {
	return &RedisCache[T]{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.WithComponent(log.ComponentCache),
	}
}

func (c *RedisCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	payload, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Redis get failed", log.FieldKey, key, log.FieldError, err)
		return zero, false
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", log.FieldKey, key, log.FieldError, err)
		_ = c.client.Del(ctx, c.key(key)).Err()
		return zero, false
	}
	return out, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Cache encode failed", log.FieldKey, key, log.FieldError, err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis set failed", log.FieldKey, key, log.FieldError, err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis delete failed", log.FieldKey, key, log.FieldError, err)
	}
}

func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	removed := 0
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			c.logger.WarnContext(ctx, "Redis delete failed", log.FieldKey, prefix, log.FieldError, err)
		}
		removed += int(n)
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis scan failed", log.FieldKey, prefix, log.FieldError, err)
	}
	return removed
}
