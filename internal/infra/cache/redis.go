package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-group-guard/internal/infra/metrics"
)

// RedisCache хранит ключи однократной обработки в Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт кэш. Все ключи получают указанный префикс.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Once выполняет функцию, если ключ ещё не задан. При ошибке или панике функции ключ
// снимается, чтобы повторная доставка могла быть обработана.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	full := c.prefix + key
	start := time.Now()
	ok, err := c.client.SetNX(ctx, full, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", c.prefix, start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	done := false
	defer func() {
		if !done {
			_ = c.client.Del(context.WithoutCancel(ctx), full).Err()
		}
	}()
	if err := fn(); err != nil {
		return err
	}
	done = true
	return nil
}

// Ping проверяет соединение.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
