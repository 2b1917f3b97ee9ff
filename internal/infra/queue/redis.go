package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 50
	jobTimeout          = 30 * time.Second
)

// RedisCleanupQueue хранит отложенные очистки в sorted set, где score — время запуска в миллисекундах.
// Задачи переживают перезапуск; при нескольких репликах задачу выполняет та, чей ZREM удалил запись.
type RedisCleanupQueue struct {
	client       *redis.Client
	key          string
	run          domain.CleanupFunc
	log          zerolog.Logger
	pollInterval time.Duration
	batchSize    int64
	now          func() time.Time
}

var _ domain.CleanupScheduler = (*RedisCleanupQueue)(nil)

// NewRedisCleanupQueue создаёт очередь по указанному ключу.
func NewRedisCleanupQueue(client *redis.Client, key string, run domain.CleanupFunc, log zerolog.Logger) *RedisCleanupQueue {
	return &RedisCleanupQueue{
		client:       client,
		key:          key,
		run:          run,
		log:          log,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		now:          time.Now,
	}
}

// ScheduleOnce публикует задачу в очередь.
func (q *RedisCleanupQueue) ScheduleOnce(ctx context.Context, job domain.DeferredCleanup) error {
	if job.FireAt.IsZero() {
		job.FireAt = q.now().Add(job.Delay)
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(job.FireAt.UnixMilli()),
		Member: payload,
	}).Err()
	metrics.ObserveNetworkRequest("redis", "zadd", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	metrics.CleanupScheduled.WithLabelValues("redis").Inc()
	return nil
}

// Run опрашивает очередь до отмены контекста.
func (q *RedisCleanupQueue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := q.dispatchDue(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Error().Err(err).Msg("redis queue: ошибка выборки задач")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Pending возвращает количество ожидающих задач.
func (q *RedisCleanupQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

// dispatchDue забирает и выполняет задачи, время которых наступило.
func (q *RedisCleanupQueue) dispatchDue(ctx context.Context) (int, error) {
	start := time.Now()
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: q.batchSize,
	}).Result()
	metrics.ObserveNetworkRequest("redis", "zrangebyscore", q.key, start, err)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	executed := 0
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return executed, fmt.Errorf("claim job: %w", err)
		}
		if removed == 0 {
			continue
		}
		var job domain.DeferredCleanup
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.log.Error().Err(err).Str("payload", member).Msg("redis queue: не удалось разобрать задачу, удалена")
			continue
		}
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
		q.run(jobCtx, job)
		cancel()
		executed++
	}
	return executed, nil
}
