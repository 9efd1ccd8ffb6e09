package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore реализует Store для Redis (Infrastructure Layer).
// Ключи живут SessionTTL: это аналог времени жизни вкладки.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создает новый экземпляр RedisStore
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// NewRedisClient создает клиент по адресу
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *RedisStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := r.client.Set(ctx, tabKey(sessionID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s to Redis: %w", key, err)
	}
	return nil
}

// SetPair пишет ключи в одной транзакции MULTI/EXEC
func (r *RedisStore) SetPair(ctx context.Context, sessionID string, entries map[string][]byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			if value == nil {
				pipe.Del(ctx, tabKey(sessionID, key))
				continue
			}
			pipe.Set(ctx, tabKey(sessionID, key), value, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save cache pair to Redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, tabKey(sessionID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return data, nil
}

// Clear удаляет все ключи вкладки
func (r *RedisStore) Clear(ctx context.Context, sessionID string) error {
	pattern := fmt.Sprintf("tab:%s:*", sessionID)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := r.client.Pipeline()

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Ping проверяет подключение к Redis
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetStats - статистика пула соединений для /debug/stats
func (r *RedisStore) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()
	return map[string]interface{}{
		"driver":      string(StoreTypeRedis),
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
