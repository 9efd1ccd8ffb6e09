package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ключи кэша вкладки
const (
	KeyPredictionData = "predictionData"
	KeyDiseaseDetails = "diseaseDetails"
)

// DefaultTTL - время жизни вкладки без активности
const DefaultTTL = 24 * time.Hour

// Ошибки кэша
var (
	ErrMiss             = errors.New("cache miss")
	ErrInvalidConfig    = errors.New("invalid cache configuration")
	ErrInvalidStoreType = errors.New("invalid cache store type")
)

// Store - хранилище кэша вкладок (Infrastructure Layer).
// Все ключи изолированы по sessionID вкладки.
type Store interface {
	// Set записывает одно значение
	Set(ctx context.Context, sessionID, key string, value []byte) error

	// SetPair атомарно записывает набор значений; nil значение удаляет ключ
	SetPair(ctx context.Context, sessionID string, entries map[string][]byte) error

	// Get возвращает значение или ErrMiss
	Get(ctx context.Context, sessionID, key string) ([]byte, error)

	// Clear удаляет все ключи вкладки
	Clear(ctx context.Context, sessionID string) error

	Ping(ctx context.Context) error
	GetStats() map[string]interface{}
	Close() error
}

// StoreType - драйвер кэша
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// Option настраивает хранилище
type Option func(*storeConfig)

// WithRedisClient задает клиент Redis
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL задает время жизни ключей вкладки
func WithTTL(ttl time.Duration) Option {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// NewStore создает хранилище по типу драйвера
func NewStore(storeType StoreType, opts ...Option) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = DefaultTTL
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(cfg.ttl), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.ttl), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}

func tabKey(sessionID, key string) string {
	return fmt.Sprintf("tab:%s:%s", sessionID, key)
}
