package aggregation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "cardiac:"

type CacheConfig struct {
	// Address of the redis server. Caching is disabled when empty.
	Address  string        `envconfig:"CARDIAC_REDIS_ADDRESS"`
	Password string        `envconfig:"CARDIAC_REDIS_PASSWORD"`
	DB       int           `envconfig:"CARDIAC_REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"CARDIAC_DASHBOARD_CACHE_TTL" default:"60s"`
}

func NewCacheConfig() (*CacheConfig, error) {
	cfg := &CacheConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Cache stores serialized rollups for a short time
type Cache interface {
	// Get decodes the cached value into v. Returns false on a cache miss.
	Get(ctx context.Context, key string, v interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}) error
	// TTL is the lifetime of cached values, zero when caching is disabled
	TTL() time.Duration
}

func NewCache(cfg *CacheConfig, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) Cache {
	if cfg.Address == "" {
		logger.Info("dashboard cache is disabled")
		return noopCache{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return NewRedisCache(client, cfg.TTL)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *redisCache) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	body, err := r.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("error reading cache: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("error decoding cached value: %w", err)
	}
	return true, nil
}

func (r *redisCache) Set(ctx context.Context, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding cached value: %w", err)
	}
	if err := r.client.Set(ctx, cacheKeyPrefix+key, body, r.ttl).Err(); err != nil {
		return fmt.Errorf("error writing cache: %w", err)
	}
	return nil
}

func (r *redisCache) TTL() time.Duration {
	return r.ttl
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, interface{}) (bool, error) {
	return false, nil
}

func (noopCache) Set(context.Context, string, interface{}) error {
	return nil
}

func (noopCache) TTL() time.Duration {
	return 0
}
