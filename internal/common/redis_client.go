package common

import (
	"context"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/logging"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from config. A failed ping is logged and the client is
// still returned; the pool reconnects once Redis is reachable.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logging.Info("Initializing Redis client", "addr", addr, "db", cfg.DB)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logging.Error("Failed to ping Redis", "addr", addr, "error", err)
		return client
	}

	logging.Info("Connected to Redis", "addr", addr)
	return client
}

// NewCache picks the shared Redis cache when configured, otherwise an in-process cache
func NewCache(cfg config.RedisConfig, defaultTTL time.Duration) CacheInterface {
	if !cfg.Enabled() {
		return NewCacheService(defaultTTL, 10*time.Minute)
	}
	return NewRedisCacheService(NewRedisClient(cfg))
}
