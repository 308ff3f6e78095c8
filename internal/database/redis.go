package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"flash-sale/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis builds the shared Redis client used for rate-limit counters and
// purchase notifications. A failed ping is logged but not fatal: the limiter
// fails open and notifications are best effort.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	if err := RedisHealth(ctx, client); err != nil {
		logger.Warn("Redis not reachable at startup", zap.Error(err))
	} else {
		logger.Info("Connected to redis", zap.String("addr", client.Options().Addr))
	}

	return client
}

// RedisHealth pings Redis with a short deadline
func RedisHealth(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
