package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	RedisDialTimeout = 5 * time.Second
	RedisIOTimeout   = 3 * time.Second
)

// NewRedisClient connects to the Redis holding operator sessions and
// presence snapshots.
func NewRedisClient(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = RedisDialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = RedisIOTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = RedisIOTimeout
	}
	opts.ClientName = "webradegast"

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis at %s: %w", opts.Addr, err)
	}

	logger.Info("redis client created", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}
