// Package redis implements URL record and click history storage on top of a
// single Redis instance. Records live in hashes under "url:<shortCode>",
// click history in lists under "analytics:<shortCode>".
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/links2go/links2go/internal/config"
)

// New connects to Redis and verifies the connection with a ping.
// The service cannot operate without its store, so callers are expected to
// treat an error here as fatal at startup.
func New(ctx context.Context, cfg config.Redis) (*goredis.Client, error) {
	const op = "storage.redis.New"

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis at %s: %w", op, cfg.Addr(), err)
	}

	return client, nil
}

const (
	urlKeyPrefix       = "url:"
	analyticsKeyPrefix = "analytics:"
)

func urlKey(shortCode string) string {
	return urlKeyPrefix + shortCode
}

func analyticsKey(shortCode string) string {
	return analyticsKeyPrefix + shortCode
}
