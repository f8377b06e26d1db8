package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisNotReady はリトライ回数内にRedisへ接続できなかったことを示す。
var ErrRedisNotReady = errors.New("redis is not ready")

// RedisOptions はRedis接続の設定。
type RedisOptions struct {
	URL           string
	RetryAttempts int
	RetryInterval time.Duration
}

// OpenRedis はRedisに接続し、Pingが通るまでリトライする。
// URLは "redis://:password@localhost:6379/0" の形式で指定する。
func OpenRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	connOpt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	attempts := max(opts.RetryAttempts, 1)

	var lastErr error
	for i := range attempts {
		client := redis.NewClient(connOpt)
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(opts.RetryInterval):
		}
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}
