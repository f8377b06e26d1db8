package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// ErrMongoNotReady はリトライ回数内にMongoDBへ接続できなかったことを示す。
var ErrMongoNotReady = errors.New("mongo is not ready")

// MongoOptions はMongoDB接続の設定。
type MongoOptions struct {
	URL            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	RetryAttempts  int
	RetryInterval  time.Duration
}

// OpenMongo はMongoDBに接続し、Pingが通るまでリトライする。
// 接続できた場合はopts.Databaseのデータベースを返す。
func OpenMongo(ctx context.Context, opts MongoOptions) (*mongo.Database, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("failed to open mongo: connection URL is empty")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("failed to open mongo: database name is empty")
	}
	attempts := max(opts.RetryAttempts, 1)
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var lastErr error
	for i := range attempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(opts.URL).
				SetConnectTimeout(timeout).
				SetMaxPoolSize(opts.MaxPoolSize),
		)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			err = client.Ping(pingCtx, readpref.Primary())
			cancel()
			if err == nil {
				return client.Database(opts.Database), nil
			}
			_ = client.Disconnect(context.Background())
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrMongoNotReady, ctx.Err())
		case <-time.After(opts.RetryInterval):
		}
	}

	return nil, errors.Join(ErrMongoNotReady, lastErr)
}
