package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Driver        string // memory, sqlite, redis or mongo
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	RedisTTL      time.Duration
	MongoURI      string
	MongoDB       string
}

// Open builds the Store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "memory":
		return NewMemoryStore(), nil
	case "", "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = "storefront.db"
		}
		return NewSQLiteStore(path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return NewRedisStore(client, opts.RedisPrefix, opts.RedisTTL), nil
	case "mongo", "mongodb":
		db, err := ConnectMongoDB(ctx, opts.MongoURI, opts.MongoDB)
		if err != nil {
			return nil, err
		}
		return NewMongoStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
