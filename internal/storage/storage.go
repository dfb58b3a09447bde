// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/history"
	"github.com/rovshanmuradov/solana-txflow/internal/storage/postgres"
	"github.com/rovshanmuradov/solana-txflow/internal/storage/redis"
)

// Options selects the history backend. Postgres wins over redis; neither means memory.
type Options struct {
	PostgresURL string
	RedisAddr   string
	RedisKey    string
}

// Backend is an opened history store.
type Backend struct {
	history.Store
	Name  string
	close func() error
}

// Close releases the backend connections.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Backend, error) {
	switch {
	case opts.PostgresURL != "":
		s, err := postgres.NewStore(opts.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s, Name: "postgres", close: s.Close}, nil

	case opts.RedisAddr != "":
		client := goredis.NewClient(&goredis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
		}
		s, err := redis.NewStore(client, opts.RedisKey, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Backend{Store: s, Name: "redis", close: client.Close}, nil

	default:
		return &Backend{Store: history.NewMemoryStore(), Name: "memory"}, nil
	}
}
