// internal/storage/redis/store.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/history"
)

// DefaultKey holds the whole history document.
const DefaultKey = "txflow:tx-history"

// Store keeps the history cold copy as one JSON document under a fixed key.
type Store struct {
	client redis.Cmdable
	key    string
	logger *zap.Logger
}

// NewStore creates a store over client. An empty key means DefaultKey.
func NewStore(client redis.Cmdable, key string, logger *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key, logger: logger.Named("redis-history")}, nil
}

// Load returns the stored snapshot, or an empty one when nothing was saved yet.
// A corrupted document is logged and treated as empty.
func (s *Store) Load(ctx context.Context) (history.Snapshot, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return history.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	snap := history.Snapshot{}
	if err := json.Unmarshal(val, &snap); err != nil {
		s.logger.Warn("Discarding unreadable history document", zap.String("key", s.key), zap.Error(err))
		return history.Snapshot{}, nil
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap history.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("set history: %w", err)
	}
	return nil
}
