// internal/storage/redis/store_test.go
package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/history"
)

func setupTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil, "", zap.NewNop())
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client, "", zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := history.Snapshot{
		"owner": {"sig": {TxID: "sig", Title: "Swap", Status: history.StatusSuccess, BlockSlot: 5, Time: at}},
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	keys, err := client.Keys(ctx, "*").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultKey}, keys)
}

func TestStore_CorruptedDocument(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client, "custom", zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "custom", "{not json", 0).Err())
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_BacksRecorder(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client, "", zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	r := history.NewRecorder(store, 0, zap.NewNop())
	require.NoError(t, r.Record(ctx, "owner", history.Entry{TxID: "a", Title: "Swap"}))

	restored := history.NewRecorder(store, 0, zap.NewNop())
	require.NoError(t, restored.Restore(ctx))
	e, ok := restored.Get("owner", "a")
	require.True(t, ok)
	assert.Equal(t, "Swap", e.Title)
}
