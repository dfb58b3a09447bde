// internal/storage/storage_test.go
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_DefaultsToMemory(t *testing.T) {
	b, err := Open(context.Background(), Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name)
	assert.NoError(t, b.Close())
}

func TestOpen_UnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, Options{RedisAddr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}
