// internal/blockchain/solbc/rpc/pool_test.go
package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, urls ...string) *Pool {
	t.Helper()
	nodes := make([]NodeConfig, len(urls))
	for i, u := range urls {
		nodes[i] = NodeConfig{URL: u}
	}
	p, err := NewPool(nodes, 3, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewPool_NoNodes(t *testing.T) {
	_, err := NewPool(nil, 3, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoRPCNodes)
}

func TestPool_RoundRobinSkipsInactive(t *testing.T) {
	p := newTestPool(t, "http://a", "http://b", "http://c")
	p.Clients()[1].SetActive(false)

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, p.GetNextClient().URL)
	}
	assert.Equal(t, []string{"http://a", "http://c", "http://a", "http://c"}, got)

	for _, c := range p.Clients() {
		c.SetActive(false)
	}
	assert.Nil(t, p.GetNextClient())
	assert.False(t, p.HasActiveClients())
}

func TestExecuteWithRetry_FailsOverOnNodeFailure(t *testing.T) {
	p := newTestPool(t, "http://a", "http://b")

	var seen []string
	err := p.ExecuteWithRetry(context.Background(), "getSlot", func(_ context.Context, node *NodeClient) error {
		seen = append(seen, node.URL)
		if node.URL == "http://a" {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"http://a", "http://b"}, seen)
	assert.False(t, p.Clients()[0].IsActive())

	ok, failed, _ := p.Clients()[0].GetMetrics()
	assert.Equal(t, uint64(0), ok)
	assert.Equal(t, uint64(1), failed)
}

func TestExecuteWithRetry_PermanentError(t *testing.T) {
	p := newTestPool(t, "http://a", "http://b")

	calls := 0
	err := p.ExecuteWithRetry(context.Background(), "sendTransaction", func(context.Context, *NodeClient) error {
		calls++
		return errors.New("Transaction simulation failed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "sendTransaction", rpcErr.Method)
	assert.True(t, p.Clients()[0].IsActive())
}

func TestExecuteWithRetry_RateLimitKeepsNodeActive(t *testing.T) {
	p := newTestPool(t, "http://a")

	calls := 0
	err := p.ExecuteWithRetry(context.Background(), "getSlot", func(context.Context, *NodeClient) error {
		calls++
		if calls < 2 {
			return errors.New("429 Too Many Requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, p.Clients()[0].IsActive())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		retryable   bool
		nodeFailure bool
	}{
		{name: "nil", err: nil},
		{name: "rate limit", err: errors.New("rate limit reached"), retryable: true},
		{name: "timeout", err: context.DeadlineExceeded, retryable: true, nodeFailure: true},
		{name: "eof", err: errors.New("unexpected EOF"), retryable: true, nodeFailure: true},
		{name: "invalid response", err: ErrInvalidResponse, nodeFailure: true},
		{name: "program error", err: errors.New("custom program error: 0x1771")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.err != nil {
				err = NewError(tt.err, "http://a", "m")
			}
			assert.Equal(t, tt.retryable, IsRetryableError(err))
			assert.Equal(t, tt.nodeFailure, IsNodeFailure(err))
		})
	}
}
