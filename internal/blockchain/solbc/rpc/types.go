// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 10 * time.Second
	MaxRetries     = 3
	RetryDelay     = 500 * time.Millisecond
	MaxRetryDelay  = 5 * time.Second
)

// NodeConfig описывает один RPC узел.
type NodeConfig struct {
	URL string
	// RateLimit - запросов в секунду, 0 означает без ограничения.
	RateLimit float64
	Burst     int
}

// NodeClient представляет отдельный RPC узел
type NodeClient struct {
	Client  *rpc.Client
	URL     string
	active  bool
	limiter *rate.Limiter
	mutex   sync.RWMutex
	metrics *metrics
}

// metrics содержит метрики производительности RPC узла
type metrics struct {
	successCount uint64
	errorCount   uint64
	latency      time.Duration
	mutex        sync.RWMutex
}

// Pool представляет пул RPC клиентов с переключением между узлами
type Pool struct {
	clients    []*NodeClient
	logger     *zap.Logger
	currIndex  int
	maxRetries int
	mutex      sync.Mutex
}
