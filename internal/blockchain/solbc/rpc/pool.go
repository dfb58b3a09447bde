// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// NewPool создает новый пул клиентов
func NewPool(nodes []NodeConfig, maxRetries int, logger *zap.Logger) (*Pool, error) {
	if len(nodes) == 0 {
		return nil, ErrNoRPCNodes
	}
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}

	clients := make([]*NodeClient, 0, len(nodes))
	for _, node := range nodes {
		clients = append(clients, NewClient(node))
	}

	return &Pool{
		clients:    clients,
		logger:     logger.Named("rpc-pool"),
		currIndex:  -1,
		maxRetries: maxRetries,
	}, nil
}

// Clients возвращает все узлы пула.
func (p *Pool) Clients() []*NodeClient {
	return p.clients
}

// GetNextClient возвращает следующий активный клиент из пула
func (p *Pool) GetNextClient() *NodeClient {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i := 0; i < len(p.clients); i++ {
		p.currIndex = (p.currIndex + 1) % len(p.clients)
		if p.clients[p.currIndex].IsActive() {
			return p.clients[p.currIndex]
		}
	}
	return nil
}

// HasActiveClients проверяет наличие активных клиентов в пуле
func (p *Pool) HasActiveClients() bool {
	for _, client := range p.clients {
		if client.IsActive() {
			return true
		}
	}
	return false
}

// CheckHealth проверяет неактивные узлы и возвращает в работу те, что отвечают.
func (p *Pool) CheckHealth(ctx context.Context) int {
	revived := 0
	for _, node := range p.clients {
		if node.IsActive() {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		_, err := node.Client.GetVersion(checkCtx)
		cancel()
		if err != nil {
			p.logger.Debug("Node health check failed", zap.String("url", node.URL), zap.Error(err))
			continue
		}
		node.SetActive(true)
		revived++
		p.logger.Info("Node reactivated", zap.String("url", node.URL))
	}
	return revived
}

// ExecuteWithRetry выполняет операцию с повторными попытками, переключаясь между узлами.
// Повторяются только сетевые ошибки и ошибки лимита запросов, остальные возвращаются сразу.
func (p *Pool) ExecuteWithRetry(ctx context.Context, method string, operation func(context.Context, *NodeClient) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = RetryDelay
	bo.MaxInterval = MaxRetryDelay

	op := func() (struct{}, error) {
		client := p.GetNextClient()
		if client == nil {
			if p.CheckHealth(ctx) == 0 {
				return struct{}{}, backoff.Permanent(ErrNoActiveClients)
			}
			client = p.GetNextClient()
			if client == nil {
				return struct{}{}, backoff.Permanent(ErrNoActiveClients)
			}
		}

		if err := client.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		start := time.Now()
		err := operation(ctx, client)
		client.UpdateMetrics(err == nil, time.Since(start))
		if err == nil {
			return struct{}{}, nil
		}

		rpcErr := NewError(err, client.URL, method)
		if !IsRetryableError(rpcErr) {
			return struct{}{}, backoff.Permanent(rpcErr)
		}
		if IsNodeFailure(rpcErr) && len(p.clients) > 1 {
			client.SetActive(false)
			p.logger.Warn("Node marked as inactive",
				zap.String("url", client.URL),
				zap.String("method", method),
				zap.Error(err))
		} else {
			p.logger.Debug("Retryable RPC error",
				zap.String("url", client.URL),
				zap.String("method", method),
				zap.Error(err))
		}
		return struct{}{}, rpcErr
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.maxRetries)),
	)
	return err
}
