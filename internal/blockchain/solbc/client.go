// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
	"github.com/rovshanmuradov/solana-txflow/internal/blockchain/solbc/rpc"
)

// Client – адаптер леджера поверх solana-go: HTTP RPC через пул узлов и
// подписки на подписи через один общий websocket.
type Client struct {
	pool   *rpc.Pool
	wsURL  string
	logger *zap.Logger

	wsMu sync.Mutex
	ws   *ws.Client
}

// NewClient создаёт клиент, принимая пул RPC узлов, URL websocket и логгер через dependency injection.
func NewClient(pool *rpc.Pool, wsURL string, logger *zap.Logger) *Client {
	return &Client{
		pool:   pool,
		wsURL:  wsURL,
		logger: logger.Named("solbc-client"),
	}
}

// SendRawTransaction отправляет сериализованную транзакцию.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.SendOptions) (solana.Signature, error) {
	var sig solana.Signature
	err := c.pool.ExecuteWithRetry(ctx, "sendTransaction", func(ctx context.Context, node *rpc.NodeClient) error {
		var err error
		sig, err = node.Client.SendRawTransactionWithOpts(ctx, raw, solanarpc.TransactionOpts{
			SkipPreflight:       opts.SkipPreflight,
			PreflightCommitment: opts.PreflightCommitment,
		})
		return err
	})
	if err != nil {
		c.logger.Error("SendRawTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// SendRawTransactions отправляет несколько транзакций одним batch-запросом JSON-RPC.
func (c *Client) SendRawTransactions(ctx context.Context, raws [][]byte, opts blockchain.SendOptions) ([]blockchain.BatchItemResult, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	config := map[string]interface{}{
		"encoding":      "base64",
		"skipPreflight": opts.SkipPreflight,
	}
	if opts.PreflightCommitment != "" {
		config["preflightCommitment"] = opts.PreflightCommitment
	}

	requests := make(jsonrpc.RPCRequests, 0, len(raws))
	for i, raw := range raws {
		req := jsonrpc.NewRequest("sendTransaction", base64.StdEncoding.EncodeToString(raw), config)
		req.ID = i
		requests = append(requests, req)
	}

	var responses jsonrpc.RPCResponses
	err := c.pool.ExecuteWithRetry(ctx, "sendTransaction[batch]", func(ctx context.Context, node *rpc.NodeClient) error {
		var err error
		responses, err = node.Client.RPCCallBatch(ctx, requests)
		return err
	})
	if err != nil {
		c.logger.Error("SendRawTransactions error", zap.Int("count", len(raws)), zap.Error(err))
		return nil, err
	}

	byID := make(map[string]*jsonrpc.RPCResponse, len(responses))
	for _, resp := range responses {
		if resp != nil {
			byID[fmt.Sprint(resp.ID)] = resp
		}
	}

	results := make([]blockchain.BatchItemResult, len(raws))
	for i := range raws {
		resp, ok := byID[fmt.Sprint(i)]
		if !ok {
			results[i].Err = fmt.Errorf("%w: missing batch response %d", rpc.ErrInvalidResponse, i)
			continue
		}
		if resp.Error != nil {
			results[i].Err = resp.Error
			continue
		}
		var encoded string
		if err := json.Unmarshal(resp.Result, &encoded); err != nil {
			results[i].Err = fmt.Errorf("%w: %v", rpc.ErrInvalidResponse, err)
			continue
		}
		sig, err := solana.SignatureFromBase58(encoded)
		if err != nil {
			results[i].Err = fmt.Errorf("%w: %v", rpc.ErrInvalidResponse, err)
			continue
		}
		results[i].Signature = sig
	}
	return results, nil
}

// GetLatestBlockhash получает последний blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (blockchain.Blockhash, error) {
	var out blockchain.Blockhash
	err := c.pool.ExecuteWithRetry(ctx, "getLatestBlockhash", func(ctx context.Context, node *rpc.NodeClient) error {
		res, err := node.Client.GetLatestBlockhash(ctx, commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return rpc.ErrInvalidResponse
		}
		out = blockchain.Blockhash{
			Hash:                 res.Value.Blockhash,
			LastValidBlockHeight: res.Value.LastValidBlockHeight,
		}
		return nil
	})
	return out, err
}

// GetRecentBlockhash получает blockhash устаревшим методом getRecentBlockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (blockchain.Blockhash, error) {
	var out blockchain.Blockhash
	err := c.pool.ExecuteWithRetry(ctx, "getRecentBlockhash", func(ctx context.Context, node *rpc.NodeClient) error {
		res, err := node.Client.GetRecentBlockhash(ctx, commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return rpc.ErrInvalidResponse
		}
		out = blockchain.Blockhash{Hash: res.Value.Blockhash}
		return nil
	})
	return out, err
}

// GetSignatureStatuses получает статусы транзакций.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]blockchain.SignatureStatus, error) {
	if len(sigs) == 0 {
		return nil, nil
	}

	var result *solanarpc.GetSignatureStatusesResult
	err := c.pool.ExecuteWithRetry(ctx, "getSignatureStatuses", func(ctx context.Context, node *rpc.NodeClient) error {
		var err error
		result, err = node.Client.GetSignatureStatuses(ctx, true, sigs...)
		return err
	})
	if err != nil {
		c.logger.Error("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}

	statuses := make([]blockchain.SignatureStatus, len(sigs))
	if result == nil {
		return statuses, nil
	}
	for i, st := range result.Value {
		if i >= len(statuses) || st == nil {
			continue
		}
		statuses[i] = blockchain.SignatureStatus{
			Found:              true,
			Slot:               st.Slot,
			Err:                st.Err,
			ConfirmationStatus: st.ConfirmationStatus,
		}
	}
	return statuses, nil
}

// OnSignature подписывается на подтверждение подписи через websocket.
// Колбэк вызывается один раз; при ошибке подписки он не вызывается,
// такие транзакции позже разбирает периодическая проверка статусов.
func (c *Client) OnSignature(
	ctx context.Context,
	sig solana.Signature,
	commitment solanarpc.CommitmentType,
	cb func(blockchain.SignatureNotification),
) (func(), error) {
	wsClient, err := c.wsClient(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := wsClient.SignatureSubscribe(sig, commitment)
	if err != nil {
		return nil, fmt.Errorf("signature subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer sub.Unsubscribe()

		res, err := sub.Recv(subCtx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Warn("Signature subscription ended without result",
					zap.String("signature", sig.String()),
					zap.Error(err))
			}
			return
		}
		if res == nil {
			return
		}
		cb(blockchain.SignatureNotification{
			Slot: res.Context.Slot,
			Err:  res.Value.Err,
		})
	}()

	return cancel, nil
}

func (c *Client) wsClient(ctx context.Context) (*ws.Client, error) {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws != nil {
		return c.ws, nil
	}
	if c.wsURL == "" {
		return nil, errors.New("websocket url is not configured")
	}

	client, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	c.ws = client
	return client, nil
}

// Close закрывает websocket соединение.
func (c *Client) Close() {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

// Гарантируем, что Client реализует интерфейсы blockchain.
var (
	_ blockchain.Connection  = (*Client)(nil)
	_ blockchain.BatchSender = (*Client)(nil)
)
