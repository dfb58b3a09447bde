// internal/txflow/sender.go
package txflow

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
)

// Serializer turns a signed transaction into wire bytes.
type Serializer func(tx *solana.Transaction) ([]byte, error)

// BinarySerializer encodes a transaction with the solana binary encoder.
func BinarySerializer(tx *solana.Transaction) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := tx.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type cacheKey struct {
	tx   *solana.Transaction
	hash solana.Hash
}

// SerializeCache keeps serialized bytes per transaction and blockhash for one invocation.
type SerializeCache struct {
	mu    sync.Mutex
	items map[cacheKey][]byte
}

// NewSerializeCache creates an empty cache.
func NewSerializeCache() *SerializeCache {
	return &SerializeCache{items: make(map[cacheKey][]byte)}
}

func (c *SerializeCache) serialize(tx *solana.Transaction, fn Serializer) ([]byte, error) {
	key := cacheKey{tx: tx, hash: tx.Message.RecentBlockhash}

	c.mu.Lock()
	defer c.mu.Unlock()
	if raw, ok := c.items[key]; ok {
		return raw, nil
	}
	raw, err := fn(tx)
	if err != nil {
		return nil, err
	}
	c.items[key] = raw
	return raw, nil
}

type batchResult struct {
	sig solana.Signature
	err error
}

// BatchGroup collects the serialized transactions of one invocation and submits
// them in a single batch call once every expected member arrived or was skipped.
type BatchGroup struct {
	conn     blockchain.Connection
	opts     blockchain.SendOptions
	expected int
	logger   *zap.Logger

	mu      sync.Mutex
	raws    map[int][]byte
	skipped int
	waiters map[int]chan batchResult
	flushed bool
}

// NewBatchGroup creates a group expecting n members.
func NewBatchGroup(conn blockchain.Connection, opts blockchain.SendOptions, n int, logger *zap.Logger) *BatchGroup {
	return &BatchGroup{
		conn:     conn,
		opts:     opts,
		expected: n,
		logger:   logger.Named("batch"),
		raws:     make(map[int][]byte, n),
		waiters:  make(map[int]chan batchResult, n),
	}
}

// Skip tells the group that member idx will never submit.
func (g *BatchGroup) Skip(idx int) {
	g.mu.Lock()
	if g.flushed {
		g.mu.Unlock()
		return
	}
	g.skipped++
	ready := g.readyLocked()
	g.mu.Unlock()

	if ready {
		g.flush()
	}
}

// Submit queues raw for member idx and blocks until the batch call returned its signature.
func (g *BatchGroup) Submit(ctx context.Context, idx int, raw []byte) (solana.Signature, error) {
	ch := make(chan batchResult, 1)

	g.mu.Lock()
	if g.flushed {
		g.mu.Unlock()
		return g.conn.SendRawTransaction(ctx, raw, g.opts)
	}
	g.raws[idx] = raw
	g.waiters[idx] = ch
	ready := g.readyLocked()
	g.mu.Unlock()

	if ready {
		g.flush()
	}

	select {
	case res := <-ch:
		return res.sig, res.err
	case <-ctx.Done():
		return solana.Signature{}, ctx.Err()
	}
}

func (g *BatchGroup) readyLocked() bool {
	return !g.flushed && len(g.raws)+g.skipped >= g.expected
}

func (g *BatchGroup) flush() {
	g.mu.Lock()
	if g.flushed {
		g.mu.Unlock()
		return
	}
	g.flushed = true
	indices := make([]int, 0, len(g.raws))
	for idx := range g.raws {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	raws := make([][]byte, len(indices))
	for i, idx := range indices {
		raws[i] = g.raws[idx]
	}
	waiters := g.waiters
	g.mu.Unlock()

	if len(indices) == 0 {
		return
	}

	// Members already passed their own cancellation point, the batch itself must finish.
	ctx := context.Background()

	batcher, ok := g.conn.(blockchain.BatchSender)
	if ok {
		results, err := batcher.SendRawTransactions(ctx, raws, g.opts)
		if err == nil && len(results) == len(raws) {
			for i, idx := range indices {
				waiters[idx] <- batchResult{sig: results[i].Signature, err: results[i].Err}
			}
			return
		}
		if err != nil && !errors.Is(err, blockchain.ErrBatchUnsupported) {
			for _, idx := range indices {
				waiters[idx] <- batchResult{err: err}
			}
			return
		}
		g.logger.Debug("Batch RPC unavailable, sending one by one", zap.Error(err))
	}

	var wg sync.WaitGroup
	for i, idx := range indices {
		wg.Add(1)
		go func(raw []byte, ch chan batchResult) {
			defer wg.Done()
			sig, err := g.conn.SendRawTransaction(ctx, raw, g.opts)
			ch <- batchResult{sig: sig, err: err}
		}(raws[i], waiters[idx])
	}
	wg.Wait()
}

// SendPayload carries the per-transaction submission settings.
type SendPayload struct {
	Index int
	// Keypair forces non-interactive signing with this key.
	Keypair *solana.PrivateKey
	// Cache is set when the transaction asked for serialization caching.
	Cache *SerializeCache
	// Batch routes the submission through a shared batch call.
	Batch *BatchGroup
}

// Sender submits signed transactions with preflight disabled.
type Sender struct {
	conn      blockchain.Connection
	serialize Serializer
	opts      blockchain.SendOptions
	logger    *zap.Logger
}

// NewSender creates a sender. A nil serializer means BinarySerializer.
func NewSender(conn blockchain.Connection, serialize Serializer, logger *zap.Logger) *Sender {
	if serialize == nil {
		serialize = BinarySerializer
	}
	return &Sender{
		conn:      conn,
		serialize: serialize,
		opts:      blockchain.SendOptions{SkipPreflight: true},
		logger:    logger.Named("tx-sender"),
	}
}

// Serialize returns the wire bytes of tx, going through the cache when one is given.
func (s *Sender) Serialize(tx *solana.Transaction, cache *SerializeCache) ([]byte, error) {
	if cache != nil {
		return cache.serialize(tx, s.serialize)
	}
	return s.serialize(tx)
}

// Send submits tx and returns its signature. All failures are returned as *SendError.
func (s *Sender) Send(ctx context.Context, tx *solana.Transaction, p SendPayload) (solana.Signature, error) {
	sig, err := s.send(ctx, tx, p)
	if err != nil {
		if p.Batch != nil {
			p.Batch.Skip(p.Index)
		}
		s.logger.Debug("Send failed", zap.Int("index", p.Index), zap.Error(err))
		return solana.Signature{}, &SendError{Index: p.Index, Err: err}
	}
	return sig, nil
}

func (s *Sender) send(ctx context.Context, tx *solana.Transaction, p SendPayload) (solana.Signature, error) {
	if p.Keypair != nil {
		if tx.Message.IsVersioned() {
			return solana.Signature{}, ErrUnsupportedTransactionType
		}
		if err := partialSign(tx, []solana.PrivateKey{*p.Keypair}); err != nil {
			return solana.Signature{}, err
		}
	}

	raw, err := s.Serialize(tx, p.Cache)
	if err != nil {
		return solana.Signature{}, err
	}

	if p.Batch != nil {
		return p.Batch.Submit(ctx, p.Index, raw)
	}
	return s.conn.SendRawTransaction(ctx, raw, s.opts)
}
