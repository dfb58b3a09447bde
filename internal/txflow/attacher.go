// internal/txflow/attacher.go
package txflow

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
)

// Attacher stamps a fresh blockhash and the fee payer onto a batch of payloads.
type Attacher struct {
	conn       blockchain.Connection
	commitment rpc.CommitmentType
	maxTries   uint
	logger     *zap.Logger
}

// NewAttacher creates an attacher. maxTries bounds the blockhash fetch attempts.
func NewAttacher(conn blockchain.Connection, commitment rpc.CommitmentType, maxTries int, logger *zap.Logger) *Attacher {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	if maxTries <= 0 {
		maxTries = 3
	}
	return &Attacher{
		conn:       conn,
		commitment: commitment,
		maxTries:   uint(maxTries),
		logger:     logger.Named("blockhash-attacher"),
	}
}

// Attach fetches one blockhash for the whole batch and stamps it, together with payer,
// onto every payload that has none. Payloads that already carry a blockhash are left untouched,
// and when none needs one no request is made.
func (a *Attacher) Attach(ctx context.Context, payer solana.PublicKey, payloads []Payload) error {
	if a == nil || a.conn == nil {
		return ErrConnectionNotReady
	}
	if payer.IsZero() {
		return ErrWalletNotConnected
	}

	needs := false
	for _, p := range payloads {
		if p.blockhash() == (solana.Hash{}) {
			needs = true
			break
		}
	}
	if !needs {
		return nil
	}

	hash, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		p.stamp(hash, payer)
	}
	return nil
}

func (a *Attacher) fetch(ctx context.Context) (solana.Hash, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	op := func() (solana.Hash, error) {
		latest, err := a.conn.GetLatestBlockhash(ctx, a.commitment)
		if err == nil {
			return latest.Hash, nil
		}
		a.logger.Debug("getLatestBlockhash failed, trying getRecentBlockhash", zap.Error(err))

		recent, legacyErr := a.conn.GetRecentBlockhash(ctx, a.commitment)
		if legacyErr == nil {
			return recent.Hash, nil
		}
		return solana.Hash{}, fmt.Errorf("latest: %v; recent: %w", err, legacyErr)
	}

	hash, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(a.maxTries),
	)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return hash, nil
}
