// internal/txflow/subscriber.go
package txflow

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
)

// DefaultPollInterval is the status polling period used when no websocket subscription is available.
const DefaultPollInterval = 500 * time.Millisecond

// Outcome is the confirmation result of one signature.
// Err is a *TxError when the ledger reverted the transaction, or ErrSubscriptionClosed
// when the watch ended before the ledger answered.
type Outcome struct {
	Slot uint64
	Err  error
}

// Subscriber waits for one confirmation per signature. It has no deadline of its own:
// a signature the ledger never reports stays watched until its context ends or Close is called.
type Subscriber struct {
	conn         blockchain.Connection
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	logger       *zap.Logger

	stop      chan struct{}
	closeOnce sync.Once
}

// NewSubscriber creates a subscriber. Zero values fall back to processed commitment
// and DefaultPollInterval.
func NewSubscriber(conn blockchain.Connection, commitment rpc.CommitmentType, pollInterval time.Duration, logger *zap.Logger) *Subscriber {
	if commitment == "" {
		commitment = rpc.CommitmentProcessed
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Subscriber{
		conn:         conn,
		commitment:   commitment,
		pollInterval: pollInterval,
		logger:       logger.Named("tx-subscriber"),
		stop:         make(chan struct{}),
	}
}

// Close ends every watch that is still waiting. Their done gets ErrSubscriptionClosed.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
}

// Watch calls done exactly once: with the ledger outcome of sig, or with ErrSubscriptionClosed
// when ctx ends or the subscriber is closed first. The websocket notification is used when
// available, otherwise statuses are polled.
func (s *Subscriber) Watch(ctx context.Context, sig solana.Signature, done func(Outcome)) {
	ctx, cancel := context.WithCancel(ctx)

	var once sync.Once
	finish := func(o Outcome) {
		once.Do(func() {
			cancel()
			done(o)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stop:
		}
		finish(Outcome{Err: ErrSubscriptionClosed})
	}()

	unsubscribe, err := s.conn.OnSignature(ctx, sig, s.commitment, func(n blockchain.SignatureNotification) {
		finish(toOutcome(sig, n.Slot, n.Err))
	})
	if err != nil {
		s.logger.Debug("Signature subscription failed, polling statuses",
			zap.String("signature", sig.String()),
			zap.Error(err))
		go s.poll(ctx, sig, finish)
		return
	}
	if unsubscribe != nil {
		context.AfterFunc(ctx, unsubscribe)
	}
}

func (s *Subscriber) poll(ctx context.Context, sig solana.Signature, finish func(Outcome)) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statuses, err := s.conn.GetSignatureStatuses(ctx, sig)
			if err != nil {
				s.logger.Warn("Confirmation check failed", zap.Error(err))
				continue
			}
			if len(statuses) == 0 || !statuses[0].Found {
				continue
			}
			finish(toOutcome(sig, statuses[0].Slot, statuses[0].Err))
			return
		}
	}
}

func toOutcome(sig solana.Signature, slot uint64, payload interface{}) Outcome {
	if payload != nil {
		return Outcome{Slot: slot, Err: &TxError{Signature: sig, Slot: slot, Payload: payload}}
	}
	return Outcome{Slot: slot}
}
