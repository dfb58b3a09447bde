// internal/history/refresher.go
package history

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultDropTimeout     = 5 * time.Minute

	// getSignatureStatuses accepts at most this many signatures per call.
	maxStatusBatch = 256
)

// StatusSource answers signature status queries.
type StatusSource interface {
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]blockchain.SignatureStatus, error)
}

// Refresher periodically resolves pending entries. Entries the ledger does not know
// and that are older than the drop timeout become dropped.
type Refresher struct {
	recorder    *Recorder
	source      StatusSource
	interval    time.Duration
	dropTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewRefresher creates a refresher. Zero durations use the defaults.
func NewRefresher(recorder *Recorder, source StatusSource, interval, dropTimeout time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if dropTimeout <= 0 {
		dropTimeout = DefaultDropTimeout
	}
	return &Refresher{
		recorder:    recorder,
		source:      source,
		interval:    interval,
		dropTimeout: dropTimeout,
		now:         time.Now,
		logger:      logger.Named("history-refresher"),
	}
}

// Run refreshes on every tick until ctx is done.
func (f *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := f.RefreshOnce(ctx); err != nil {
				f.logger.Warn("History refresh failed", zap.Error(err))
			}
		}
	}
}

// RefreshOnce checks every pending entry once and returns how many changed.
func (f *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	pending := f.recorder.Pending()
	if len(pending) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	changes := make([]int, (len(pending)+maxStatusBatch-1)/maxStatusBatch)
	for b := 0; b*maxStatusBatch < len(pending); b++ {
		b := b
		end := (b + 1) * maxStatusBatch
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[b*maxStatusBatch : end]

		g.Go(func() error {
			n, err := f.refreshChunk(gctx, chunk)
			changes[b] = n
			return err
		})
	}

	err := g.Wait()
	total := 0
	for _, n := range changes {
		total += n
	}
	return total, err
}

func (f *Refresher) refreshChunk(ctx context.Context, chunk []OwnedEntry) (int, error) {
	sigs := make([]solana.Signature, 0, len(chunk))
	entries := make([]OwnedEntry, 0, len(chunk))
	for _, e := range chunk {
		sig, err := solana.SignatureFromBase58(e.TxID)
		if err != nil {
			f.logger.Debug("Skipping entry with invalid txid", zap.String("txid", e.TxID))
			continue
		}
		sigs = append(sigs, sig)
		entries = append(entries, e)
	}
	if len(sigs) == 0 {
		return 0, nil
	}

	statuses, err := f.source.GetSignatureStatuses(ctx, sigs...)
	if err != nil {
		return 0, err
	}

	changed := 0
	now := f.now()
	for i, e := range entries {
		var patch Patch
		switch {
		case i < len(statuses) && statuses[i].Found && statuses[i].Err != nil:
			patch = Patch{Status: StatusFail, BlockSlot: statuses[i].Slot}
		case i < len(statuses) && statuses[i].Found:
			patch = Patch{Status: StatusSuccess, BlockSlot: statuses[i].Slot}
		case now.Sub(e.Time) > f.dropTimeout:
			patch = Patch{Status: StatusDropped}
		default:
			continue
		}
		if err := f.recorder.Update(ctx, e.Owner, e.TxID, patch); err != nil {
			f.logger.Warn("Failed to update history entry",
				zap.String("txid", e.TxID),
				zap.Error(err))
			continue
		}
		changed++
	}
	return changed, nil
}
