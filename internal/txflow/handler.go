// internal/txflow/handler.go
package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
	"github.com/rovshanmuradov/solana-txflow/internal/history"
	"github.com/rovshanmuradov/solana-txflow/internal/notify"
)

// unsentTxIDPrefix keys history entries of transactions that failed before they had a signature.
const unsentTxIDPrefix = "unsent-"

// Signer signs every transaction of an invocation with one wallet prompt.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAll(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// keypairSigner is implemented by signers that hold their key locally.
// Such signers skip the prompt and sign at submission time.
type keypairSigner interface {
	Keypair() solana.PrivateKey
}

// HistoryRecorder receives the lifecycle of every submitted transaction.
type HistoryRecorder interface {
	Record(ctx context.Context, owner string, entry history.Entry) error
	Update(ctx context.Context, owner, txid string, patch history.Patch) error
}

// Base is what a build closure gets besides the collector.
type Base struct {
	Conn  blockchain.Connection
	Owner solana.PublicKey
}

// BuildFunc populates the collector with the transactions of one user action.
type BuildFunc func(ctx context.Context, c *Collector, base Base) error

// Config holds the orchestrator policies.
type Config struct {
	Commitment       rpc.CommitmentType
	PollInterval     time.Duration
	MaxParallelSends int
	BlockhashRetries int
}

// HandlerDeps are the collaborators of a Handler. Only Conn is required.
type HandlerDeps struct {
	Conn         blockchain.Connection
	Signer       Signer
	History      HistoryRecorder
	Notifier     notify.Notifier
	Gate         *ApprovalGate
	Metrics      *Metrics
	InnerBuilder InnerBuilder
	Serializer   Serializer
}

// Handler runs multi-transaction invocations.
type Handler struct {
	conn     blockchain.Connection
	history  HistoryRecorder
	notifier notify.Notifier
	gate     *ApprovalGate
	metrics  *Metrics
	cfg      Config
	logger   *zap.Logger

	attacher   *Attacher
	builder    *Builder
	sender     *Sender
	subscriber *Subscriber

	mu     sync.RWMutex
	signer Signer

	wg sync.WaitGroup
}

// NewHandler creates a handler.
func NewHandler(deps HandlerDeps, cfg Config, logger *zap.Logger) *Handler {
	logger = logger.Named("txflow")
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Gate == nil {
		deps.Gate = &ApprovalGate{}
	}
	return &Handler{
		conn:       deps.Conn,
		history:    deps.History,
		notifier:   deps.Notifier,
		gate:       deps.Gate,
		metrics:    deps.Metrics,
		cfg:        cfg,
		logger:     logger,
		attacher:   NewAttacher(deps.Conn, "", cfg.BlockhashRetries, logger),
		builder:    NewBuilder(deps.InnerBuilder),
		sender:     NewSender(deps.Conn, deps.Serializer, logger),
		subscriber: NewSubscriber(deps.Conn, cfg.Commitment, cfg.PollInterval, logger),
		signer:     deps.Signer,
	}
}

// SetSigner switches the connected wallet.
func (h *Handler) SetSigner(s Signer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signer = s
}

func (h *Handler) currentSigner() Signer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.signer
}

// Wait blocks until every background submission and confirmation of past invocations finished.
// When ctx ends first, the confirmation watches still waiting are closed: their transactions
// fire no terminal hooks and stay pending in history for the status refresher. The handler
// must not be used for new invocations after that.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.subscriber.Close()
		return ctx.Err()
	}
}

func (h *Handler) spawn(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// Run builds, signs and dispatches the transactions produced by build and returns the
// aggregate result. The error is non-nil only when the invocation failed as a whole,
// and then the result is empty. Transactions keep running after Run returned.
func (h *Handler) Run(ctx context.Context, build BuildFunc, opt MultiTxOption) (Result, error) {
	start := time.Now()
	defer h.metrics.TrackInvocation(start)

	release, ok := h.gate.TryAcquire()
	if !ok {
		return Result{}, ErrApprovalPending
	}
	defer release()

	var title string
	fail := func(err error) (Result, error) {
		if title == "" {
			title = "Transaction failed"
		}
		h.notifier.LogError(title, opt.describe(err))
		h.logger.Warn("Invocation failed", zap.String("title", title), zap.Error(err))
		return Result{}, err
	}

	if !opt.SendMode.Valid() {
		return fail(fmt.Errorf("unknown send mode %q", opt.SendMode))
	}
	if h.conn == nil {
		return fail(ErrConnectionNotReady)
	}
	signer := opt.Signer
	if signer == nil {
		signer = h.currentSigner()
	}
	if signer == nil || signer.PublicKey().IsZero() {
		return fail(ErrWalletNotConnected)
	}
	owner := signer.PublicKey()

	collector := NewCollector(owner)
	if err := build(ctx, collector, Base{Conn: h.conn, Owner: owner}); err != nil {
		return fail(err)
	}
	pending := collector.Pending()
	if len(pending) == 0 {
		return Result{AllSuccess: true}, nil
	}
	title = pending[0].Options.Title

	payloads := make([]Payload, len(pending))
	for i, p := range pending {
		payloads[i] = p.Payload
	}
	if err := h.attacher.Attach(ctx, owner, payloads); err != nil {
		return fail(err)
	}

	txs, err := h.builder.Build(ctx, pending)
	if err != nil {
		return fail(err)
	}

	var keypair *solana.PrivateKey
	if kp, ok := signer.(keypairSigner); ok {
		key := kp.Keypair()
		keypair = &key
	} else if err := h.signAll(ctx, signer, txs); err != nil {
		return fail(err)
	}

	inv := h.newInvocation(ctx, owner, txs, opt, keypair, release)
	inv.dispatch()

	h.logger.Info("Transactions dispatched",
		zap.String("owner", owner.String()),
		zap.String("title", title),
		zap.Int("count", len(txs)),
		zap.String("send_mode", string(opt.SendMode)))

	select {
	case <-inv.agg.done:
		return inv.agg.result, nil
	case <-ctx.Done():
		return inv.agg.partial(), ctx.Err()
	}
}

// signAll asks the wallet once for all signatures and rejects unsigned results.
func (h *Handler) signAll(ctx context.Context, signer Signer, txs []compiled) error {
	raw := make([]*solana.Transaction, len(txs))
	for i := range txs {
		raw[i] = txs[i].tx
	}

	signed, err := signer.SignAll(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	if len(signed) != len(txs) {
		return fmt.Errorf("%w: wallet returned %d of %d transactions", ErrUserRejected, len(signed), len(txs))
	}
	for i, tx := range signed {
		if tx == nil || missingSignature(tx) {
			return fmt.Errorf("%w: transaction #%d is not signed", ErrUserRejected, i)
		}
		txs[i].tx = tx
	}
	return nil
}

// invocation is the dispatch state of one Run.
type invocation struct {
	h       *Handler
	ctx     context.Context
	owner   string
	txs     []compiled
	opt     MultiTxOption
	keypair *solana.PrivateKey
	cache   *SerializeCache
	batch   *BatchGroup
	ctrl    notify.Controller
	agg     *aggregator
	release func()
}

func (h *Handler) newInvocation(ctx context.Context, owner solana.PublicKey, txs []compiled, opt MultiTxOption, keypair *solana.PrivateKey, release func()) *invocation {
	infos := make([]notify.TxInfo, len(txs))
	for i := range txs {
		txs[i].opt.Hooks.Merge(opt.Hooks)
		infos[i] = notify.TxInfo{
			Index:       i,
			Title:       txs[i].opt.Title,
			Description: txs[i].opt.Description,
			Status:      notify.StatusQueued,
		}
	}

	inv := &invocation{
		h: h,
		// Submissions and subscriptions outlive the caller; only the ledger answer or Wait ends them.
		ctx:     context.WithoutCancel(ctx),
		owner:   owner.String(),
		txs:     txs,
		opt:     opt,
		keypair: keypair,
		cache:   NewSerializeCache(),
		ctrl:    h.notifier.LogTxid(infos),
		agg:     newAggregator(len(txs), opt),
		release: release,
	}
	if opt.SendMode == SendParallelBatched {
		inv.batch = NewBatchGroup(h.conn, h.sender.opts, len(txs), h.logger)
	}
	return inv
}

func (inv *invocation) dispatch() {
	n := len(inv.txs)
	if inv.opt.SendMode.queued() {
		// Build the chain from the last transaction backwards so each send is the
		// continuation of the previous one.
		var next func()
		for i := n - 1; i >= 0; i-- {
			i, after := i, next
			next = func() {
				inv.h.spawn(func() { inv.send(i, after) })
			}
		}
		next()
		return
	}

	inv.h.spawn(func() {
		g := new(errgroup.Group)
		if inv.batch == nil && inv.h.cfg.MaxParallelSends > 0 {
			g.SetLimit(inv.h.cfg.MaxParallelSends)
		}
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				inv.send(i, nil)
				return nil
			})
		}
		_ = g.Wait()
	})
}

func (inv *invocation) continuation(i int) Continuation {
	if c := inv.txs[i].opt.Continuation; c != ContinueDefault {
		return c
	}
	return inv.opt.defaultContinuation()
}

// send submits transaction i and watches its confirmation. after dispatches the next
// queued transaction and is nil in parallel modes.
func (inv *invocation) send(i int, after func()) {
	h := inv.h
	tx := inv.txs[i].tx
	opt := inv.txs[i].opt
	cont := inv.continuation(i)
	ev := TxEvent{Index: i, Title: opt.Title}

	var chained bool
	proceed := func(on Continuation) {
		if after != nil && !chained && cont == on {
			chained = true
			after()
		}
	}
	finish := func() {
		if after != nil && !chained {
			inv.abortAfter(i)
		}
	}

	inv.ctrl.ChangeItemInfo(notify.Patch{Status: notify.StatusProcessing}, notify.ByIndex(i))

	payload := SendPayload{Index: i, Keypair: inv.keypair, Batch: inv.batch}
	if opt.CacheTransaction {
		payload.Cache = inv.cache
	}
	sig, err := h.sender.Send(inv.ctx, tx, payload)
	inv.release()

	if err != nil {
		h.metrics.txSendFailed()
		ev.Err = err
		if len(tx.Signatures) > 0 && tx.Signatures[0] != (solana.Signature{}) {
			ev.Signature = tx.Signatures[0]
			ev.TxID = ev.Signature.String()
		}
		h.logger.Warn("Transaction send failed", zap.Int("index", i), zap.Error(err))

		fire(opt.Hooks.OnSentError, ev)
		fire(opt.Hooks.OnSentFinally, ev)
		inv.ctrl.ChangeItemInfo(notify.Patch{TxID: ev.TxID, Status: notify.StatusError, Err: inv.opt.describe(err)}, notify.ByIndex(i))
		recordID := ev.TxID
		if recordID == "" {
			// Nothing reached the ledger, so there is no signature to key the entry by.
			recordID = unsentTxIDPrefix + uuid.NewString()
		}
		inv.record(recordID, opt, history.StatusFail)
		inv.agg.failure(ev.TxID)
		fire(opt.Hooks.OnFinally, ev)

		proceed(ContinueError)
		proceed(ContinueFinally)
		finish()
		return
	}

	h.metrics.txSent()
	ev.Signature = sig
	ev.TxID = sig.String()
	h.logger.Debug("Transaction sent", zap.Int("index", i), zap.String("signature", ev.TxID))

	fire(opt.Hooks.OnSentSuccess, ev)
	inv.agg.sent(ev.TxID)
	inv.record(ev.TxID, opt, history.StatusPending)
	fire(opt.Hooks.OnSentFinally, ev)
	inv.ctrl.ChangeItemInfo(notify.Patch{TxID: ev.TxID}, notify.ByIndex(i))

	h.wg.Add(1)
	h.subscriber.Watch(inv.ctx, sig, func(o Outcome) {
		defer h.wg.Done()
		if errors.Is(o.Err, ErrSubscriptionClosed) {
			h.logger.Info("Stopped watching unconfirmed transaction", zap.String("signature", ev.TxID))
			return
		}
		ev.Slot = o.Slot
		h.metrics.txConfirmed(o.Err)

		if o.Err == nil {
			fire(opt.Hooks.OnSuccess, ev)
			inv.update(ev.TxID, history.Patch{Status: history.StatusSuccess, BlockSlot: o.Slot})
			inv.ctrl.ChangeItemInfo(notify.Patch{Status: notify.StatusSuccess}, notify.ByIndex(i))
			inv.agg.success()
			proceed(ContinueSuccess)
		} else {
			ev.Err = o.Err
			h.logger.Info("Transaction failed", zap.String("signature", ev.TxID), zap.Error(o.Err))
			fire(opt.Hooks.OnError, ev)
			inv.update(ev.TxID, history.Patch{Status: history.StatusFail, BlockSlot: o.Slot})
			inv.ctrl.ChangeItemInfo(notify.Patch{Status: notify.StatusError, Err: inv.opt.describe(o.Err)}, notify.ByIndex(i))
			inv.agg.failure(ev.TxID)
			proceed(ContinueError)
		}

		fire(opt.Hooks.OnFinally, ev)
		proceed(ContinueFinally)
		finish()
	})
}

// abortAfter marks the queued transactions behind i as never dispatched.
func (inv *invocation) abortAfter(i int) {
	for j := i + 1; j < len(inv.txs); j++ {
		inv.ctrl.ChangeItemInfo(notify.Patch{Status: notify.StatusAborted}, notify.ByIndex(j))
		inv.agg.failure("")
	}
}

func (inv *invocation) record(txid string, opt SingleTxOption, status history.Status) {
	if inv.h.history == nil {
		return
	}
	err := inv.h.history.Record(inv.ctx, inv.owner, history.Entry{
		TxID:        txid,
		Title:       opt.Title,
		Description: opt.Description,
		Status:      status,
		Time:        time.Now(),
	})
	if err != nil {
		inv.h.logger.Warn("Failed to record transaction", zap.String("txid", txid), zap.Error(err))
	}
}

func (inv *invocation) update(txid string, patch history.Patch) {
	if inv.h.history == nil {
		return
	}
	if err := inv.h.history.Update(inv.ctx, inv.owner, txid, patch); err != nil {
		inv.h.logger.Warn("Failed to update transaction", zap.String("txid", txid), zap.Error(err))
	}
}

// aggregator resolves the invocation result once: on the first failure or when all succeeded.
// txids collects signatures in submission order as they are sent; the transaction whose
// failure resolves the result is left out of it. done is closed after the aggregate callback returned.
type aggregator struct {
	opt MultiTxOption
	n   int

	mu        sync.Mutex
	txids     []string
	succeeded int
	resolved  bool
	result    Result
	done      chan struct{}
}

func newAggregator(n int, opt MultiTxOption) *aggregator {
	return &aggregator{
		opt:   opt,
		n:     n,
		txids: make([]string, 0, n),
		done:  make(chan struct{}),
	}
}

func (a *aggregator) sent(txid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.resolved {
		a.txids = append(a.txids, txid)
	}
}

func (a *aggregator) success() {
	a.mu.Lock()
	a.succeeded++
	if a.resolved || a.succeeded < a.n {
		a.mu.Unlock()
		return
	}
	res := a.resolveLocked(true, "")
	a.mu.Unlock()

	if a.opt.OnAllSuccess != nil {
		a.opt.OnAllSuccess(res.TxIDs)
	}
	close(a.done)
}

// failure resolves the result with the txids sent so far, except failed.
func (a *aggregator) failure(failed string) {
	a.mu.Lock()
	if a.resolved {
		a.mu.Unlock()
		return
	}
	res := a.resolveLocked(false, failed)
	a.mu.Unlock()

	if a.opt.OnAnyError != nil {
		a.opt.OnAnyError(res.TxIDs)
	}
	close(a.done)
}

func (a *aggregator) resolveLocked(all bool, failed string) Result {
	a.resolved = true
	txids := make([]string, 0, len(a.txids))
	for _, id := range a.txids {
		if failed == "" || id != failed {
			txids = append(txids, id)
		}
	}
	a.result = Result{AllSuccess: all, TxIDs: txids}
	return a.result
}

func (a *aggregator) partial() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved {
		return a.result
	}
	return Result{TxIDs: append([]string(nil), a.txids...)}
}
