// internal/txflow/fake_test.go
package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain"
	"github.com/rovshanmuradov/solana-txflow/internal/history"
	"github.com/rovshanmuradov/solana-txflow/internal/notify"
)

const testTimeout = 3 * time.Second

var recipient = solana.NewWallet().PublicKey()

// eventLog is an ordered trace shared by the fake ledger and the hooks of a test.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) indexOf(event string) int {
	for i, e := range l.all() {
		if e == event {
			return i
		}
	}
	return -1
}

// fakeConn is a ledger whose confirmations are driven by the test.
type fakeConn struct {
	log *eventLog

	mu           sync.Mutex
	hash         solana.Hash
	latestErr    error
	recentErr    error
	latestCalls  int
	recentCalls  int
	sendErr      func(sig solana.Signature) error
	sent         []solana.Signature
	subs         map[solana.Signature]func(blockchain.SignatureNotification)
	subscribeErr error
	statuses     map[solana.Signature]blockchain.SignatureStatus
	// autoConfirm settles every subscription right away with the returned error payload.
	autoConfirm func(sig solana.Signature) interface{}

	subscribed chan solana.Signature
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		log:        &eventLog{},
		hash:       solana.HashFromBytes([]byte("fake-blockhash-fake-blockhash-32")),
		subs:       make(map[solana.Signature]func(blockchain.SignatureNotification)),
		statuses:   make(map[solana.Signature]blockchain.SignatureStatus),
		subscribed: make(chan solana.Signature, 64),
	}
}

func decodeSignature(raw []byte) (solana.Signature, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("unsigned transaction")
	}
	return tx.Signatures[0], nil
}

func (c *fakeConn) SendRawTransaction(_ context.Context, raw []byte, opts blockchain.SendOptions) (solana.Signature, error) {
	if !opts.SkipPreflight {
		return solana.Signature{}, errors.New("preflight must be skipped")
	}
	sig, err := decodeSignature(raw)
	if err != nil {
		return solana.Signature{}, err
	}

	c.mu.Lock()
	sendErr := c.sendErr
	c.mu.Unlock()
	if sendErr != nil {
		if err := sendErr(sig); err != nil {
			c.log.add("send-failed:%s", sig)
			return solana.Signature{}, err
		}
	}

	c.mu.Lock()
	c.sent = append(c.sent, sig)
	c.mu.Unlock()
	c.log.add("send:%s", sig)
	return sig, nil
}

func (c *fakeConn) OnSignature(_ context.Context, sig solana.Signature, _ rpc.CommitmentType, cb func(blockchain.SignatureNotification)) (func(), error) {
	c.mu.Lock()
	if c.subscribeErr != nil {
		err := c.subscribeErr
		c.mu.Unlock()
		return nil, err
	}
	auto := c.autoConfirm
	if auto == nil {
		c.subs[sig] = cb
	}
	c.mu.Unlock()

	c.subscribed <- sig
	if auto != nil {
		go cb(blockchain.SignatureNotification{Slot: 42, Err: auto(sig)})
	}
	return func() {}, nil
}

func (c *fakeConn) GetSignatureStatuses(_ context.Context, sigs ...solana.Signature) ([]blockchain.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]blockchain.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		out[i] = c.statuses[sig]
	}
	return out, nil
}

func (c *fakeConn) GetLatestBlockhash(context.Context, rpc.CommitmentType) (blockchain.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestCalls++
	if c.latestErr != nil {
		return blockchain.Blockhash{}, c.latestErr
	}
	return blockchain.Blockhash{Hash: c.hash, LastValidBlockHeight: 1000}, nil
}

func (c *fakeConn) GetRecentBlockhash(context.Context, rpc.CommitmentType) (blockchain.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recentCalls++
	if c.recentErr != nil {
		return blockchain.Blockhash{}, c.recentErr
	}
	return blockchain.Blockhash{Hash: c.hash}, nil
}

// confirm delivers the notification of sig. A non-nil payload is a ledger error.
func (c *fakeConn) confirm(sig solana.Signature, payload interface{}) {
	c.mu.Lock()
	cb, ok := c.subs[sig]
	delete(c.subs, sig)
	c.mu.Unlock()
	if ok {
		cb(blockchain.SignatureNotification{Slot: 42, Err: payload})
	}
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) waitSubscribed(t *testing.T) solana.Signature {
	t.Helper()
	select {
	case sig := <-c.subscribed:
		return sig
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a signature subscription")
		return solana.Signature{}
	}
}

// batchConn adds the batch RPC primitive to fakeConn.
type batchConn struct {
	*fakeConn
	batchCalls int
	batchSizes []int
}

func (c *batchConn) SendRawTransactions(ctx context.Context, raws [][]byte, opts blockchain.SendOptions) ([]blockchain.BatchItemResult, error) {
	c.mu.Lock()
	c.batchCalls++
	c.batchSizes = append(c.batchSizes, len(raws))
	c.mu.Unlock()

	out := make([]blockchain.BatchItemResult, len(raws))
	for i, raw := range raws {
		sig, err := c.fakeConn.SendRawTransaction(ctx, raw, opts)
		out[i] = blockchain.BatchItemResult{Signature: sig, Err: err}
	}
	return out, nil
}

// promptSigner signs like a wallet adapter: one call for all transactions.
type promptSigner struct {
	key solana.PrivateKey

	mu     sync.Mutex
	calls  int
	reject error
	// blank returns the transactions without signing them.
	blank bool
}

func newPromptSigner() *promptSigner {
	return &promptSigner{key: solana.NewWallet().PrivateKey}
}

func (s *promptSigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

func (s *promptSigner) SignAll(_ context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.reject != nil {
		return nil, s.reject
	}
	if s.blank {
		return txs, nil
	}
	for _, tx := range txs {
		if err := partialSign(tx, []solana.PrivateKey{s.key}); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

type notice struct {
	level       string
	title       string
	description string
}

// recordingNotifier keeps every notification and item patch.
type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]notify.TxInfo
	items   map[int]notify.TxInfo
	notices []notice
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{items: make(map[int]notify.TxInfo)}
}

func (n *recordingNotifier) LogTxid(infos []notify.TxInfo) notify.Controller {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, infos)
	for _, info := range infos {
		n.items[info.Index] = info
	}
	return n
}

func (n *recordingNotifier) ChangeItemInfo(patch notify.Patch, match notify.Matcher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for idx, info := range n.items {
		if !match(info) {
			continue
		}
		if patch.TxID != "" {
			info.TxID = patch.TxID
		}
		if patch.Status != "" {
			info.Status = patch.Status
		}
		if patch.Err != "" {
			info.Err = patch.Err
		}
		n.items[idx] = info
	}
}

func (n *recordingNotifier) LogError(title, description string) {
	n.add("error", title, description)
}

func (n *recordingNotifier) LogWarning(title, description string) {
	n.add("warning", title, description)
}

func (n *recordingNotifier) LogSuccess(title, description string) {
	n.add("success", title, description)
}

func (n *recordingNotifier) add(level, title, description string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{level: level, title: title, description: description})
}

func (n *recordingNotifier) item(i int) notify.TxInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.items[i]
}

func (n *recordingNotifier) allNotices() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

func transferIx(from solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, recipient).Build()
}

// buildTransfers produces one transfer transaction per title.
func buildTransfers(titles ...string) BuildFunc {
	return func(_ context.Context, c *Collector, base Base) error {
		for i, title := range titles {
			c.AddInstruction(transferIx(base.Owner, uint64(i+1)))
			c.AddSpawned(SingleTxOption{Title: title})
		}
		return nil
	}
}

type testEnv struct {
	conn     *fakeConn
	signer   *promptSigner
	recorder *history.Recorder
	notifier *recordingNotifier
	handler  *Handler
}

func newTestEnv(t *testing.T, conn blockchain.Connection, fake *fakeConn) *testEnv {
	t.Helper()
	env := &testEnv{
		conn:     fake,
		signer:   newPromptSigner(),
		recorder: history.NewRecorder(history.NewMemoryStore(), 0, zap.NewNop()),
		notifier: newRecordingNotifier(),
	}
	env.handler = NewHandler(HandlerDeps{
		Conn:     conn,
		Signer:   env.signer,
		History:  env.recorder,
		Notifier: env.notifier,
		Metrics:  NewMetrics(nil),
	}, Config{
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	return env
}

func (e *testEnv) owner() string {
	return e.signer.PublicKey().String()
}

type runResult struct {
	res Result
	err error
}

// runAsync starts an invocation and returns a channel with its outcome.
func (e *testEnv) runAsync(build BuildFunc, opt MultiTxOption) <-chan runResult {
	out := make(chan runResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		res, err := e.handler.Run(ctx, build, opt)
		out <- runResult{res: res, err: err}
	}()
	return out
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := e.handler.Wait(ctx); err != nil {
		t.Fatalf("handler did not settle: %v", err)
	}
}

func awaitResult(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the invocation result")
		return runResult{}
	}
}

// revert is a ledger error payload as delivered by signature notifications.
var revert = map[string]interface{}{
	"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6001}},
}
