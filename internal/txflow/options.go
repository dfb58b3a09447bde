// internal/txflow/options.go
package txflow

import (
	"github.com/gagliardetto/solana-go"
)

// SendMode controls how the transactions of one invocation are dispatched.
type SendMode string

const (
	// SendQueue fires transactions strictly in order, each after the previous one succeeded.
	SendQueue SendMode = "queue"
	// SendQueueAllSettle fires in order, each after the previous one finished either way.
	SendQueueAllSettle SendMode = "queue-all-settle"
	// SendParallel submits everything at once without ordering.
	SendParallel SendMode = "parallel-unordered"
	// SendParallelBatched submits everything through one batched RPC call.
	SendParallelBatched SendMode = "parallel-batched"
)

// Valid reports whether m is a known send mode. Empty is accepted and means SendQueue.
func (m SendMode) Valid() bool {
	switch m {
	case "", SendQueue, SendQueueAllSettle, SendParallel, SendParallelBatched:
		return true
	}
	return false
}

func (m SendMode) queued() bool {
	return m == "" || m == SendQueue || m == SendQueueAllSettle
}

// Continuation names the lifecycle event of a transaction after which the next
// queued transaction is dispatched.
type Continuation string

const (
	ContinueDefault Continuation = ""
	ContinueSuccess Continuation = "success"
	ContinueError   Continuation = "error"
	ContinueFinally Continuation = "finally"
)

// TxEvent is passed to every lifecycle hook.
type TxEvent struct {
	Index     int
	Title     string
	TxID      string
	Signature solana.Signature
	Slot      uint64
	Err       error
}

// Hook observes one lifecycle event.
type Hook func(TxEvent)

// Hooks holds the observers of a transaction, invoked in registration order.
type Hooks struct {
	OnSentSuccess []Hook
	OnSentError   []Hook
	OnSentFinally []Hook
	OnSuccess     []Hook
	OnError       []Hook
	OnFinally     []Hook
}

// Merge appends the observers of other after the ones already registered.
func (h *Hooks) Merge(other Hooks) {
	h.OnSentSuccess = appendHooks(h.OnSentSuccess, other.OnSentSuccess)
	h.OnSentError = appendHooks(h.OnSentError, other.OnSentError)
	h.OnSentFinally = appendHooks(h.OnSentFinally, other.OnSentFinally)
	h.OnSuccess = appendHooks(h.OnSuccess, other.OnSuccess)
	h.OnError = appendHooks(h.OnError, other.OnError)
	h.OnFinally = appendHooks(h.OnFinally, other.OnFinally)
}

// appendHooks never writes into the backing array of dst, which copies of an option share.
func appendHooks(dst, src []Hook) []Hook {
	if len(src) == 0 {
		return dst
	}
	return append(dst[:len(dst):len(dst)], src...)
}

func fire(hooks []Hook, ev TxEvent) {
	for _, hook := range hooks {
		if hook != nil {
			hook(ev)
		}
	}
}

// SingleTxOption configures one transaction.
type SingleTxOption struct {
	Title       string
	Description string
	// Continuation overrides the send mode default for the transaction after this one.
	Continuation Continuation
	// CacheTransaction allows the serialized bytes to be reused for a resend with the same blockhash.
	CacheTransaction bool
	Hooks            Hooks
}

// OnSuccess registers an observer for confirmed success.
func (o *SingleTxOption) OnSuccess(h Hook) *SingleTxOption {
	o.Hooks.OnSuccess = append(o.Hooks.OnSuccess, h)
	return o
}

// OnError registers an observer for confirmed error.
func (o *SingleTxOption) OnError(h Hook) *SingleTxOption {
	o.Hooks.OnError = append(o.Hooks.OnError, h)
	return o
}

// OnFinally registers an observer fired last, whatever the outcome.
func (o *SingleTxOption) OnFinally(h Hook) *SingleTxOption {
	o.Hooks.OnFinally = append(o.Hooks.OnFinally, h)
	return o
}

// OnSent registers observers for the submission phase. Nil hooks are skipped.
func (o *SingleTxOption) OnSent(success, failure, finally Hook) *SingleTxOption {
	if success != nil {
		o.Hooks.OnSentSuccess = append(o.Hooks.OnSentSuccess, success)
	}
	if failure != nil {
		o.Hooks.OnSentError = append(o.Hooks.OnSentError, failure)
	}
	if finally != nil {
		o.Hooks.OnSentFinally = append(o.Hooks.OnSentFinally, finally)
	}
	return o
}

// MultiTxOption configures one orchestrator invocation.
type MultiTxOption struct {
	SendMode SendMode
	// OnAllSuccess fires once when every transaction confirmed successfully.
	OnAllSuccess func(txids []string)
	// OnAnyError fires once on the first failed transaction with the txids confirmed so far.
	OnAnyError func(txids []string)
	// ErrorDescription renders whole-invocation failures for the user.
	ErrorDescription func(err error) string
	// Signer replaces the handler's signer for this invocation, e.g. a KeypairSigner for automated flows.
	Signer Signer
	// Hooks are merged into every transaction's own observers, after them.
	Hooks Hooks
}

func (o MultiTxOption) describe(err error) string {
	if o.ErrorDescription != nil {
		if d := o.ErrorDescription(err); d != "" {
			return d
		}
	}
	return err.Error()
}

func (o MultiTxOption) defaultContinuation() Continuation {
	if o.SendMode == SendQueueAllSettle {
		return ContinueFinally
	}
	return ContinueSuccess
}

// Result is the aggregate outcome of one invocation.
type Result struct {
	AllSuccess bool
	TxIDs      []string
}
