// internal/txflow/approval.go
package txflow

import (
	"sync"
	"sync/atomic"
)

// ApprovalGate is set while a wallet approval prompt is outstanding.
// A second invocation must not start until the first one handed its transaction to the ledger.
type ApprovalGate struct {
	shown atomic.Bool
}

// TryAcquire marks the prompt as shown. The returned release is safe to call more than once.
func (g *ApprovalGate) TryAcquire() (release func(), ok bool) {
	if !g.shown.CompareAndSwap(false, true) {
		return func() {}, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.shown.Store(false) })
	}, true
}

// Shown reports whether an approval is in progress.
func (g *ApprovalGate) Shown() bool {
	return g.shown.Load()
}
