// internal/txflow/errors.go
package txflow

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrConnectionNotReady         = errors.New("ledger connection is not ready")
	ErrWalletNotConnected         = errors.New("wallet is not connected")
	ErrUserRejected               = errors.New("user rejected the request")
	ErrUnsupportedTransactionType = errors.New("versioned transactions cannot be sent with a forced keypair")
	ErrApprovalPending            = errors.New("another wallet approval is in progress")
	ErrTransactionTooLarge        = errors.New("instruction does not fit into a single transaction")
	ErrEmptyPayload               = errors.New("transaction payload has no instructions")
	ErrSubscriptionClosed         = errors.New("confirmation watch closed before the ledger answered")
	ErrBatchAborted               = errors.New("batch aborted before submission")
)

// SendError wraps a transport failure of one submission.
type SendError struct {
	Index int
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send transaction #%d: %v", e.Index, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// TxError is a transaction that the ledger executed and reverted.
// Payload is the raw error object from the ledger.
type TxError struct {
	Signature solana.Signature
	Slot      uint64
	Payload   interface{}
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s failed at slot %d: %v", e.Signature, e.Slot, e.Payload)
}
