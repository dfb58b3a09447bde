// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrBatchUnsupported возвращается, когда эндпоинт не поддерживает batch-RPC.
var ErrBatchUnsupported = errors.New("batch rpc is not supported by endpoint")

// SendOptions определяет опции отправки сырой транзакции.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// Blockhash - blockhash вместе с высотой, до которой он валиден.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// SignatureNotification - результат подписки на подпись транзакции.
// Err != nil означает, что транзакция исполнена с ошибкой.
type SignatureNotification struct {
	Slot uint64
	Err  interface{}
}

// SignatureStatus - статус подписи из getSignatureStatuses.
// Found == false, если узел ничего не знает о подписи.
type SignatureStatus struct {
	Found              bool
	Slot               uint64
	Err                interface{}
	ConfirmationStatus rpc.ConfirmationStatusType
}

// BatchItemResult - результат одной транзакции внутри batch-запроса.
type BatchItemResult struct {
	Signature solana.Signature
	Err       error
}

// Connection определяет возможности леджера, которые нужны оркестратору транзакций.
type Connection interface {
	// Отправить сериализованную подписанную транзакцию.
	SendRawTransaction(ctx context.Context, raw []byte, opts SendOptions) (solana.Signature, error)
	// Подписаться на подтверждение подписи. Колбэк вызывается не более одного раза.
	OnSignature(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, cb func(SignatureNotification)) (unsubscribe func(), err error)
	// Получить статусы подписей.
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]SignatureStatus, error)
	// Получить последний blockhash.
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (Blockhash, error)
	// Устаревший вызов getRecentBlockhash, используется как запасной.
	GetRecentBlockhash(ctx context.Context, commitment rpc.CommitmentType) (Blockhash, error)
}

// BatchSender реализуется соединениями, умеющими отправлять несколько транзакций одним RPC-вызовом.
// Результаты возвращаются в порядке входных данных.
type BatchSender interface {
	SendRawTransactions(ctx context.Context, raws [][]byte, opts SendOptions) ([]BatchItemResult, error)
}
