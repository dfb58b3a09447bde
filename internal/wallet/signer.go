// internal/wallet/signer.go
package wallet

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrNotConnected возвращается, когда у адаптера нет подключённого кошелька.
var ErrNotConnected = errors.New("wallet adapter is not connected")

// Adapter - внешний кошелёк пользователя (браузерное расширение, аппаратный кошелёк).
// SignAllTransactions показывает одно окно подтверждения на все транзакции
// и может вернуть ошибку отмены пользователем.
type Adapter interface {
	PublicKey() (solana.PublicKey, bool)
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// AdapterSigner подписывает транзакции через внешний кошелёк.
type AdapterSigner struct {
	adapter Adapter
}

// NewAdapterSigner создаёт интерактивного подписанта.
func NewAdapterSigner(adapter Adapter) *AdapterSigner {
	return &AdapterSigner{adapter: adapter}
}

// PublicKey возвращает ключ подключённого кошелька или нулевой ключ.
func (s *AdapterSigner) PublicKey() solana.PublicKey {
	pk, ok := s.adapter.PublicKey()
	if !ok {
		return solana.PublicKey{}
	}
	return pk
}

// SignAll подписывает все транзакции одним запросом к кошельку.
func (s *AdapterSigner) SignAll(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	if _, ok := s.adapter.PublicKey(); !ok {
		return nil, ErrNotConnected
	}
	return s.adapter.SignAllTransactions(ctx, txs)
}

// KeypairSigner подписывает транзакции локальным ключом без участия пользователя.
// Используется для автоматических сценариев.
type KeypairSigner struct {
	wallet *Wallet
}

// NewKeypairSigner создаёт неинтерактивного подписанта.
func NewKeypairSigner(w *Wallet) *KeypairSigner {
	return &KeypairSigner{wallet: w}
}

// PublicKey возвращает публичный ключ кошелька.
func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.wallet.PublicKey
}

// Keypair возвращает приватный ключ для самостоятельной подписи при отправке.
func (s *KeypairSigner) Keypair() solana.PrivateKey {
	return s.wallet.PrivateKey
}

// SignAll подписывает транзакции ключом кошелька.
func (s *KeypairSigner) SignAll(_ context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	for _, tx := range txs {
		if err := s.wallet.SignTransaction(tx); err != nil {
			return nil, err
		}
	}
	return txs, nil
}
