// internal/wallet/mocks_test.go
package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAdapter реализует интерфейс Adapter
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) PublicKey() (solana.PublicKey, bool) {
	args := m.Called()
	return args.Get(0).(solana.PublicKey), args.Bool(1)
}

func (m *MockAdapter) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	args := m.Called(ctx, txs)
	signed, _ := args.Get(0).([]*solana.Transaction)
	return signed, args.Error(1)
}

func TestAdapterSigner_OneRequestForAllTransactions(t *testing.T) {
	owner := newTestWallet(t).PublicKey
	txs := []*solana.Transaction{unsignedTx(t, owner), unsignedTx(t, owner), unsignedTx(t, owner)}

	m := new(MockAdapter)
	m.On("PublicKey").Return(owner, true)
	m.On("SignAllTransactions", mock.Anything, txs).Return(txs, nil).Once()

	s := NewAdapterSigner(m)
	assert.Equal(t, owner, s.PublicKey())

	signed, err := s.SignAll(context.Background(), txs)
	require.NoError(t, err)
	assert.Len(t, signed, 3)
	m.AssertNumberOfCalls(t, "SignAllTransactions", 1)
	m.AssertExpectations(t)
}

func TestAdapterSigner_PassesRejectionThrough(t *testing.T) {
	owner := newTestWallet(t).PublicKey
	rejected := errors.New("User rejected the request.")

	m := new(MockAdapter)
	m.On("PublicKey").Return(owner, true)
	m.On("SignAllTransactions", mock.Anything, mock.Anything).Return(nil, rejected)

	_, err := NewAdapterSigner(m).SignAll(context.Background(), []*solana.Transaction{unsignedTx(t, owner)})
	assert.ErrorIs(t, err, rejected)
}

func TestAdapterSigner_DisconnectedSkipsWallet(t *testing.T) {
	m := new(MockAdapter)
	m.On("PublicKey").Return(solana.PublicKey{}, false)

	_, err := NewAdapterSigner(m).SignAll(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	m.AssertNotCalled(t, "SignAllTransactions", mock.Anything, mock.Anything)
}
