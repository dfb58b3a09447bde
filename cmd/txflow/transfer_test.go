// cmd/txflow/transfer_test.go
package main

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-txflow/internal/txflow"
)

func TestParseRecipients(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	got, err := parseRecipients([]string{a.String(), " " + b.String()})
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{a, b}, got)

	_, err = parseRecipients([]string{"not-a-key"})
	assert.Error(t, err)
}

func TestTransferBuild_OneTransactionPerRecipient(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	recipients := []solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()}

	c := txflow.NewCollector(owner)
	err := transferBuild(recipients, 5000, 200_000, 1000)(context.Background(), c, txflow.Base{Owner: owner})
	require.NoError(t, err)

	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "Transfer 1/2", pending[0].Options.Title)
	assert.Equal(t, "Transfer 2/2", pending[1].Options.Title)

	for i, p := range pending {
		raw, ok := p.Payload.(*txflow.RawInstructions)
		require.True(t, ok)
		// limit, price, transfer
		require.Len(t, raw.Instructions, 3)
		assert.Equal(t, solana.SystemProgramID, raw.Instructions[2].ProgramID())
		assert.Contains(t, p.Options.Description, recipients[i].String())
	}
}

func TestLoadWallet_NoKey(t *testing.T) {
	t.Setenv("TXFLOW_PRIVATE_KEY", "")
	_, err := loadWallet("")
	assert.Error(t, err)
}
