// cmd/txflow/transfer.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-txflow/internal/txflow"
	"github.com/rovshanmuradov/solana-txflow/internal/wallet"
)

var transferFlags struct {
	keyFile     string
	walletsFile string
	walletName  string
	recipients  []string
	lamports    uint64
	mode        string
	units       uint32
	keypairMode bool
	yes         bool
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Send SOL to one or more recipients, one transaction each",
	RunE:  runTransfer,
}

func init() {
	f := transferCmd.Flags()
	f.StringVarP(&transferFlags.keyFile, "key", "k", "", "private key file (base58 or JSON byte array); TXFLOW_PRIVATE_KEY otherwise")
	f.StringVar(&transferFlags.walletsFile, "wallets", "", "CSV file with name,private_key rows")
	f.StringVar(&transferFlags.walletName, "wallet", "", "wallet name to use from --wallets")
	f.StringSliceVar(&transferFlags.recipients, "to", nil, "recipient address, repeatable")
	f.Uint64Var(&transferFlags.lamports, "lamports", 0, "lamports per transfer")
	f.StringVar(&transferFlags.mode, "mode", string(txflow.SendQueue), "queue, queue-all-settle, parallel-unordered or parallel-batched")
	f.Uint32Var(&transferFlags.units, "compute-units", 0, "compute unit limit per transaction")
	f.BoolVar(&transferFlags.keypairMode, "keypair-mode", false, "sign every transaction at send time without a prompt")
	f.BoolVarP(&transferFlags.yes, "yes", "y", false, "approve the signature request without asking")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("lamports")
}

func loadWallet(path string) (*wallet.Wallet, error) {
	if transferFlags.walletsFile != "" {
		wallets, err := wallet.LoadWallets(transferFlags.walletsFile)
		if err != nil {
			return nil, err
		}
		w, ok := wallets[transferFlags.walletName]
		if !ok {
			return nil, fmt.Errorf("wallet %q not found in %s", transferFlags.walletName, transferFlags.walletsFile)
		}
		return w, nil
	}

	encoded := os.Getenv("TXFLOW_PRIVATE_KEY")
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		encoded = string(raw)
	}
	if strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("no private key: pass --key or set TXFLOW_PRIVATE_KEY")
	}
	return wallet.NewWallet(encoded)
}

func parseRecipients(list []string) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(list))
	for _, s := range list {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", s, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

// transferBuild registers one transfer transaction per recipient.
func transferBuild(recipients []solana.PublicKey, lamports uint64, units uint32, price uint64) txflow.BuildFunc {
	return func(_ context.Context, c *txflow.Collector, base txflow.Base) error {
		for i, to := range recipients {
			c.SetComputeBudget(units, price)
			c.AddInstruction(system.NewTransferInstruction(lamports, base.Owner, to).Build())
			c.AddSpawned(txflow.SingleTxOption{
				Title:       fmt.Sprintf("Transfer %d/%d", i+1, len(recipients)),
				Description: fmt.Sprintf("%d lamports to %s", lamports, to),
			})
		}
		return nil
	}
}

func runTransfer(cmd *cobra.Command, _ []string) error {
	w, err := loadWallet(transferFlags.keyFile)
	if err != nil {
		return err
	}
	recipients, err := parseRecipients(transferFlags.recipients)
	if err != nil {
		return err
	}

	var signer txflow.Signer
	if transferFlags.keypairMode {
		signer = wallet.NewKeypairSigner(w)
	} else {
		signer = wallet.NewAdapterSigner(wallet.NewPromptAdapter(w, cmd.InOrStdin(), cmd.OutOrStdout(), transferFlags.yes))
	}
	rt.Handler.SetSigner(signer)

	log := rt.Log.WithWallet(w.String())
	result, err := rt.Handler.Run(cmd.Context(),
		transferBuild(recipients, transferFlags.lamports, transferFlags.units, rt.Config.ComputeUnitPrice),
		txflow.MultiTxOption{
			SendMode:         txflow.SendMode(transferFlags.mode),
			ErrorDescription: solbc.DescribeError,
			OnAllSuccess: func(txids []string) {
				rt.Notifier.LogSuccess("Transfers confirmed", fmt.Sprintf("%d transaction(s)", len(txids)))
			},
		})
	if err != nil {
		return err
	}

	for _, txid := range result.TxIDs {
		fmt.Fprintln(cmd.OutOrStdout(), txid)
	}
	if !result.AllSuccess {
		log.Warn("Not every transfer confirmed", zap.Int("confirmed", len(result.TxIDs)), zap.Int("total", len(recipients)))
		return fmt.Errorf("%d of %d transfers confirmed", len(result.TxIDs), len(recipients))
	}
	return nil
}
