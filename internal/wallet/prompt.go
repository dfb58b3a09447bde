// internal/wallet/prompt.go
package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrRejected возвращается, когда пользователь отклонил подпись.
var ErrRejected = errors.New("signature request rejected")

// PromptAdapter - кошелёк в терминале: спрашивает подтверждение и подписывает локальным ключом.
type PromptAdapter struct {
	wallet      *Wallet
	in          *bufio.Reader
	out         io.Writer
	autoApprove bool
}

// NewPromptAdapter создаёт адаптер. autoApprove пропускает вопрос.
func NewPromptAdapter(w *Wallet, in io.Reader, out io.Writer, autoApprove bool) *PromptAdapter {
	return &PromptAdapter{wallet: w, in: bufio.NewReader(in), out: out, autoApprove: autoApprove}
}

func (a *PromptAdapter) PublicKey() (solana.PublicKey, bool) {
	if a.wallet == nil {
		return solana.PublicKey{}, false
	}
	return a.wallet.PublicKey, true
}

// SignAllTransactions спрашивает один раз на весь набор транзакций.
func (a *PromptAdapter) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	if !a.autoApprove {
		ok, err := a.confirm(ctx, len(txs))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRejected
		}
	}
	for _, tx := range txs {
		if err := a.wallet.SignTransaction(tx); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

func (a *PromptAdapter) confirm(ctx context.Context, n int) (bool, error) {
	fmt.Fprintf(a.out, "Approve %d transaction(s) from %s? [y/N] ", n, a.wallet.PublicKey)

	answer := make(chan string, 1)
	go func() {
		line, _ := a.in.ReadString('\n')
		answer <- line
	}()

	select {
	case line := <-answer:
		line = strings.ToLower(strings.TrimSpace(line))
		return line == "y" || line == "yes", nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
