// internal/txflow/builder.go
package txflow

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PacketDataSize is the largest serialized transaction the ledger accepts.
const PacketDataSize = 1232

const signatureLength = 64

// TxVersion is the transaction format the wallet prefers.
type TxVersion string

const (
	TxVersionLegacy TxVersion = "legacy"
	TxVersionV0     TxVersion = "v0"
)

// InnerBuilder wraps SDK inner transactions into real ones. One descriptor may
// produce several transactions when its instructions do not fit into one packet.
type InnerBuilder interface {
	BuildInner(ctx context.Context, inner *InnerTransaction) ([]*solana.Transaction, error)
}

// compiled is a transaction ready for signing together with its options.
type compiled struct {
	tx  *solana.Transaction
	opt SingleTxOption
}

// Builder resolves pending payloads into real transactions, preserving input order.
type Builder struct {
	inner InnerBuilder
}

// NewBuilder creates a builder. A nil inner builder means PacketBuilder with legacy transactions.
func NewBuilder(inner InnerBuilder) *Builder {
	if inner == nil {
		inner = PacketBuilder{Version: TxVersionLegacy}
	}
	return &Builder{inner: inner}
}

// Build compiles every pending transaction. Payloads must already carry a blockhash.
func (b *Builder) Build(ctx context.Context, pending []PendingTransaction) ([]compiled, error) {
	out := make([]compiled, 0, len(pending))
	for i, p := range pending {
		switch payload := p.Payload.(type) {
		case *RawInstructions:
			tx, err := compile(payload.Instructions, payload.RecentBlockhash, payload.FeePayer, nil)
			if err != nil {
				return nil, fmt.Errorf("build transaction #%d: %w", i, err)
			}
			if err := partialSign(tx, payload.Signers); err != nil {
				return nil, fmt.Errorf("sign transaction #%d: %w", i, err)
			}
			out = append(out, compiled{tx: tx, opt: p.Options})

		case *InnerTransaction:
			txs, err := b.inner.BuildInner(ctx, payload)
			if err != nil {
				return nil, fmt.Errorf("build inner transaction #%d: %w", i, err)
			}
			for _, tx := range txs {
				out = append(out, compiled{tx: tx, opt: p.Options})
			}

		case *BuiltTransaction:
			if payload.Tx == nil {
				return nil, fmt.Errorf("transaction #%d: %w", i, ErrEmptyPayload)
			}
			if err := partialSign(payload.Tx, payload.Signers); err != nil {
				return nil, fmt.Errorf("sign transaction #%d: %w", i, err)
			}
			out = append(out, compiled{tx: payload.Tx, opt: p.Options})

		default:
			return nil, fmt.Errorf("transaction #%d: unknown payload %T", i, p.Payload)
		}
	}
	return out, nil
}

// PacketBuilder packs the instructions of an inner transaction greedily into as few
// transactions as fit under PacketDataSize.
type PacketBuilder struct {
	Version TxVersion
}

// BuildInner implements InnerBuilder.
func (b PacketBuilder) BuildInner(_ context.Context, inner *InnerTransaction) ([]*solana.Transaction, error) {
	if len(inner.Instructions) == 0 {
		return nil, ErrEmptyPayload
	}

	var tables map[solana.PublicKey]solana.PublicKeySlice
	if b.Version == TxVersionV0 {
		tables = inner.AddressTables
	}

	var (
		out     []*solana.Transaction
		current []solana.Instruction
		last    *solana.Transaction
	)
	for _, ix := range inner.Instructions {
		candidate := append(append([]solana.Instruction(nil), current...), ix)
		tx, err := compile(candidate, inner.RecentBlockhash, inner.FeePayer, tables)
		if err != nil {
			return nil, err
		}
		size, err := serializedSize(tx)
		if err != nil {
			return nil, err
		}
		if size <= PacketDataSize {
			current, last = candidate, tx
			continue
		}
		if len(current) == 0 {
			return nil, fmt.Errorf("%w: %d bytes", ErrTransactionTooLarge, size)
		}

		out = append(out, last)
		current = []solana.Instruction{ix}
		last, err = compile(current, inner.RecentBlockhash, inner.FeePayer, tables)
		if err != nil {
			return nil, err
		}
		if size, err = serializedSize(last); err != nil {
			return nil, err
		} else if size > PacketDataSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrTransactionTooLarge, size)
		}
	}
	out = append(out, last)

	for _, tx := range out {
		if err := partialSign(tx, inner.Signers); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func compile(ixs []solana.Instruction, hash solana.Hash, payer solana.PublicKey, tables map[solana.PublicKey]solana.PublicKeySlice) (*solana.Transaction, error) {
	if len(ixs) == 0 {
		return nil, ErrEmptyPayload
	}
	opts := []solana.TransactionOption{solana.TransactionPayer(payer)}
	if len(tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}
	return solana.NewTransaction(ixs, hash, opts...)
}

// serializedSize is the wire size once every required signature is present.
func serializedSize(tx *solana.Transaction) (int, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	return shortVecLen(n) + n*signatureLength + len(msg), nil
}

func shortVecLen(n int) int {
	size := 1
	for n >= 0x80 {
		n >>= 7
		size++
	}
	return size
}

// partialSign signs with the keys that the message requires and leaves the other slots untouched.
func partialSign(tx *solana.Transaction, signers []solana.PrivateKey) error {
	if len(signers) == 0 {
		return nil
	}
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	return err
}

// missingSignature reports whether any required signature slot is still all zero.
func missingSignature(tx *solana.Transaction) bool {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		return true
	}
	for _, sig := range tx.Signatures[:required] {
		if sig == (solana.Signature{}) {
			return true
		}
	}
	return false
}
