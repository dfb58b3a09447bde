// internal/txflow/payload.go
package txflow

import (
	"github.com/gagliardetto/solana-go"
)

// Payload is one of RawInstructions, InnerTransaction or BuiltTransaction.
type Payload interface {
	isPayload()
	blockhash() solana.Hash
	stamp(hash solana.Hash, payer solana.PublicKey)
}

// RawInstructions are instruction pieces spawned by a Collector.
type RawInstructions struct {
	Instructions    []solana.Instruction
	Signers         []solana.PrivateKey
	FeePayer        solana.PublicKey
	RecentBlockhash solana.Hash
}

// InnerTransaction is an SDK produced instruction bundle without a transaction envelope.
// InstructionTypes tags every instruction and is what tells it apart from a plain transaction.
type InnerTransaction struct {
	Instructions     []solana.Instruction
	InstructionTypes []string
	Signers          []solana.PrivateKey
	// AddressTables are used when the wallet prefers versioned transactions.
	AddressTables   map[solana.PublicKey]solana.PublicKeySlice
	FeePayer        solana.PublicKey
	RecentBlockhash solana.Hash
}

// BuiltTransaction is a transaction that was already compiled by feature code.
type BuiltTransaction struct {
	Tx      *solana.Transaction
	Signers []solana.PrivateKey
}

func (*RawInstructions) isPayload()  {}
func (*InnerTransaction) isPayload() {}
func (*BuiltTransaction) isPayload() {}

func (p *RawInstructions) blockhash() solana.Hash  { return p.RecentBlockhash }
func (p *InnerTransaction) blockhash() solana.Hash { return p.RecentBlockhash }
func (p *BuiltTransaction) blockhash() solana.Hash {
	if p.Tx == nil {
		return solana.Hash{}
	}
	return p.Tx.Message.RecentBlockhash
}

func (p *RawInstructions) stamp(hash solana.Hash, payer solana.PublicKey) {
	if p.RecentBlockhash == (solana.Hash{}) {
		p.RecentBlockhash = hash
	}
	if p.FeePayer.IsZero() {
		p.FeePayer = payer
	}
}

func (p *InnerTransaction) stamp(hash solana.Hash, payer solana.PublicKey) {
	if p.RecentBlockhash == (solana.Hash{}) {
		p.RecentBlockhash = hash
	}
	if p.FeePayer.IsZero() {
		p.FeePayer = payer
	}
}

// A compiled transaction already carries its fee payer in the account keys.
func (p *BuiltTransaction) stamp(hash solana.Hash, _ solana.PublicKey) {
	if p.Tx != nil && p.Tx.Message.RecentBlockhash == (solana.Hash{}) {
		p.Tx.Message.RecentBlockhash = hash
	}
}

// PendingTransaction is a unit of work registered on a Collector.
type PendingTransaction struct {
	Payload Payload
	Options SingleTxOption
}
