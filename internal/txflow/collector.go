// internal/txflow/collector.go
package txflow

import (
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-txflow/internal/wallet"
)

// Collector accumulates instruction pieces and pending transactions for one invocation.
// It is not safe for concurrent use; a build closure owns it.
type Collector struct {
	owner solana.PublicKey

	front   []solana.Instruction
	end     []solana.Instruction
	signers []solana.PrivateKey

	// associated accounts created by this collector, keyed by mint
	ataCache map[solana.PublicKey]solana.PublicKey

	pending []PendingTransaction
}

// NewCollector creates a collector whose fee payer and ATA owner is owner.
func NewCollector(owner solana.PublicKey) *Collector {
	return &Collector{
		owner:    owner,
		ataCache: make(map[solana.PublicKey]solana.PublicKey),
	}
}

// Owner returns the wallet the collector builds for.
func (c *Collector) Owner() solana.PublicKey {
	return c.owner
}

// AddInstruction appends instructions to the front list.
func (c *Collector) AddInstruction(ixs ...solana.Instruction) {
	c.front = append(c.front, ixs...)
}

// AddEndInstruction appends instructions that run after all front instructions.
// End instructions run in reverse registration order, so a cleanup registered last runs first.
func (c *Collector) AddEndInstruction(ixs ...solana.Instruction) {
	c.end = append(c.end, ixs...)
}

// AddSigner adds keys that must partially sign the spawned transaction.
func (c *Collector) AddSigner(keys ...solana.PrivateKey) {
	c.signers = append(c.signers, keys...)
}

// SetComputeBudget prepends compute unit limit and price instructions.
func (c *Collector) SetComputeBudget(units uint32, microLamportsPerUnit uint64) {
	var ixs []solana.Instruction
	if units > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitLimitInstruction(units).Build())
	}
	if microLamportsPerUnit > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(microLamportsPerUnit).Build())
	}
	c.front = append(ixs, c.front...)
}

// EnsureAssociatedAccount returns the owner's associated token account for mint and
// emits the idempotent create instruction once per mint for the lifetime of the collector.
func (c *Collector) EnsureAssociatedAccount(mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	if ata, ok := c.ataCache[mint]; ok {
		return ata, nil
	}
	if tokenProgram.IsZero() {
		tokenProgram = solana.TokenProgramID
	}
	ata, err := wallet.FindAssociatedTokenAddress(c.owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, err
	}
	c.front = append(c.front,
		wallet.CreateAssociatedTokenAccountIdempotentInstruction(c.owner, c.owner, mint, tokenProgram))
	c.ataCache[mint] = ata
	return ata, nil
}

// SpawnTransaction turns the collected pieces into a payload and resets them.
func (c *Collector) SpawnTransaction() *RawInstructions {
	ixs := make([]solana.Instruction, 0, len(c.front)+len(c.end))
	ixs = append(ixs, c.front...)
	for i := len(c.end) - 1; i >= 0; i-- {
		ixs = append(ixs, c.end[i])
	}
	payload := &RawInstructions{
		Instructions: ixs,
		Signers:      append([]solana.PrivateKey(nil), c.signers...),
	}
	c.front, c.end, c.signers = nil, nil, nil
	return payload
}

// Add registers a pending transaction.
func (c *Collector) Add(payload Payload, opt SingleTxOption) {
	c.pending = append(c.pending, PendingTransaction{Payload: payload, Options: opt})
}

// AddSpawned spawns the collected pieces and registers them as the next transaction.
func (c *Collector) AddSpawned(opt SingleTxOption) {
	c.Add(c.SpawnTransaction(), opt)
}

// AddInner registers a list of SDK inner transactions sharing the same options.
func (c *Collector) AddInner(inner []*InnerTransaction, opt SingleTxOption) {
	for _, it := range inner {
		c.Add(it, opt)
	}
}

// Pending returns the registered transactions in registration order.
func (c *Collector) Pending() []PendingTransaction {
	return c.pending
}
