// internal/history/types.go
package history

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxEntries is how many entries are kept per wallet.
const DefaultMaxEntries = 19

// ErrEntryNotFound is returned by Update for an unknown txid.
var ErrEntryNotFound = errors.New("history entry not found")

// Status of a recorded transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusDropped Status = "dropped"
)

// Terminal reports whether s will not change anymore.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFail || s == StatusDropped
}

// Entry is one recorded transaction.
type Entry struct {
	TxID        string    `json:"txid"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	BlockSlot   uint64    `json:"blockSlot,omitempty"`
	Time        time.Time `json:"time"`
}

// Patch changes an existing entry. Zero fields are left as they are.
type Patch struct {
	Status    Status
	BlockSlot uint64
}

func (p Patch) apply(e *Entry) {
	if p.Status != "" {
		e.Status = p.Status
	}
	if p.BlockSlot != 0 {
		e.BlockSlot = p.BlockSlot
	}
}

// Snapshot is the persisted layout: owner address -> txid -> entry.
type Snapshot map[string]map[string]Entry

// Store is the cold copy of the history.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// OwnedEntry is an entry together with the wallet it belongs to.
type OwnedEntry struct {
	Owner string
	Entry
}
