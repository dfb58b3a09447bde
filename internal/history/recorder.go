// internal/history/recorder.go
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recorder keeps the most recent transactions of every wallet, newest first.
// Memory is authoritative; every mutation is mirrored to the Store.
type Recorder struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	max     int

	saveMu sync.Mutex
	store  Store
	logger *zap.Logger
}

// NewRecorder creates a recorder. store may be nil; max <= 0 means DefaultMaxEntries.
func NewRecorder(store Store, max int, logger *zap.Logger) *Recorder {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Recorder{
		entries: make(map[string][]Entry),
		max:     max,
		store:   store,
		logger:  logger.Named("history"),
	}
}

// Record adds entry at the head of owner's history, evicting the oldest beyond the limit.
// An entry with an already known txid replaces the old one.
func (r *Recorder) Record(ctx context.Context, owner string, entry Entry) error {
	if entry.TxID == "" {
		return fmt.Errorf("history entry without txid")
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	if entry.Status == "" {
		entry.Status = StatusPending
	}

	r.mu.Lock()
	list := r.entries[owner]
	for i := range list {
		if list[i].TxID == entry.TxID {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	list = append([]Entry{entry}, list...)
	if len(list) > r.max {
		list = list[:r.max]
	}
	r.entries[owner] = list
	r.mu.Unlock()

	r.logger.Debug("Transaction recorded",
		zap.String("owner", owner),
		zap.String("txid", entry.TxID),
		zap.String("status", string(entry.Status)))

	return r.persist(ctx)
}

// Update patches the entry txid of owner.
func (r *Recorder) Update(ctx context.Context, owner, txid string, patch Patch) error {
	r.mu.Lock()
	found := false
	for i := range r.entries[owner] {
		if r.entries[owner][i].TxID == txid {
			patch.apply(&r.entries[owner][i])
			found = true
			break
		}
	}
	r.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, txid)
	}
	return r.persist(ctx)
}

// List returns owner's history, newest first.
func (r *Recorder) List(owner string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries[owner]))
	copy(out, r.entries[owner])
	return out
}

// Get returns one entry of owner.
func (r *Recorder) Get(owner, txid string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries[owner] {
		if e.TxID == txid {
			return e, true
		}
	}
	return Entry{}, false
}

// Pending returns every pending entry across wallets.
func (r *Recorder) Pending() []OwnedEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []OwnedEntry
	for owner, list := range r.entries {
		for _, e := range list {
			if e.Status == StatusPending {
				out = append(out, OwnedEntry{Owner: owner, Entry: e})
			}
		}
	}
	return out
}

// titleKeywords maps description keywords of old untitled entries to titles.
// Longer phrases go first so "add liquidity" wins over a plain match inside it.
var titleKeywords = []struct {
	keyword string
	title   string
}{
	{"add liquidity", "Add Liquidity"},
	{"harvest", "Harvest"},
	{"claim", "Claim"},
	{"unstake", "Unstake"},
	{"stake", "Stake"},
	{"swap", "Swap"},
}

// Labeled returns owner's history with titles inferred for entries recorded without one.
func (r *Recorder) Labeled(owner string) []Entry {
	list := r.List(owner)
	for i := range list {
		if list[i].Title == "" {
			list[i].Title = inferTitle(list[i].Description)
		}
	}
	return list
}

func inferTitle(description string) string {
	d := strings.ToLower(description)
	for _, k := range titleKeywords {
		if strings.Contains(d, k.keyword) {
			return k.title
		}
	}
	return ""
}

// Restore replaces memory with the cold copy.
func (r *Recorder) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	r.mu.Lock()
	r.entries = make(map[string][]Entry, len(snap))
	for owner, byID := range snap {
		r.entries[owner] = r.ring(byID)
	}
	r.mu.Unlock()

	r.logger.Info("History restored", zap.Int("wallets", len(snap)))
	return nil
}

// Sync merges entries of the cold copy that memory does not know and writes the result back.
// Entries known to memory keep their in-memory state.
func (r *Recorder) Sync(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	r.mu.Lock()
	for owner, byID := range snap {
		merged := make(map[string]Entry, len(byID)+len(r.entries[owner]))
		for id, e := range byID {
			merged[id] = e
		}
		for _, e := range r.entries[owner] {
			merged[e.TxID] = e
		}
		r.entries[owner] = r.ring(merged)
	}
	r.mu.Unlock()

	return r.persist(ctx)
}

// ring orders entries newest first and applies the limit.
func (r *Recorder) ring(byID map[string]Entry) []Entry {
	list := make([]Entry, 0, len(byID))
	for id, e := range byID {
		if e.TxID == "" {
			e.TxID = id
		}
		list = append(list, e)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Time.Equal(list[j].Time) {
			return list[i].TxID < list[j].TxID
		}
		return list[i].Time.After(list[j].Time)
	})
	if len(list) > r.max {
		list = list[:r.max]
	}
	return list
}

// Snapshot returns the persisted layout of the current memory state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, len(r.entries))
	for owner, list := range r.entries {
		byID := make(map[string]Entry, len(list))
		for _, e := range list {
			byID[e.TxID] = e
		}
		snap[owner] = byID
	}
	return snap
}

func (r *Recorder) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if err := r.store.Save(ctx, r.Snapshot()); err != nil {
		r.logger.Warn("Failed to save history", zap.Error(err))
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
