// internal/history/recorder_test.go
package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func entryAt(id string, minute int) Entry {
	return Entry{TxID: id, Title: "Swap", Time: epoch.Add(time.Duration(minute) * time.Minute)}
}

func TestRecorder_KeepsNewestPerWallet(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil, 0, zap.NewNop())

	require.NoError(t, r.Record(ctx, "other", entryAt("keep", 0)))
	for i := 0; i < 25; i++ {
		require.NoError(t, r.Record(ctx, "owner", entryAt(fmt.Sprintf("tx-%02d", i), i)))
	}

	list := r.List("owner")
	require.Len(t, list, DefaultMaxEntries)
	assert.Equal(t, "tx-24", list[0].TxID)
	assert.Equal(t, "tx-06", list[len(list)-1].TxID)
	assert.Equal(t, StatusPending, list[0].Status)

	other := r.List("other")
	require.Len(t, other, 1)
	assert.Equal(t, "keep", other[0].TxID)
}

func TestRecorder_RecordReplacesSameTxID(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil, 3, zap.NewNop())

	require.NoError(t, r.Record(ctx, "owner", entryAt("a", 0)))
	require.NoError(t, r.Record(ctx, "owner", entryAt("b", 1)))
	again := entryAt("a", 2)
	again.Status = StatusSuccess
	require.NoError(t, r.Record(ctx, "owner", again))

	list := r.List("owner")
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].TxID)
	assert.Equal(t, StatusSuccess, list[0].Status)

	assert.Error(t, r.Record(ctx, "owner", Entry{}))
}

func TestRecorder_Update(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewRecorder(store, 0, zap.NewNop())
	require.NoError(t, r.Record(ctx, "owner", entryAt("a", 0)))

	require.NoError(t, r.Update(ctx, "owner", "a", Patch{Status: StatusSuccess, BlockSlot: 77}))
	e, ok := r.Get("owner", "a")
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, uint64(77), e.BlockSlot)
	assert.Equal(t, "Swap", e.Title, "untouched fields survive the patch")

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, snap["owner"]["a"].Status, "the cold copy follows memory")

	err = r.Update(ctx, "owner", "missing", Patch{Status: StatusFail})
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRecorder_Pending(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil, 0, zap.NewNop())
	require.NoError(t, r.Record(ctx, "w1", entryAt("a", 0)))
	require.NoError(t, r.Record(ctx, "w2", entryAt("b", 1)))
	require.NoError(t, r.Update(ctx, "w1", "a", Patch{Status: StatusFail}))

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "w2", pending[0].Owner)
	assert.Equal(t, "b", pending[0].TxID)
}

func TestRecorder_LabeledInfersTitles(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil, 0, zap.NewNop())

	cases := map[string]string{
		"a": "Add liquidity to SOL-USDC",
		"b": "Unstake 10 RAY",
		"c": "Stake 10 RAY",
		"d": "Harvest rewards",
		"e": "Swap 1 SOL for 150 USDC",
		"f": "Something else",
	}
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, r.Record(ctx, "owner", Entry{TxID: id, Description: cases[id], Time: epoch.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, r.Record(ctx, "owner", Entry{TxID: "g", Title: "Custom", Description: "swap", Time: epoch.Add(time.Minute)}))

	titles := map[string]string{}
	for _, e := range r.Labeled("owner") {
		titles[e.TxID] = e.Title
	}
	assert.Equal(t, map[string]string{
		"a": "Add Liquidity",
		"b": "Unstake",
		"c": "Stake",
		"d": "Harvest",
		"e": "Swap",
		"f": "",
		"g": "Custom",
	}, titles)

	for _, e := range r.List("owner") {
		if e.TxID != "g" {
			assert.Empty(t, e.Title, "labeling does not modify the stored entries")
		}
	}
}

func TestRecorder_RestoreAndSync(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, Snapshot{
		"owner": {
			"old":    entryAt("old", 0),
			"shared": entryAt("shared", 1),
		},
	}))

	restored := NewRecorder(store, 0, zap.NewNop())
	require.NoError(t, restored.Restore(ctx))
	list := restored.List("owner")
	require.Len(t, list, 2)
	assert.Equal(t, "shared", list[0].TxID)

	r := NewRecorder(store, 0, zap.NewNop())
	shared := entryAt("shared", 1)
	shared.Status = StatusSuccess
	r.entries["owner"] = []Entry{entryAt("fresh", 5), shared}

	require.NoError(t, r.Sync(ctx))
	list = r.List("owner")
	require.Len(t, list, 3)
	assert.Equal(t, []string{"fresh", "shared", "old"}, []string{list[0].TxID, list[1].TxID, list[2].TxID})
	assert.Equal(t, StatusSuccess, list[1].Status, "memory wins over the cold copy")

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap["owner"], 3)
}

type failingStore struct{ err error }

func (s failingStore) Load(context.Context) (Snapshot, error) { return nil, s.err }
func (s failingStore) Save(context.Context, Snapshot) error    { return s.err }

func TestRecorder_StoreFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store down")
	r := NewRecorder(failingStore{err: boom}, 0, zap.NewNop())

	err := r.Record(ctx, "owner", entryAt("a", 0))
	assert.ErrorIs(t, err, boom)
	_, ok := r.Get("owner", "a")
	assert.True(t, ok)

	assert.ErrorIs(t, r.Restore(ctx), boom)
}
