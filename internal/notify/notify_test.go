// internal/notify/notify_test.go
package notify

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/events"
)

type capture struct {
	mu      sync.Mutex
	batches []events.TxBatchLoggedEvent
	changes []events.TxItemChangedEvent
	msgs    []events.MessageLoggedEvent
}

func newCapture(b *events.Bus) *capture {
	c := &capture{}
	events.On(b, events.TxBatchLogged, func(_ context.Context, e events.TxBatchLoggedEvent) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.batches = append(c.batches, e)
		return nil
	})
	events.On(b, events.TxItemChanged, func(_ context.Context, e events.TxItemChangedEvent) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.changes = append(c.changes, e)
		return nil
	})
	events.On(b, events.MessageLogged, func(_ context.Context, e events.MessageLoggedEvent) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.msgs = append(c.msgs, e)
		return nil
	})
	return c
}

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	b := events.NewBus(zap.NewNop(), 64)
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	return b
}

func TestBusNotifier_BatchAndChanges(t *testing.T) {
	b := newBus(t)
	c := newCapture(b)
	n := NewBusNotifier(b, zap.NewNop())

	fixed := uuid.New()
	ctrl := n.LogTxid([]TxInfo{
		{ID: fixed, Index: 0, Title: "Approve", Status: StatusQueued},
		{Index: 1, Title: "Swap", Status: StatusQueued},
	})
	ctrl.ChangeItemInfo(Patch{TxID: "sig-1", Status: StatusProcessing}, ByIndex(1))
	ctrl.ChangeItemInfo(Patch{Status: StatusError, Err: "slippage"}, ByTxID("sig-1"))
	ctrl.ChangeItemInfo(Patch{Status: StatusAborted}, ByTxID("unknown"))
	require.NoError(t, b.Flush(context.Background()))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.batches, 1)
	batch := c.batches[0]
	require.Len(t, batch.Items, 2)
	assert.Equal(t, fixed.String(), batch.Items[0].ID)
	assert.NotEqual(t, uuid.Nil.String(), batch.Items[1].ID, "missing ids are generated")

	require.Len(t, c.changes, 2)
	assert.Equal(t, batch.BatchID, c.changes[0].BatchID)
	assert.Equal(t, "processing", c.changes[0].Item.Status)
	assert.Equal(t, "sig-1", c.changes[0].Item.TxID)
	assert.Equal(t, "error", c.changes[1].Item.Status)
	assert.Equal(t, "slippage", c.changes[1].Item.Error)
	assert.Equal(t, "Swap", c.changes[1].Item.Title)
}

func TestBusNotifier_Messages(t *testing.T) {
	b := newBus(t)
	c := newCapture(b)
	n := NewBusNotifier(b, zap.NewNop())

	n.LogSuccess("Done", "all good")
	n.LogWarning("Careful", "")
	n.LogError("Transaction failed", "insufficient funds")
	require.NoError(t, b.Flush(context.Background()))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.msgs, 3)
	assert.Equal(t, events.LevelSuccess, c.msgs[0].Level)
	assert.Equal(t, events.LevelWarning, c.msgs[1].Level)
	assert.Equal(t, events.LevelError, c.msgs[2].Level)
	assert.Equal(t, "insufficient funds", c.msgs[2].Description)
}

func TestConsoleRenderer(t *testing.T) {
	b := newBus(t)
	var out bytes.Buffer
	r := NewConsoleRenderer(b, &out)
	defer r.Close()

	n := NewBusNotifier(b, zap.NewNop())
	ctrl := n.LogTxid([]TxInfo{{Index: 0, Title: "Transfer", Status: StatusQueued}})
	ctrl.ChangeItemInfo(Patch{TxID: "5xyz", Status: StatusSuccess}, ByIndex(0))
	n.LogError("Transaction failed", "blockhash expired")
	require.NoError(t, b.Flush(context.Background()))

	text := out.String()
	assert.Contains(t, text, "[1]")
	assert.Contains(t, text, "Transfer")
	assert.Contains(t, text, "5xyz")
	assert.Contains(t, text, "blockhash expired")
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NotPanics(t, func() {
		n.LogTxid(nil).ChangeItemInfo(Patch{Status: StatusSuccess}, nil)
		n.LogError("a", "b")
	})
}
