// internal/events/bus_test.go
package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T, size int) *Bus {
	t.Helper()
	b := NewBus(zap.NewNop(), size)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Shutdown(ctx)
	})
	return b
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	b := newTestBus(t, 0)

	var (
		mu  sync.Mutex
		got []string
	)
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}
	On(b, TxBatchLogged, func(_ context.Context, e TxBatchLoggedEvent) error {
		record("batch:" + e.BatchID)
		return nil
	})
	On(b, TxItemChanged, func(_ context.Context, e TxItemChangedEvent) error {
		record("item:" + e.Item.Status)
		return nil
	})

	require.NoError(t, b.Publish(TxBatchLoggedEvent{BaseEvent: NewBase(TxBatchLogged), BatchID: "b1"}))
	require.NoError(t, b.Publish(TxItemChangedEvent{BaseEvent: NewBase(TxItemChanged), Item: TxItem{Status: "processing"}}))
	require.NoError(t, b.Publish(TxItemChangedEvent{BaseEvent: NewBase(TxItemChanged), Item: TxItem{Status: "success"}}))
	require.NoError(t, b.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"batch:b1", "item:processing", "item:success"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := newTestBus(t, 0)
	calls := 0
	sub := b.SubscribeFunc(MessageLogged, func(context.Context, Event) error {
		calls++
		return nil
	})

	ctx := context.Background()
	require.NoError(t, b.PublishSync(ctx, MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}))
	sub.Unsubscribe()
	require.NoError(t, b.PublishSync(ctx, MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}))
	assert.Equal(t, 1, calls)
}

func TestBus_PublishSyncJoinsHandlerErrors(t *testing.T) {
	b := newTestBus(t, 0)
	first, second := errors.New("first"), errors.New("second")
	b.SubscribeFunc(MessageLogged, func(context.Context, Event) error { return first })
	b.SubscribeFunc(MessageLogged, func(context.Context, Event) error { return nil })
	b.SubscribeFunc(MessageLogged, func(context.Context, Event) error { return second })

	err := b.PublishSync(context.Background(), MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)})
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestBus_OnIgnoresOtherPayloads(t *testing.T) {
	b := newTestBus(t, 0)
	called := false
	On(b, MessageLogged, func(context.Context, MessageLoggedEvent) error {
		called = true
		return nil
	})

	require.NoError(t, b.PublishSync(context.Background(), BaseEvent{EventType: MessageLogged}))
	assert.False(t, called)
}

func TestBus_FullBufferDrops(t *testing.T) {
	b := newTestBus(t, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	b.SubscribeFunc(MessageLogged, func(context.Context, Event) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	require.NoError(t, b.Publish(MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}))
	<-started
	require.NoError(t, b.Publish(MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}))
	assert.ErrorIs(t, b.Publish(MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}), ErrBufferFull)
	close(release)
}

func TestBus_ShutdownDrainsQueue(t *testing.T) {
	b := NewBus(zap.NewNop(), 16)
	var (
		mu    sync.Mutex
		count int
	)
	b.SubscribeFunc(MessageLogged, func(context.Context, Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}))
	}

	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, 5, count)
	assert.ErrorIs(t, b.Publish(MessageLoggedEvent{BaseEvent: NewBase(MessageLogged)}), ErrBusClosed)
}
