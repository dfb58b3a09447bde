// internal/notify/notify.go
package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/events"
)

// TxStatus is the displayed state of a transaction.
type TxStatus string

const (
	StatusQueued     TxStatus = "queued"
	StatusProcessing TxStatus = "processing"
	StatusSuccess    TxStatus = "success"
	StatusError      TxStatus = "error"
	StatusAborted    TxStatus = "aborted"
)

// TxInfo describes one transaction of a logged batch.
type TxInfo struct {
	ID          uuid.UUID
	Index       int
	TxID        string
	Title       string
	Description string
	Status      TxStatus
	Err         string
}

// Patch changes displayed transactions. Empty fields are left as they are.
type Patch struct {
	TxID   string
	Status TxStatus
	Err    string
}

func (p Patch) apply(info *TxInfo) {
	if p.TxID != "" {
		info.TxID = p.TxID
	}
	if p.Status != "" {
		info.Status = p.Status
	}
	if p.Err != "" {
		info.Err = p.Err
	}
}

// Matcher selects the transactions a patch applies to.
type Matcher func(TxInfo) bool

// ByIndex matches the transaction at position i of the batch.
func ByIndex(i int) Matcher {
	return func(info TxInfo) bool { return info.Index == i }
}

// ByTxID matches the transaction with the given txid.
func ByTxID(txid string) Matcher {
	return func(info TxInfo) bool { return info.TxID == txid }
}

// Controller updates the displayed state of a logged batch.
type Controller interface {
	ChangeItemInfo(patch Patch, match Matcher)
}

// Notifier is the user notification surface.
type Notifier interface {
	LogTxid(infos []TxInfo) Controller
	LogError(title, description string)
	LogWarning(title, description string)
	LogSuccess(title, description string)
}

// BusNotifier publishes notifications as events on the bus.
type BusNotifier struct {
	bus    *events.Bus
	logger *zap.Logger
}

// NewBusNotifier creates a notifier over bus.
func NewBusNotifier(bus *events.Bus, logger *zap.Logger) *BusNotifier {
	return &BusNotifier{bus: bus, logger: logger.Named("notify")}
}

// LogTxid publishes the batch and returns its controller. Infos without an ID get one.
func (n *BusNotifier) LogTxid(infos []TxInfo) Controller {
	c := &busController{
		notifier: n,
		batchID:  uuid.NewString(),
		items:    make([]TxInfo, len(infos)),
	}
	copy(c.items, infos)

	items := make([]events.TxItem, len(c.items))
	for i := range c.items {
		if c.items[i].ID == uuid.Nil {
			c.items[i].ID = uuid.New()
		}
		items[i] = toItem(c.items[i])
	}

	n.publish(events.TxBatchLoggedEvent{
		BaseEvent: events.NewBase(events.TxBatchLogged),
		BatchID:   c.batchID,
		Items:     items,
	})
	return c
}

func (n *BusNotifier) LogError(title, description string) {
	n.message(events.LevelError, title, description)
}

func (n *BusNotifier) LogWarning(title, description string) {
	n.message(events.LevelWarning, title, description)
}

func (n *BusNotifier) LogSuccess(title, description string) {
	n.message(events.LevelSuccess, title, description)
}

func (n *BusNotifier) message(level events.Level, title, description string) {
	n.publish(events.MessageLoggedEvent{
		BaseEvent:   events.NewBase(events.MessageLogged),
		Level:       level,
		Title:       title,
		Description: description,
	})
}

func (n *BusNotifier) publish(e events.Event) {
	if err := n.bus.Publish(e); err != nil {
		n.logger.Warn("Notification dropped",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

type busController struct {
	notifier *BusNotifier
	batchID  string

	mu    sync.Mutex
	items []TxInfo
}

func (c *busController) ChangeItemInfo(patch Patch, match Matcher) {
	c.mu.Lock()
	var changed []events.TxItem
	for i := range c.items {
		if match == nil || match(c.items[i]) {
			patch.apply(&c.items[i])
			changed = append(changed, toItem(c.items[i]))
		}
	}
	c.mu.Unlock()

	for _, item := range changed {
		c.notifier.publish(events.TxItemChangedEvent{
			BaseEvent: events.NewBase(events.TxItemChanged),
			BatchID:   c.batchID,
			Item:      item,
		})
	}
}

func toItem(info TxInfo) events.TxItem {
	return events.TxItem{
		ID:          info.ID.String(),
		Index:       info.Index,
		TxID:        info.TxID,
		Title:       info.Title,
		Description: info.Description,
		Status:      string(info.Status),
		Error:       info.Err,
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) LogTxid([]TxInfo) Controller { return nopController{} }
func (Nop) LogError(string, string)     {}
func (Nop) LogWarning(string, string)   {}
func (Nop) LogSuccess(string, string)   {}

type nopController struct{}

func (nopController) ChangeItemInfo(Patch, Matcher) {}
