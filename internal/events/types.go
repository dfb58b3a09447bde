// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Transaction notification events
	TxBatchLogged EventType = "tx.batch_logged"
	TxItemChanged EventType = "tx.item_changed"

	// Ambient user messages
	MessageLogged EventType = "message.logged"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event header with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// TxItem is the displayed state of one transaction of a batch.
type TxItem struct {
	ID          string
	Index       int
	TxID        string
	Title       string
	Description string
	Status      string
	Error       string
}

// TxBatchLoggedEvent is emitted when an invocation registers its transactions for display.
type TxBatchLoggedEvent struct {
	BaseEvent
	BatchID string
	Items   []TxItem
}

// TxItemChangedEvent is emitted when one displayed transaction changes state.
type TxItemChangedEvent struct {
	BaseEvent
	BatchID string
	Item    TxItem
}

// Level of an ambient message.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// MessageLoggedEvent is a terminal or ambient message for the user.
type MessageLoggedEvent struct {
	BaseEvent
	Level       Level
	Title       string
	Description string
}
