// internal/notify/console.go
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/solana-txflow/internal/events"
)

var (
	green  = lipgloss.Color("#2AFFAA")
	red    = lipgloss.Color("#FF5555")
	yellow = lipgloss.Color("#FFB500")
	cyan   = lipgloss.Color("#00E5FF")
	muted  = lipgloss.Color("#6C7280")
)

// ConsoleRenderer prints notification events as styled lines.
type ConsoleRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	subs []events.Subscription

	title   lipgloss.Style
	detail  lipgloss.Style
	byState map[string]lipgloss.Style
	byLevel map[events.Level]lipgloss.Style
}

// NewConsoleRenderer subscribes a renderer writing to out on bus.
func NewConsoleRenderer(bus *events.Bus, out io.Writer) *ConsoleRenderer {
	base := lipgloss.NewStyle().Bold(true)
	r := &ConsoleRenderer{
		out:    out,
		title:  lipgloss.NewStyle().Bold(true),
		detail: lipgloss.NewStyle().Foreground(muted),
		byState: map[string]lipgloss.Style{
			string(StatusQueued):     base.Foreground(muted),
			string(StatusProcessing): base.Foreground(cyan),
			string(StatusSuccess):    base.Foreground(green),
			string(StatusError):      base.Foreground(red),
			string(StatusAborted):    base.Foreground(yellow),
		},
		byLevel: map[events.Level]lipgloss.Style{
			events.LevelSuccess: base.Foreground(green),
			events.LevelWarning: base.Foreground(yellow),
			events.LevelError:   base.Foreground(red),
		},
	}

	r.subs = append(r.subs,
		events.On(bus, events.TxBatchLogged, r.onBatch),
		events.On(bus, events.TxItemChanged, r.onItem),
		events.On(bus, events.MessageLogged, r.onMessage),
	)
	return r
}

// Close unsubscribes the renderer.
func (r *ConsoleRenderer) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
}

func (r *ConsoleRenderer) onBatch(_ context.Context, e events.TxBatchLoggedEvent) error {
	for _, item := range e.Items {
		if err := r.printItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConsoleRenderer) onItem(_ context.Context, e events.TxItemChangedEvent) error {
	return r.printItem(e.Item)
}

func (r *ConsoleRenderer) onMessage(_ context.Context, e events.MessageLoggedEvent) error {
	line := fmt.Sprintf("%s %s", r.byLevel[e.Level].Render(string(e.Level)), r.title.Render(e.Title))
	if e.Description != "" {
		line += " " + r.detail.Render(e.Description)
	}
	return r.println(line)
}

func (r *ConsoleRenderer) printItem(item events.TxItem) error {
	line := fmt.Sprintf("[%d] %-10s %s", item.Index+1, r.byState[item.Status].Render(item.Status), r.title.Render(item.Title))
	if item.TxID != "" {
		line += " " + r.detail.Render(item.TxID)
	}
	if item.Error != "" {
		line += " " + r.byState[string(StatusError)].Render(item.Error)
	}
	return r.println(line)
}

func (r *ConsoleRenderer) println(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.out, line)
	return err
}
