// Package notify sends run-completion messages (collection, sync, backtest
// and paper summaries) to chat channels. Messages are filtered by event so
// operators receive only what they subscribe to.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Events emitted by the app modes.
const (
	EventCollect  = "collect.completed"
	EventImport   = "import.completed"
	EventSync     = "sync.completed"
	EventBacktest = "backtest.completed"
	EventPaper    = "paper.stopped"
	EventError    = "run.failed"
)

// Sender delivers one message to a channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every sender. A nil *Notifier is valid and
// drops everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title and the rendered fields when event is subscribed.
// Sender failures are logged and joined into the returned error; one
// failing channel does not block the others.
func (n *Notifier) Notify(ctx context.Context, event, title string, fields map[string]any) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	message := Format(fields)
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Format renders fields as sorted "key: value" lines.
func Format(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch v := fields[k].(type) {
		case float64:
			fmt.Fprintf(&b, "%s: %.4f", k, v)
		default:
			fmt.Fprintf(&b, "%s: %v", k, v)
		}
	}
	return b.String()
}
