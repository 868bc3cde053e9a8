package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nidhogg/holiday-agent/internal/gateway"
	"github.com/nidhogg/holiday-agent/internal/metrics"
	"github.com/nidhogg/holiday-agent/internal/task"
	"go.uber.org/zap"
)

// Sender delivers a message to a chat platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// ChatNotifier sends the finished report, or the failure, back to the chat
// the search came from. Tasks without a caller are skipped.
type ChatNotifier struct {
	sender Sender
	logger *zap.Logger
}

// NewChatNotifier creates a ChatNotifier.
func NewChatNotifier(sender Sender, logger *zap.Logger) *ChatNotifier {
	return &ChatNotifier{sender: sender, logger: logger}
}

func (n *ChatNotifier) Notify(ctx context.Context, t task.Task) error {
	if t.Caller.IsZero() {
		return nil
	}
	err := n.sender.Send(ctx, &gateway.OutboundMessage{
		Platform:  t.Caller.Platform,
		ChannelID: t.Caller.ChannelID,
		ReplyTo:   t.Caller.ReplyTo,
		Content:   Message(t),
	})
	if errors.Is(err, gateway.ErrUnknownPlatform) {
		metrics.IncrementNotification("chat", "skipped")
		n.logger.Warn("no chat adapter for caller, completion not pushed",
			zap.String("task_id", t.ID),
			zap.String("platform", t.Caller.Platform))
		return nil
	}
	if err != nil {
		metrics.IncrementNotification("chat", "error")
		return fmt.Errorf("notify %s/%s: %w", t.Caller.Platform, t.Caller.ChannelID, err)
	}
	metrics.IncrementNotification("chat", "ok")
	n.logger.Debug("completion sent to chat",
		zap.String("task_id", t.ID),
		zap.String("platform", t.Caller.Platform))
	return nil
}

// Message is the chat text for a finished task.
func Message(t task.Task) string {
	if t.Status == task.StatusFailed {
		return "Die Suche ist fehlgeschlagen: " + t.Error
	}
	if t.Report == nil {
		return "Die Suche ist abgeschlossen."
	}
	if len(t.Warnings) == 0 {
		return t.Report.Text
	}
	var sb strings.Builder
	sb.WriteString(t.Report.Text)
	sb.WriteString("\n\nHinweise:\n")
	for _, w := range t.Warnings {
		sb.WriteString("- ")
		sb.WriteString(w)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
