package router

import (
	"context"
	"strings"

	"github.com/nidhogg/holiday-agent/internal/command"
	"github.com/nidhogg/holiday-agent/internal/gateway"
	"go.uber.org/zap"
)

// Sender delivers a reply to a chat platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// MessageRouter turns inbound chat messages into commands or searches.
type MessageRouter struct {
	sender    Sender
	tasks     command.Tasks
	commands  *command.Registry
	statusURL func(id string) string
	logger    *zap.Logger
}

// New creates a new MessageRouter. statusURL may be nil.
func New(sender Sender, tasks command.Tasks, commands *command.Registry,
	statusURL func(id string) string, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		sender:    sender,
		tasks:     tasks,
		commands:  commands,
		statusURL: statusURL,
		logger:    logger,
	}
}

// Handle routes one message. Slash commands go to the registry; anything
// else starts a free-text search. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx := context.Background()
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}
	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	cc := &command.CommandContext{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
		ReplyTo:   msg.ReplyTo,
	}

	if strings.HasPrefix(content, "/") {
		result, err := mr.commands.Dispatch(ctx, content, cc)
		if err != nil {
			mr.logger.Error("command dispatch error", zap.Error(err))
			mr.sendReply(ctx, msg, "Fehler: "+err.Error())
			return
		}
		mr.sendReply(ctx, msg, result.Content)
		return
	}

	result := command.Submit(mr.tasks, mr.statusURL, content, cc)
	mr.sendReply(ctx, msg, result.Content)
}

// sendReply sends a text reply back to the originating platform/channel.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	err := mr.sender.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}
