package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

const slackMessageLimit = 3900

// SlackAdapter talks to Slack over Socket Mode. Replies go into the thread
// of the message that started the search.
type SlackAdapter struct {
	client  *slack.Client
	socket  *socketmode.Client
	handler MessageHandler
	state   connState
	logger  *zap.Logger
}

// NewSlackAdapter creates a Slack adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	return &SlackAdapter{
		client: client,
		socket: socket,
		logger: logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect checks the bot token and starts the Socket Mode event loop.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	auth, err := a.client.AuthTestContext(ctx)
	if err != nil {
		a.state.fail(err)
		return fmt.Errorf("slack auth: %w", err)
	}

	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			a.state.fail(err)
			a.logger.Error("slack socket mode error", zap.Error(err))
		}
	}()
	a.state.up()
	a.logger.Info("slack adapter connected via socket mode", zap.String("bot", auth.User))
	return nil
}

func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	a.socket.Ack(*evt.Request)

	if eventsAPI.Type != slackevents.CallbackEvent {
		return
	}
	if ev, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent); ok {
		// skip bot messages, including our own replies
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		a.handleSlackMessage(ev)
	}
}

func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	if a.handler == nil {
		return
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}

	a.handler(&InboundMessage{
		Platform:  a.Platform(),
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  ev.User,
		Content:   ev.Text,
		Timestamp: time.Now(),
		ReplyTo:   threadTS,
	})
}

// Send posts msg, split into several messages when it is long.
func (a *SlackAdapter) Send(ctx context.Context, msg *OutboundMessage) error {
	for _, part := range Chunk(msg.Content, slackMessageLimit) {
		opts := []slack.MsgOption{slack.MsgOptionText(part, false)}
		if msg.ReplyTo != "" {
			opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
		}
		if _, _, err := a.client.PostMessageContext(ctx, msg.ChannelID, opts...); err != nil {
			a.logger.Error("slack send failed",
				zap.String("channel", msg.ChannelID), zap.Error(err))
			return fmt.Errorf("slack send: %w", err)
		}
	}
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	return a.state.status(a.Platform(), "socket mode")
}

// Close is a no-op; cancelling the Connect context stops the socket.
func (a *SlackAdapter) Close() error {
	return nil
}
