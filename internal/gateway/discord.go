package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const discordMessageLimit = 1900

// DiscordAdapter talks to Discord through the bot gateway.
type DiscordAdapter struct {
	token   string
	session *discordgo.Session
	handler MessageHandler
	state   connState
	logger  *zap.Logger
}

// NewDiscordAdapter creates a Discord adapter.
func NewDiscordAdapter(token string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:  token,
		logger: logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.state.fail(err)
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		a.state.fail(err)
		return fmt.Errorf("discord open: %w", err)
	}
	a.state.up()

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot is not a member of any server; only direct messages will reach it")
	}
	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if a.handler == nil {
		return
	}

	a.handler(&InboundMessage{
		Platform:  a.Platform(),
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReplyTo:   m.ID,
	})
}

// Send posts msg in chunks. The first chunk replies to ReplyTo if set.
func (a *DiscordAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord send: not connected")
	}
	for i, part := range Chunk(msg.Content, discordMessageLimit) {
		var err error
		if i == 0 && msg.ReplyTo != "" {
			_, err = a.session.ChannelMessageSendReply(msg.ChannelID, part, &discordgo.MessageReference{
				MessageID: msg.ReplyTo,
				ChannelID: msg.ChannelID,
			})
		} else {
			_, err = a.session.ChannelMessageSend(msg.ChannelID, part)
		}
		if err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	details := ""
	if a.session != nil && a.session.State != nil && a.session.State.User != nil {
		details = fmt.Sprintf("bot=%s, guilds=%d", a.session.State.User.Username, len(a.session.State.Guilds))
	}
	return a.state.status(a.Platform(), details)
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}
