package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const telegramMessageLimit = 4000

// TelegramAdapter polls the Telegram Bot API for messages.
type TelegramAdapter struct {
	token   string
	api     *tgbotapi.BotAPI
	handler MessageHandler
	limiter *rate.Limiter
	state   connState
	logger  *zap.Logger
}

// NewTelegramAdapter creates a Telegram adapter. Sends are limited to
// Telegram's global bot limit of about 30 messages per second.
func NewTelegramAdapter(token string, logger *zap.Logger) *TelegramAdapter {
	return &TelegramAdapter{
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(25), 5),
		logger:  logger,
	}
}

func (a *TelegramAdapter) Platform() string { return "telegram" }

func (a *TelegramAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect authorizes the bot and starts long polling until ctx ends.
func (a *TelegramAdapter) Connect(ctx context.Context) error {
	httpClient := &http.Client{Timeout: 90 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(a.token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		a.state.fail(err)
		return fmt.Errorf("telegram auth: %w", err)
	}
	a.api = api

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				api.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				a.handleUpdate(upd)
			}
		}
	}()

	a.state.up()
	a.logger.Info("telegram adapter connected", zap.String("bot", api.Self.UserName))
	return nil
}

func (a *TelegramAdapter) handleUpdate(upd tgbotapi.Update) {
	m := upd.Message
	if m == nil || m.Text == "" || a.handler == nil {
		return
	}
	if m.From != nil && m.From.IsBot {
		return
	}

	msg := &InboundMessage{
		Platform:  a.Platform(),
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		Content:   m.Text,
		Timestamp: m.Time(),
		ReplyTo:   strconv.Itoa(m.MessageID),
	}
	if m.From != nil {
		msg.UserID = strconv.FormatInt(m.From.ID, 10)
		msg.UserName = m.From.UserName
		if msg.UserName == "" {
			msg.UserName = m.From.FirstName
		}
	}
	a.handler(msg)
}

// Send delivers msg as plain text, split at Telegram's message size.
func (a *TelegramAdapter) Send(ctx context.Context, msg *OutboundMessage) error {
	if a.api == nil {
		return fmt.Errorf("telegram send: not connected")
	}
	chatID, err := strconv.ParseInt(msg.ChannelID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram send: bad chat id %q: %w", msg.ChannelID, err)
	}
	replyTo, _ := strconv.Atoi(msg.ReplyTo)

	for i, part := range Chunk(msg.Content, telegramMessageLimit) {
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		out := tgbotapi.NewMessage(chatID, part)
		if i == 0 && replyTo > 0 {
			out.ReplyToMessageID = replyTo
		}
		if _, err := a.api.Send(out); err != nil {
			a.logger.Error("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func (a *TelegramAdapter) Status() AdapterStatus {
	details := ""
	if a.api != nil {
		details = "bot=" + a.api.Self.UserName
	}
	return a.state.status(a.Platform(), details)
}

// Close stops long polling.
func (a *TelegramAdapter) Close() error {
	if a.api != nil {
		a.api.StopReceivingUpdates()
	}
	return nil
}
