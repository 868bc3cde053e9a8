package gateway

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Adapter connects one chat platform to the search backend.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) error
	OnMessage(handler MessageHandler)
	Status() AdapterStatus
	Close() error
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized chat message.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// OutboundMessage is a message for one platform channel.
type OutboundMessage struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// AdapterStatus is reported on /health.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}

// Chunk splits text into pieces of at most max bytes, preferring line
// breaks. Reports are far longer than a single Telegram or Discord message.
func Chunk(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		return []string{text}
	}
	var out []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut <= 0 {
			cut = max
			// never split a UTF-8 sequence
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// connState tracks an adapter's connection for Status.
type connState struct {
	mu          sync.RWMutex
	connected   bool
	connectedAt time.Time
	lastError   string
}

func (s *connState) up() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.connectedAt = time.Now()
	s.lastError = ""
}

func (s *connState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.lastError = err.Error()
}

func (s *connState) status(platform, details string) AdapterStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := AdapterStatus{Platform: platform, Connected: s.connected, Error: s.lastError}
	if s.connected {
		t := s.connectedAt
		st.ConnectedAt = &t
		st.Details = details
	}
	return st
}
