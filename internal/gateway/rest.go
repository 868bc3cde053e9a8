package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const mailboxSize = 50

// RESTAdapter is a chat front end over plain HTTP. Messages posted to
// /message are handled like any chat message; replies, including the
// completion report, collect in a per-channel mailbox read via GET.
type RESTAdapter struct {
	handler   MessageHandler
	mailboxes map[string][]*OutboundMessage
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewRESTAdapter creates a REST chat adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		mailboxes: make(map[string][]*OutboundMessage),
		logger:    logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

func (a *RESTAdapter) Status() AdapterStatus {
	a.mu.Lock()
	n := len(a.mailboxes)
	a.mu.Unlock()
	return AdapterStatus{Platform: a.Platform(), Connected: true, Details: "channels=" + strconv.Itoa(n)}
}

// Send appends msg to the channel's mailbox, dropping the oldest message
// when the mailbox is full.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	box := append(a.mailboxes[msg.ChannelID], msg)
	if len(box) > mailboxSize {
		a.logger.Warn("rest mailbox full, dropping oldest message", zap.String("channel", msg.ChannelID))
		box = box[len(box)-mailboxSize:]
	}
	a.mailboxes[msg.ChannelID] = box
	return nil
}

// Drain returns and clears the channel's pending messages.
func (a *RESTAdapter) Drain(channelID string) []*OutboundMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	box := a.mailboxes[channelID]
	delete(a.mailboxes, channelID)
	return box
}

// Routes returns the REST chat endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	r.Get("/{channelID}", a.handleMailbox)
	return r
}

type restReply struct {
	ChannelID string             `json:"channel_id"`
	Messages  []*OutboundMessage `json:"messages"`
}

// handleMessage dispatches the message and answers with whatever replies
// the handler produced synchronously.
func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
		UserID    string `json:"user_id"`
		UserName  string `json:"user_name"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		restError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		restError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.ChannelID == "" {
		req.ChannelID = uuid.New().String()
	}

	if a.handler != nil {
		a.handler(&InboundMessage{
			Platform:  a.Platform(),
			ChannelID: req.ChannelID,
			UserID:    req.UserID,
			UserName:  req.UserName,
			Content:   req.Content,
			Timestamp: time.Now(),
		})
	}

	restJSON(w, http.StatusOK, restReply{ChannelID: req.ChannelID, Messages: nonNil(a.Drain(req.ChannelID))})
}

func (a *RESTAdapter) handleMailbox(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelID")
	restJSON(w, http.StatusOK, restReply{ChannelID: id, Messages: nonNil(a.Drain(id))})
}

func restJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func restError(w http.ResponseWriter, status int, msg string) {
	restJSON(w, status, map[string]string{"error": msg})
}

func nonNil(m []*OutboundMessage) []*OutboundMessage {
	if m == nil {
		return []*OutboundMessage{}
	}
	return m
}
