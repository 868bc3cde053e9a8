package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownPlatform is returned by Send when no adapter serves the
// message's platform, e.g. a notify reference to a disabled bot.
var ErrUnknownPlatform = errors.New("gateway: unknown platform")

// Gateway owns the chat adapters. Every inbound message goes to a single
// handler and outbound messages are routed by platform name.
type Gateway struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	handler  MessageHandler
	logger   *zap.Logger
}

func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{adapters: make(map[string]Adapter), logger: logger}
}

// SetHandler replaces the inbound callback. Adapters registered earlier
// pick it up on their next message.
func (g *Gateway) SetHandler(h MessageHandler) {
	g.mu.Lock()
	g.handler = h
	g.mu.Unlock()
}

func (g *Gateway) dispatch(msg *InboundMessage) {
	g.mu.RLock()
	h := g.handler
	g.mu.RUnlock()
	if h == nil {
		g.logger.Debug("inbound message dropped, no handler",
			zap.String("platform", msg.Platform), zap.String("channel", msg.ChannelID))
		return
	}
	h(msg)
}

// Register adds an adapter under its platform name, replacing any earlier
// adapter for the same platform.
func (g *Gateway) Register(adapter Adapter) {
	adapter.OnMessage(g.dispatch)

	g.mu.Lock()
	g.adapters[adapter.Platform()] = adapter
	g.mu.Unlock()
	g.logger.Info("chat adapter registered", zap.String("platform", adapter.Platform()))
}

// snapshot returns the adapters in platform order so startup and shutdown
// logs read the same on every run.
func (g *Gateway) snapshot() []Adapter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Adapter, 0, len(g.adapters))
	for _, a := range g.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform() < out[j].Platform() })
	return out
}

// ConnectAll connects every adapter. One bot failing does not stop the
// others; all failures come back joined.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, a := range g.snapshot() {
		if err := a.Connect(ctx); err != nil {
			g.logger.Warn("chat adapter not connected",
				zap.String("platform", a.Platform()), zap.Error(err))
			errs = append(errs, fmt.Errorf("connect %s: %w", a.Platform(), err))
			continue
		}
		g.logger.Info("chat adapter connected", zap.String("platform", a.Platform()))
	}
	return errors.Join(errs...)
}

// Send routes msg to the adapter for msg.Platform. Blank messages are not
// sent.
func (g *Gateway) Send(ctx context.Context, msg *OutboundMessage) error {
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}
	g.mu.RLock()
	a, ok := g.adapters[msg.Platform]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownPlatform, msg.Platform)
	}
	if err := a.Send(ctx, msg); err != nil {
		return fmt.Errorf("send to %s/%s: %w", msg.Platform, msg.ChannelID, err)
	}
	return nil
}

// Close disconnects every adapter and returns the joined close errors.
func (g *Gateway) Close() error {
	var errs []error
	for _, a := range g.snapshot() {
		if err := a.Close(); err != nil {
			g.logger.Error("chat adapter close failed",
				zap.String("platform", a.Platform()), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", a.Platform(), err))
		}
	}
	return errors.Join(errs...)
}

// Statuses reports every adapter, sorted by platform.
func (g *Gateway) Statuses() []AdapterStatus {
	adapters := g.snapshot()
	out := make([]AdapterStatus, len(adapters))
	for i, a := range adapters {
		out[i] = a.Status()
	}
	return out
}

// Adapters lists the registered platform names in order.
func (g *Gateway) Adapters() []string {
	adapters := g.snapshot()
	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Platform()
	}
	return names
}
