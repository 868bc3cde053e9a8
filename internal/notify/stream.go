package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/holiday-agent/internal/metrics"
	"github.com/nidhogg/holiday-agent/internal/task"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream completions are published to.
const DefaultStream = "holiday:tasks:completed"

const streamMaxLen = 10000

// Event is one task completion on the stream.
type Event struct {
	TaskID     string    `json:"task_id"`
	Status     string    `json:"status"`
	Platform   string    `json:"platform,omitempty"`
	ChannelID  string    `json:"channel_id,omitempty"`
	OfferCount int       `json:"offer_count"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// StreamNotifier publishes every completion to a Redis stream so other
// services can react to finished searches.
type StreamNotifier struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamNotifier connects to redisURL and checks the connection.
func NewStreamNotifier(redisURL, stream string, logger *zap.Logger) (*StreamNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStreamNotifierWithClient(rdb, stream, logger), nil
}

// NewStreamNotifierWithClient uses an existing client.
func NewStreamNotifierWithClient(rdb *redis.Client, stream string, logger *zap.Logger) *StreamNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamNotifier{rdb: rdb, stream: stream, logger: logger}
}

func (n *StreamNotifier) Notify(ctx context.Context, t task.Task) error {
	ev := Event{
		TaskID:    t.ID,
		Status:    string(t.Status),
		Platform:  t.Caller.Platform,
		ChannelID: t.Caller.ChannelID,
		Error:     t.Error,
	}
	if t.Report != nil {
		ev.OfferCount = t.Report.OfferCount
	}
	if t.FinishedAt != nil {
		ev.FinishedAt = *t.FinishedAt
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"task_id": t.ID,
			"data":    string(data),
		},
	}).Result()
	if err != nil {
		metrics.IncrementNotification("stream", "error")
		return fmt.Errorf("publish to %s: %w", n.stream, err)
	}
	metrics.IncrementNotification("stream", "ok")

	n.logger.Debug("published completion",
		zap.String("stream", n.stream),
		zap.String("task_id", t.ID),
		zap.String("status", ev.Status))
	return nil
}

// Subscribe emits completions published after lastID ("$" for new ones
// only, "0" for the whole stream). Cancel ctx to stop.
func (n *StreamNotifier) Subscribe(ctx context.Context, lastID string) <-chan *Event {
	ch := make(chan *Event, 16)
	if lastID == "" {
		lastID = "$"
	}

	go func() {
		defer close(ch)
		for {
			if ctx.Err() != nil {
				return
			}

			results, err := n.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{n.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					n.logger.Warn("stream read failed", zap.String("stream", n.stream), zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) != nil {
						continue
					}
					select {
					case ch <- &ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (n *StreamNotifier) Close() error {
	return n.rdb.Close()
}
