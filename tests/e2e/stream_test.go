//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/notify"
	"github.com/nidhogg/holiday-agent/internal/processor"
	"github.com/nidhogg/holiday-agent/internal/report"
	"github.com/nidhogg/holiday-agent/internal/source"
	"github.com/nidhogg/holiday-agent/internal/task"
	"github.com/nidhogg/holiday-agent/internal/workflow"
	"go.uber.org/zap"
)

var (
	testLogger   *zap.Logger
	testRedisURL string
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	url, cleanup, err := startRedis(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = url

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func newPipeline(src source.Source) *workflow.Orchestrator {
	return workflow.New(criteria.NewBuilder(), src, processor.New(testLogger), report.NewBuilder(10), testLogger)
}

func TestStreamNotifierPublishesCompletions(t *testing.T) {
	stream := fmt.Sprintf("holiday:test:%d", time.Now().UnixNano())
	sn, err := notify.NewStreamNotifier(testRedisURL, stream, testLogger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	events := sn.Subscribe(ctx, "0")

	m := task.NewManager(newPipeline(source.NewMock()), task.Options{Notifier: sn}, testLogger)
	defer m.Shutdown(context.Background())

	id, err := m.Submit(criteria.Request{Payload: criteria.Payload{Destination: "Mallorca", PreferredPortals: "tui.com"}},
		task.CallerRef{Platform: "telegram", ChannelID: "4711"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case ev := <-events:
		if ev == nil {
			t.Fatal("stream closed before an event arrived")
		}
		if ev.TaskID != id {
			t.Errorf("expected task %s, got %s", id, ev.TaskID)
		}
		if ev.Status != string(task.StatusDone) {
			t.Errorf("expected done, got %s", ev.Status)
		}
		if ev.Platform != "telegram" || ev.ChannelID != "4711" {
			t.Errorf("caller not carried: %+v", ev)
		}
		if ev.OfferCount == 0 {
			t.Error("expected offers in the event")
		}
		if ev.FinishedAt.IsZero() {
			t.Error("expected finished_at")
		}
	case <-ctx.Done():
		t.Fatal("no completion event within 30s")
	}
}

type failingPipeline struct{}

func (failingPipeline) Run(context.Context, criteria.Request) (*workflow.Result, error) {
	return nil, &workflow.ProcessingError{Stage: "process", Err: errors.New("broken")}
}

func TestStreamNotifierPublishesFailures(t *testing.T) {
	stream := fmt.Sprintf("holiday:test:fail:%d", time.Now().UnixNano())
	sn, err := notify.NewStreamNotifier(testRedisURL, stream, testLogger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	events := sn.Subscribe(ctx, "0")

	m := task.NewManager(failingPipeline{}, task.Options{Notifier: sn}, testLogger)
	defer m.Shutdown(context.Background())

	id, err := m.Submit(criteria.Request{FreeText: "Irgendwohin"}, task.CallerRef{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case ev := <-events:
		if ev == nil || ev.TaskID != id {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Status != string(task.StatusFailed) || ev.Error == "" {
			t.Errorf("expected failed with error, got %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no failure event within 30s")
	}
}

func TestNewStreamNotifierRejectsBadURL(t *testing.T) {
	if _, err := notify.NewStreamNotifier("not-a-url", "", testLogger); err == nil {
		t.Fatal("expected an error for a malformed URL")
	}
}
