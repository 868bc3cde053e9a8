package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/gateway"
	"github.com/nidhogg/holiday-agent/internal/processor"
	"github.com/nidhogg/holiday-agent/internal/report"
	"github.com/nidhogg/holiday-agent/internal/source"
	"github.com/nidhogg/holiday-agent/internal/task"
	"github.com/nidhogg/holiday-agent/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMessage(t *testing.T) {
	failed := task.Task{Status: task.StatusFailed, Error: "search timed out after 2m0s"}
	assert.Equal(t, "Die Suche ist fehlgeschlagen: search timed out after 2m0s", Message(failed))

	done := task.Task{Status: task.StatusDone, Report: &report.Report{Text: "Reise-Report"}}
	assert.Equal(t, "Reise-Report", Message(done))

	done.Warnings = []string{"Angebotsquelle portal nicht erreichbar"}
	assert.Equal(t, "Reise-Report\n\nHinweise:\n- Angebotsquelle portal nicht erreichbar", Message(done))
}

func TestChatNotifierSkipsTasksWithoutCaller(t *testing.T) {
	rest := gateway.NewRESTAdapter(zap.NewNop())
	n := NewChatNotifier(rest, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), task.Task{ID: "x", Status: task.StatusDone}))
}

func TestChatNotifierIgnoresDisabledPlatform(t *testing.T) {
	gw := gateway.NewGateway(zap.NewNop())
	gw.Register(gateway.NewRESTAdapter(zap.NewNop()))
	n := NewChatNotifier(gw, zap.NewNop())

	err := n.Notify(context.Background(), task.Task{
		ID:     "t1",
		Status: task.StatusFailed,
		Error:  "boom",
		Caller: task.CallerRef{Platform: "telegram", ChannelID: "42"},
	})
	assert.NoError(t, err)
}

func TestChatNotifierDeliversReport(t *testing.T) {
	gw := gateway.NewGateway(zap.NewNop())
	rest := gateway.NewRESTAdapter(zap.NewNop())
	gw.Register(rest)

	pipeline := workflow.New(criteria.NewBuilder(), source.NewMock(), processor.New(zap.NewNop()), report.NewBuilder(5), zap.NewNop())
	m := task.NewManager(pipeline, task.Options{Notifier: NewChatNotifier(gw, zap.NewNop())}, zap.NewNop())

	_, err := m.Submit(criteria.Request{FreeText: "2 Personen nach Kreta, bevorzugt tui.com"},
		task.CallerRef{Platform: "rest", ChannelID: "web-1", ReplyTo: "m9"})
	require.NoError(t, err)

	var box []*gateway.OutboundMessage
	require.Eventually(t, func() bool {
		box = append(box, rest.Drain("web-1")...)
		return len(box) > 0
	}, 5*time.Second, 5*time.Millisecond)

	require.Len(t, box, 1)
	assert.Contains(t, box[0].Content, "Reise-Report")
	assert.Contains(t, box[0].Content, "Ziel: Kreta")
	assert.Contains(t, box[0].Content, "| 1 | tui.com ★ |")
	assert.Equal(t, "m9", box[0].ReplyTo)
}

type errNotifier struct{ calls int }

func (e *errNotifier) Notify(context.Context, task.Task) error {
	e.calls++
	return errors.New("unreachable")
}

type okNotifier struct{ calls int }

func (o *okNotifier) Notify(context.Context, task.Task) error {
	o.calls++
	return nil
}

func TestMultiCallsEveryNotifier(t *testing.T) {
	bad, good := &errNotifier{}, &okNotifier{}
	err := Multi{bad, good}.Notify(context.Background(), task.Task{ID: "t"})
	assert.ErrorContains(t, err, "unreachable")
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)

	assert.NoError(t, Multi{good}.Notify(context.Background(), task.Task{}))
	assert.NoError(t, Multi(nil).Notify(context.Background(), task.Task{}))
}
