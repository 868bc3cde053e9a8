package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/nidhogg/holiday-agent/internal/processor"
	"github.com/nidhogg/holiday-agent/internal/report"
	"github.com/nidhogg/holiday-agent/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOrchestrator(src source.Source) *Orchestrator {
	return New(criteria.NewBuilder(), src, processor.New(zap.NewNop()), report.NewBuilder(10), zap.NewNop())
}

type blockingSource struct{}

func (blockingSource) Name() string { return "blocking" }

func (blockingSource) Fetch(ctx context.Context, _ *criteria.AgentConfig) ([]offer.RawOffer, error) {
	<-ctx.Done()
	return nil, &source.Error{Source: "blocking", Err: ctx.Err()}
}

type panickingSource struct{}

func (panickingSource) Name() string { return "panicking" }

func (panickingSource) Fetch(context.Context, *criteria.AgentConfig) ([]offer.RawOffer, error) {
	panic("selector changed")
}

type failingProcessor struct {
	err   error
	panic bool
}

func (f failingProcessor) Process([]offer.RawOffer, *criteria.AgentConfig) ([]offer.RankedOffer, processor.Stats, error) {
	if f.panic {
		panic("index out of range")
	}
	return nil, processor.Stats{}, f.err
}

func TestRunPreferredPortalFirst(t *testing.T) {
	req := criteria.Request{Payload: criteria.Payload{
		Travelers:        "2",
		Destination:      "Mallorca",
		PreferredPortals: "tui.com",
	}}
	res, err := newOrchestrator(source.NewMock()).Run(context.Background(), req)
	require.NoError(t, err)

	require.NotEmpty(t, res.Offers)
	assert.Equal(t, "tui.com", res.Offers[0].Portal)
	assert.True(t, res.Offers[0].Preferred)
	assert.Equal(t, 1, res.Offers[0].Rank)
	assert.Contains(t, res.Report.Text, "| 1 | tui.com ★ |")
	assert.Empty(t, res.Warnings)
	assert.Equal(t, len(res.Offers), res.Stats.Ranked)
}

func TestRunFreeText(t *testing.T) {
	req := criteria.Request{FreeText: "Wir suchen zu zweit eine Reise nach Kreta, Budget 2000 €, mindestens 4 Sterne"}
	res, err := newOrchestrator(source.NewMock()).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Kreta", res.Config.Destination)
	assert.Equal(t, 2, res.Config.Travelers)
	require.NotNil(t, res.Config.MinStars)
	for _, o := range res.Offers {
		assert.GreaterOrEqual(t, *o.Stars, 4.0)
		assert.True(t, o.PriceEUR.LessThanOrEqual(*res.Config.Budget))
	}
}

func TestRunSourceFaultStillReports(t *testing.T) {
	src := &source.Fixed{Err: errors.New("connection refused")}
	req := criteria.Request{Payload: criteria.Payload{Destination: "Malta"}}

	res, err := newOrchestrator(src).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Offers)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.Empty())
	assert.Contains(t, res.Report.Text, "Keine Angebote gefunden")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "connection refused")
}

func TestRunSourcePanicIsRecovered(t *testing.T) {
	req := criteria.Request{Payload: criteria.Payload{Destination: "Malta"}}
	res, err := newOrchestrator(panickingSource{}).Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Report.Empty())
	assert.Len(t, res.Warnings, 1)
}

func TestRunConfigErrors(t *testing.T) {
	o := newOrchestrator(source.NewMock())

	_, err := o.Run(context.Background(), criteria.Request{})
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, criteria.ErrEmptyRequest)

	_, err = o.Run(context.Background(), criteria.Request{Payload: criteria.Payload{Destination: "Rom", Budget: "viel"}})
	require.ErrorAs(t, err, &cerr)
	var verr *criteria.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "budget", verr.Field)
}

func TestRunDeadlineIsFatal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newOrchestrator(blockingSource{}).Run(ctx, criteria.Request{FreeText: "nach Rom"})
	var serr *source.Error
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunCancelledBeforeFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newOrchestrator(source.NewMock()).Run(ctx, criteria.Request{FreeText: "nach Rom"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunProcessingFailures(t *testing.T) {
	req := criteria.Request{FreeText: "nach Rom"}

	o := New(criteria.NewBuilder(), source.NewMock(), failingProcessor{err: errors.New("bad rate table")}, report.NewBuilder(10), zap.NewNop())
	_, err := o.Run(context.Background(), req)
	var perr *ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "process", perr.Stage)

	o = New(criteria.NewBuilder(), source.NewMock(), failingProcessor{panic: true}, report.NewBuilder(10), zap.NewNop())
	_, err = o.Run(context.Background(), req)
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "panic: index out of range")
}
