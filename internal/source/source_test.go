package source

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMockIsDeterministic(t *testing.T) {
	cfg := &criteria.AgentConfig{Travelers: 2, Destination: "Kreta"}
	m := NewMock()

	first, err := m.Fetch(context.Background(), cfg)
	require.NoError(t, err)
	second, err := m.Fetch(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, first, len(mockCatalog))
	assert.Equal(t, first, second)
	for _, o := range first {
		assert.Equal(t, "Kreta", o.Destination)
		assert.True(t, strings.HasPrefix(o.URL, "https://"+o.Portal+"/"))
		assert.NotEmpty(t, o.Price)
		assert.NotNil(t, o.Stars)
	}

	other, err := m.Fetch(context.Background(), &criteria.AgentConfig{Destination: "Mallorca"})
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Price+first[1].Price+first[2].Price, other[0].Price+other[1].Price+other[2].Price)
}

func TestMockHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock().Fetch(ctx, &criteria.AgentConfig{})
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFixed(t *testing.T) {
	f := NewFixed(offer.RawOffer{Portal: "tui.com", Title: "A", Price: "100"})
	got, err := f.Fetch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got[0].Title = "changed"
	again, _ := f.Fetch(context.Background(), nil)
	assert.Equal(t, "A", again[0].Title)

	boom := errors.New("portal down")
	_, err = (&Fixed{Err: boom}).Fetch(context.Background(), nil)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "fixed", serr.Source)
	assert.ErrorIs(t, err, boom)
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[string][]Hit
	fail    map[string]error
}

func (f *fakeSearcher) Search(_ context.Context, q string) ([]Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.fail[q]; err != nil {
		return nil, err
	}
	return f.results[q], nil
}

func TestPortalSearchPreferredFirstThenFallback(t *testing.T) {
	fs := &fakeSearcher{results: map[string][]Hit{
		"pauschalreise kreta site:tui.com": {
			{Title: "Kreta Pauschalreise 4 Sterne Hotel", URL: "https://www.tui.com/kreta/1", Snippet: "7 Nächte ab 1.099 € p.P., 92% Weiterempfehlung, Halbpension"},
		},
		"pauschalreise kreta": {
			{Title: "Kreta günstig", URL: "https://www.tui.com/kreta/1", Snippet: "dupe"},
			{Title: "Kreta All Inclusive", URL: "https://weg.de/kreta", Snippet: "ab 899 EUR, 3.5 Sterne"},
		},
	}}
	ps := NewPortalSearch(fs, PortalOptions{}, zap.NewNop())
	cfg := &criteria.AgentConfig{Destination: "Kreta", PreferredPortals: []string{"tui.com"}}

	offers, err := ps.Fetch(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"pauschalreise kreta site:tui.com", "pauschalreise kreta"}, fs.queries)
	require.Len(t, offers, 2, "duplicate URL must be skipped")

	tui := offers[0]
	assert.Equal(t, "tui.com", tui.Portal)
	assert.Equal(t, "1.099", tui.Price)
	assert.Equal(t, "€", tui.Currency)
	require.NotNil(t, tui.Stars)
	assert.Equal(t, 4.0, *tui.Stars)
	require.NotNil(t, tui.RecommendPct)
	assert.Equal(t, 92.0, *tui.RecommendPct)
	assert.Equal(t, 7, tui.Nights)
	assert.Equal(t, criteria.BoardHalfBoard, tui.Board)
	assert.Equal(t, "hotel", tui.Lodging)

	weg := offers[1]
	assert.Equal(t, "weg.de", weg.Portal)
	assert.Equal(t, "899", weg.Price)
	assert.Equal(t, 3.5, *weg.Stars)
	assert.Nil(t, weg.RecommendPct)
	assert.Equal(t, criteria.BoardAllInclusive, weg.Board)
}

func TestPortalSearchSkipsFallbackWhenFull(t *testing.T) {
	fs := &fakeSearcher{results: map[string][]Hit{
		"pauschalreise rhodos site:weg.de": {
			{Title: "A", URL: "https://weg.de/a", Snippet: "500 €"},
			{Title: "B", URL: "https://weg.de/b", Snippet: "600 €"},
		},
	}}
	ps := NewPortalSearch(fs, PortalOptions{MaxResults: 2}, zap.NewNop())
	offers, err := ps.Fetch(context.Background(), &criteria.AgentConfig{Destination: "Rhodos", PreferredPortals: []string{"weg.de"}})
	require.NoError(t, err)
	assert.Len(t, offers, 2)
	assert.Equal(t, []string{"pauschalreise rhodos site:weg.de"}, fs.queries)
}

func TestPortalSearchPartialFailureKeepsResults(t *testing.T) {
	fs := &fakeSearcher{
		fail: map[string]error{"pauschalreise malta site:tui.com": errors.New("captcha")},
		results: map[string][]Hit{
			"pauschalreise malta": {{Title: "Malta", URL: "https://weg.de/malta", Snippet: "700 €"}},
		},
	}
	ps := NewPortalSearch(fs, PortalOptions{}, zap.NewNop())
	offers, err := ps.Fetch(context.Background(), &criteria.AgentConfig{Destination: "Malta", PreferredPortals: []string{"tui.com"}})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestPortalSearchTotalFailure(t *testing.T) {
	fs := &fakeSearcher{fail: map[string]error{"pauschalreise malta": errors.New("network unreachable")}}
	ps := NewPortalSearch(fs, PortalOptions{}, zap.NewNop())
	_, err := ps.Fetch(context.Background(), &criteria.AgentConfig{Destination: "Malta"})
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "portal", serr.Source)
	assert.Contains(t, err.Error(), "network unreachable")
}

func TestParseHitWithoutPrice(t *testing.T) {
	raw := parseHit(Hit{Title: "Reiseführer Kreta", URL: "https://example.org/kreta"}, &criteria.AgentConfig{Destination: "Kreta"})
	assert.Empty(t, raw.Price)
	assert.Equal(t, "example.org", raw.Portal)
	assert.Nil(t, raw.Stars)
}

func TestParseHitDativeStars(t *testing.T) {
	raw := parseHit(Hit{
		Title:   "Hotel Elounda Bay",
		URL:     "https://www.check24.de/kreta/elounda",
		Snippet: "Strandhotel mit 4,5 Sternen, 7 Nächte ab 1.249 €",
	}, &criteria.AgentConfig{Destination: "Kreta"})
	require.NotNil(t, raw.Stars)
	assert.Equal(t, 4.5, *raw.Stars)
}

func TestUnwrapRedirect(t *testing.T) {
	assert.Equal(t, "https://www.tui.com/x",
		unwrapRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.tui.com%2Fx&rut=abc"))
	assert.Equal(t, "https://weg.de/a", unwrapRedirect("https://weg.de/a"))
}

func TestBrowserSearcherReportsLaunchFailure(t *testing.T) {
	b := NewBrowserSearcher(BrowserOptions{
		ExecPath: "/nonexistent/chrome",
		Headless: true,
		Timeout:  5 * time.Second,
	}, zap.NewNop())
	defer b.Close()

	for i := 0; i < 2; i++ {
		_, err := b.Search(context.Background(), "Kreta Pauschalreise")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start browser")
	}
	assert.False(t, b.started)
}
