package report

import (
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedBuilder(max int) *Builder {
	b := NewBuilder(max)
	b.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return b
}

func ranked(rank int, portal, price string, preferred bool) offer.RankedOffer {
	return offer.RankedOffer{
		RawOffer: offer.RawOffer{
			Portal:       portal,
			Title:        "Hotel | " + portal,
			Price:        price,
			Stars:        offer.Float(4.5),
			RecommendPct: offer.Float(90),
			Board:        criteria.BoardHalfBoard,
			Nights:       7,
			URL:          "https://" + portal + "/angebot",
		},
		PriceEUR:  decimal.RequireFromString(price),
		Preferred: preferred,
		Score:     72.5,
		Rank:      rank,
	}
}

func TestRenderFullReport(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	b := decimal.RequireFromString("2500")
	cfg := &criteria.AgentConfig{
		Travelers:        2,
		Destination:      "Kreta",
		Departure:        criteria.DateRange{From: &from, To: &to},
		Budget:           &b,
		Lodging:          criteria.LodgingHotel,
		Board:            criteria.BoardHalfBoard,
		PreferredPortals: []string{"tui.com", "weg.de"},
		MinStars:         offer.Float(4),
		MinRecommendPct:  offer.Float(85),
		Notes:            "Meerblick wäre schön",
	}
	offers := []offer.RankedOffer{
		ranked(1, "tui.com", "1399", true),
		ranked(2, "holidaycheck.de", "1200.50", false),
	}

	r := fixedBuilder(10).Render(cfg, offers)
	require.False(t, r.Empty())
	assert.Equal(t, 2, r.OfferCount)
	assert.Equal(t, 2026, r.GeneratedAt.Year())

	for _, want := range []string{
		"Reise-Report",
		"Ziel: Kreta",
		"Zeitraum: 01.08.2026 – 31.08.2026",
		"Reisende: 2",
		"Budget: 2.500 €",
		"Unterkunft: Hotel",
		"Verpflegungswunsch: Halbpension",
		"Mindestbewertung: 4 Sterne",
		"Mindestempfehlung: 85 %",
		"Bevorzugte Portale: tui.com, weg.de",
		"Zusatzinformationen:\nMeerblick wäre schön",
		"- 2 Angebote gefunden",
		"- Durchschnittlicher Preis: 1.300 €",
		"- Günstigstes Angebot: 1.200,50 €",
		"| 1 | tui.com ★ | Hotel / tui.com | 1.399 € | 4,5 | 90 % | 7 | Halbpension | 72,5 |",
		"| 2 | holidaycheck.de | ",
		"Detaillierte Links:\n- tui.com: https://tui.com/angebot\n- holidaycheck.de: https://holidaycheck.de/angebot",
	} {
		assert.Contains(t, r.Text, want)
	}
	assert.NotContains(t, r.Text, "Keine Angebote gefunden")
}

func TestRenderEmpty(t *testing.T) {
	r := fixedBuilder(10).Render(&criteria.AgentConfig{Travelers: 2, Destination: "Malta"}, nil)
	assert.True(t, r.Empty())
	assert.Contains(t, r.Text, "Zeitraum: flexibel")
	assert.Contains(t, r.Text, "Keine Angebote gefunden")
	assert.NotContains(t, r.Text, "Top-Angebote")
	assert.NotContains(t, r.Text, "Budget:")
}

func TestRenderOpenEndedWindow(t *testing.T) {
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	r := fixedBuilder(10).Render(&criteria.AgentConfig{Departure: criteria.DateRange{From: &from}}, nil)
	assert.Contains(t, r.Text, "Zeitraum: 01.07.2026 – flexibel")
	assert.Contains(t, r.Text, "Ziel: -")
}

func TestRenderLimitsTable(t *testing.T) {
	var offers []offer.RankedOffer
	for i := 1; i <= 5; i++ {
		offers = append(offers, ranked(i, "p"+string(rune('a'+i))+".de", "500", false))
	}
	r := fixedBuilder(3).Render(&criteria.AgentConfig{}, offers)
	assert.Equal(t, 5, r.OfferCount)
	assert.Contains(t, r.Text, "- 5 Angebote gefunden")
	assert.Equal(t, 3, strings.Count(r.Text, "https://"))
	assert.NotContains(t, r.Text, "| 4 |")
}

func TestRenderNilConfig(t *testing.T) {
	r := NewBuilder(0).Render(nil, nil)
	assert.True(t, r.Empty())
	assert.Contains(t, r.Text, "Reise-Report")
}
