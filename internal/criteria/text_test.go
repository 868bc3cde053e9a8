package criteria

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) }
}

func TestBuildFromTextGermanSentence(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))
	cfg := b.BuildFromText("2 Personen nach Kreta im August, Budget 1200€, mindestens 4 Sterne")

	assert.Equal(t, 2, cfg.Travelers)
	assert.Contains(t, cfg.Destination, "Kreta")
	require.NotNil(t, cfg.Budget)
	assert.Equal(t, "1200", cfg.Budget.String())
	require.NotNil(t, cfg.MinStars)
	assert.Equal(t, 4.0, *cfg.MinStars)
	assert.Nil(t, cfg.MinRecommendPct)

	require.NotNil(t, cfg.Departure.From)
	assert.Equal(t, "2026-08-01", cfg.Departure.From.Format("2006-01-02"))
	assert.Equal(t, "2026-08-31", cfg.Departure.To.Format("2006-01-02"))
}

func TestBuildFromTextThresholdPhrases(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))

	cfg := b.BuildFromText("Familienurlaub, mindestens 4 Sterne und 90% Empfehlung")
	require.NotNil(t, cfg.MinStars)
	assert.Equal(t, 4.0, *cfg.MinStars)
	require.NotNil(t, cfg.MinRecommendPct)
	assert.Equal(t, 90.0, *cfg.MinRecommendPct)

	cfg = b.BuildFromText("Hotel mit Weiterempfehlung von mindestens 85 %")
	require.NotNil(t, cfg.MinRecommendPct)
	assert.Equal(t, 85.0, *cfg.MinRecommendPct)

	cfg = b.BuildFromText("Ein schöner Urlaub am Meer")
	assert.Nil(t, cfg.MinStars, "stars must stay unset, not zero")
	assert.Nil(t, cfg.MinRecommendPct, "recommendation must stay unset, not zero")
}

func TestBuildFromTextDativeStars(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))
	for text, want := range map[string]float64{
		"Hotel mit mindestens 4 Sternen auf Kreta für 2 Personen": 4,
		"Pauschalreise nach Rhodos mit 3 Sternen":                 3,
		"ein 5-Stern Resort":                                      5,
	} {
		cfg := b.BuildFromText(text)
		if assert.NotNil(t, cfg.MinStars, text) {
			assert.Equal(t, want, *cfg.MinStars, text)
		}
	}
}

func TestBuildFromTextLocativeDestination(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))
	cases := map[string]string{
		"Hotel mit mindestens 4 Sternen auf Kreta für 2 Personen": "Kreta",
		"Eine Woche in Griechenland, Budget 1500 €":               "Griechenland",
		"Familienurlaub in der Türkei mit Halbpension":           "Türkei",
		"Ich will nach Kreta, am liebsten in Chania":              "Kreta",
		"Urlaub in Ruhe, 2 Personen":                              "",
		"Ein Hotel in Strandnähe, mindestens 4 Sterne":            "",
		"Zu zweit in 3 Wochen weg":                                "",
	}
	for text, want := range cases {
		assert.Equal(t, want, b.BuildFromText(text).Destination, text)
	}
}

func TestBuildFromTextMonthNeedsContext(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))

	cfg := b.BuildFromText("I may travel to Crete with 2 adults")
	assert.True(t, cfg.Departure.IsZero(), "modal verb must not become a month")
	assert.Equal(t, "Crete", cfg.Destination)

	cfg = b.BuildFromText("2 adults to Crete in May")
	require.NotNil(t, cfg.Departure.From)
	assert.Equal(t, "2026-05-01", cfg.Departure.From.Format("2006-01-02"))

	cfg = b.BuildFromText("Ab Sep nach Malta")
	require.NotNil(t, cfg.Departure.From)
	assert.Equal(t, "2026-09-01", cfg.Departure.From.Format("2006-01-02"))
	assert.Equal(t, "Malta", cfg.Destination)
}

func TestBuildFromTextNeverFails(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))
	for _, text := range []string{"", "   ", "???", "nach", "9 Sterne", "500% Empfehlung", "Budget abc€"} {
		cfg := b.BuildFromText(text)
		require.NotNil(t, cfg)
		assert.Equal(t, DefaultTravelers, cfg.Travelers)
		assert.Nil(t, cfg.MinStars)
		assert.Nil(t, cfg.MinRecommendPct)
		assert.Nil(t, cfg.Budget)
	}
}

func TestBuildFromTextEnglish(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))
	cfg := b.BuildFromText("3 adults to Gran Canaria in February, max 1,500 EUR, 4.5 stars, all inclusive via tui.com")

	assert.Equal(t, 3, cfg.Travelers)
	assert.Equal(t, "Gran Canaria", cfg.Destination)
	require.NotNil(t, cfg.Budget)
	assert.Equal(t, "1500", cfg.Budget.String())
	require.NotNil(t, cfg.MinStars)
	assert.Equal(t, 4.5, *cfg.MinStars)
	assert.Equal(t, BoardAllInclusive, cfg.Board)
	assert.Equal(t, []string{"tui.com"}, cfg.PreferredPortals)

	// February is already past on the fixed clock, so next year's.
	require.NotNil(t, cfg.Departure.From)
	assert.Equal(t, "2027-02-01", cfg.Departure.From.Format("2006-01-02"))
	assert.Equal(t, "2027-02-28", cfg.Departure.To.Format("2006-01-02"))
}

func TestBuildFromTextExplicitDates(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock()))
	cfg := b.BuildFromText("Zu zweit nach Rhodos vom 01.09.2026 bis 14.09.2026 im Hotel")

	assert.Equal(t, 2, cfg.Travelers)
	assert.Equal(t, "Rhodos", cfg.Destination)
	assert.Equal(t, LodgingHotel, cfg.Lodging)
	require.NotNil(t, cfg.Departure.From)
	assert.Equal(t, "2026-09-01", cfg.Departure.From.Format("2006-01-02"))
	assert.Equal(t, "2026-09-14", cfg.Departure.To.Format("2006-01-02"))
}

func TestBuildFromTextKeepsNotes(t *testing.T) {
	cfg := NewBuilder().BuildFromText("  Strandnah bitte  ")
	assert.Equal(t, "Strandnah bitte", cfg.Notes)
}

func TestCustomRules(t *testing.T) {
	only := Rule{Name: "fixed", Apply: func(_ string, cfg *AgentConfig, _ time.Time) {
		cfg.Destination = "Malta"
	}}
	cfg := NewBuilder(WithRules(only)).BuildFromText("5 Personen nach Kreta")
	assert.Equal(t, "Malta", cfg.Destination)
	assert.Equal(t, DefaultTravelers, cfg.Travelers)
}
