package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/money"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/shopspring/decimal"
)

const defaultMockDestination = "Mallorca"

type mockEntry struct {
	portal    string
	hotel     string
	basePrice int64
	stars     float64
	recommend float64
	lodging   string
	board     string
	nights    int
}

var mockCatalog = []mockEntry{
	{"holidaycheck.de", "Strandhotel Aurora", 749, 4.0, 88, "hotel", criteria.BoardHalfBoard, 7},
	{"tui.com", "TUI BLUE Resort", 899, 4.5, 92, "resort", criteria.BoardAllInclusive, 7},
	{"ab-in-den-urlaub.de", "Hotel Panorama", 1020, 3.5, 85, "hotel", criteria.BoardBreakfast, 7},
	{"weg.de", "Apartments Sol y Mar", 639, 3.0, 79, "apartment", "Ohne Verpflegung", 7},
	{"booking.com", "Villa Olivia", 1180, 5.0, 96, "holiday_home", criteria.BoardBreakfast, 10},
}

// Mock returns deterministic synthetic offers for a destination. Prices
// shift with the destination so different searches look different, but the
// same search always yields the same offers.
type Mock struct{}

// NewMock creates a Mock source.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Fetch(ctx context.Context, cfg *criteria.AgentConfig) ([]offer.RawOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Source: m.Name(), Err: err}
	}

	dest := defaultMockDestination
	if cfg != nil && cfg.Destination != "" {
		dest = cfg.Destination
	}
	seed := destinationSeed(dest)

	offers := make([]offer.RawOffer, 0, len(mockCatalog))
	for i, e := range mockCatalog {
		shift := int64((seed + uint32(i)*37) % 120)
		price := decimal.NewFromInt(e.basePrice + shift)
		offers = append(offers, offer.RawOffer{
			Portal:       e.portal,
			Title:        fmt.Sprintf("Pauschalreise nach %s: %s", dest, e.hotel),
			Destination:  dest,
			Price:        money.Format(price),
			Currency:     money.Base,
			Stars:        offer.Float(e.stars),
			RecommendPct: offer.Float(e.recommend),
			Lodging:      e.lodging,
			Board:        e.board,
			Nights:       e.nights,
			URL:          fmt.Sprintf("https://%s/angebote/%s/%d", e.portal, slug(dest), i+1),
		})
	}
	return offers, nil
}

func destinationSeed(dest string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(dest)))
	return h.Sum32()
}

func slug(s string) string {
	return url.PathEscape(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-"))
}
