package offer

import (
	"github.com/shopspring/decimal"
)

// RawOffer is one candidate as a source delivered it. Price is the text the
// source found; the processor decides whether it is usable.
type RawOffer struct {
	Portal       string   `json:"portal"`
	Title        string   `json:"title"`
	Destination  string   `json:"destination,omitempty"`
	Price        string   `json:"price"`
	Currency     string   `json:"currency,omitempty"`
	Stars        *float64 `json:"stars,omitempty"`
	RecommendPct *float64 `json:"recommend_pct,omitempty"`
	Lodging      string   `json:"lodging,omitempty"`
	Board        string   `json:"board,omitempty"`
	Nights       int      `json:"nights,omitempty"`
	URL          string   `json:"url"`
}

// RankedOffer is a RawOffer that survived filtering, with its derived fields.
type RankedOffer struct {
	RawOffer
	PriceEUR  decimal.Decimal `json:"price_eur"`
	Preferred bool            `json:"preferred"`
	Score     float64         `json:"score"`
	Rank      int             `json:"rank"`
}

// Float returns a pointer to v, for building offers with optional ratings.
func Float(v float64) *float64 { return &v }
