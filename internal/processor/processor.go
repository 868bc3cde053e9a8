package processor

import (
	"errors"
	"sort"
	"strings"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/money"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoConfig is returned when Process is called without a config.
var ErrNoConfig = errors.New("processor: no config")

// Stats counts what happened to the input offers at each step.
type Stats struct {
	Received            int `json:"received"`
	Unpriced            int `json:"unpriced"`
	Duplicates          int `json:"duplicates"`
	OverBudget          int `json:"over_budget"`
	BelowStars          int `json:"below_stars"`
	BelowRecommendation int `json:"below_recommendation"`
	Ranked              int `json:"ranked"`
}

// Processor normalizes, deduplicates, filters and ranks raw offers.
type Processor struct {
	logger *zap.Logger
}

// New creates a Processor.
func New(logger *zap.Logger) *Processor {
	return &Processor{logger: logger}
}

// Process returns the surviving offers in rank order. The input slice is
// not modified and identical inputs always yield identical output.
func (p *Processor) Process(raw []offer.RawOffer, cfg *criteria.AgentConfig) ([]offer.RankedOffer, Stats, error) {
	stats := Stats{Received: len(raw)}
	if cfg == nil {
		return nil, stats, ErrNoConfig
	}

	priced := normalize(raw, cfg, &stats)
	unique := dedupe(priced, &stats)
	kept := filter(unique, cfg, &stats)
	rank(kept)

	stats.Ranked = len(kept)
	p.logger.Debug("offers processed",
		zap.Int("received", stats.Received),
		zap.Int("unpriced", stats.Unpriced),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("ranked", stats.Ranked))
	return kept, stats, nil
}

func normalize(raw []offer.RawOffer, cfg *criteria.AgentConfig, stats *Stats) []offer.RankedOffer {
	out := make([]offer.RankedOffer, 0, len(raw))
	for _, r := range raw {
		amount, err := money.ParseAmount(r.Price)
		if err != nil || !amount.IsPositive() {
			stats.Unpriced++
			continue
		}
		eur, err := money.ToBase(amount, r.Currency)
		if err != nil {
			stats.Unpriced++
			continue
		}
		r.Portal = criteria.Domain(r.Portal)
		out = append(out, offer.RankedOffer{
			RawOffer:  r,
			PriceEUR:  eur,
			Preferred: cfg.IsPreferred(r.Portal),
		})
	}
	return out
}

type dedupeKey struct {
	portal string
	title  string
	price  string
}

func dedupe(offers []offer.RankedOffer, stats *Stats) []offer.RankedOffer {
	seen := make(map[dedupeKey]struct{}, len(offers))
	out := offers[:0:0]
	for _, o := range offers {
		k := dedupeKey{
			portal: o.Portal,
			title:  strings.ToLower(strings.Join(strings.Fields(o.Title), " ")),
			price:  o.PriceEUR.StringFixed(2),
		}
		if _, dup := seen[k]; dup {
			stats.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

// filter drops offers that break a set constraint. An offer without the
// rating a constraint needs cannot satisfy it.
func filter(offers []offer.RankedOffer, cfg *criteria.AgentConfig, stats *Stats) []offer.RankedOffer {
	out := offers[:0:0]
	for _, o := range offers {
		switch {
		case cfg.Budget != nil && o.PriceEUR.GreaterThan(*cfg.Budget):
			stats.OverBudget++
		case cfg.MinStars != nil && (o.Stars == nil || *o.Stars < *cfg.MinStars):
			stats.BelowStars++
		case cfg.MinRecommendPct != nil && (o.RecommendPct == nil || *o.RecommendPct < *cfg.MinRecommendPct):
			stats.BelowRecommendation++
		default:
			out = append(out, o)
		}
	}
	return out
}

func rank(offers []offer.RankedOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if a.Preferred != b.Preferred {
			return a.Preferred
		}
		if c := a.PriceEUR.Cmp(b.PriceEUR); c != 0 {
			return c < 0
		}
		if sa, sb := orLowest(a.Stars), orLowest(b.Stars); sa != sb {
			return sa > sb
		}
		return orLowest(a.RecommendPct) > orLowest(b.RecommendPct)
	})

	if len(offers) == 0 {
		return
	}
	lo, hi := offers[0].PriceEUR, offers[0].PriceEUR
	for _, o := range offers[1:] {
		lo = decimal.Min(lo, o.PriceEUR)
		hi = decimal.Max(hi, o.PriceEUR)
	}
	for i := range offers {
		offers[i].Rank = i + 1
		offers[i].Score = score(offers[i], lo, hi)
	}
}

func orLowest(v *float64) float64 {
	if v == nil {
		return -1
	}
	return *v
}

// score is a 0-100 display figure. Ordering never depends on it.
func score(o offer.RankedOffer, lo, hi decimal.Decimal) float64 {
	var s float64
	if o.Preferred {
		s += 40
	}
	if spread := hi.Sub(lo); spread.IsPositive() {
		s += 30 * hi.Sub(o.PriceEUR).Div(spread).InexactFloat64()
	} else {
		s += 30
	}
	if o.Stars != nil {
		s += 20 * clamp(*o.Stars/5)
	}
	if o.RecommendPct != nil {
		s += 10 * clamp(*o.RecommendPct/100)
	}
	return decimal.NewFromFloat(s).Round(1).InexactFloat64()
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
