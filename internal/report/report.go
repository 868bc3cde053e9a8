package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/money"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/shopspring/decimal"
)

// DefaultMaxOffers is the table length when none is configured.
const DefaultMaxOffers = 10

const emptyNote = "Keine Angebote gefunden, die zu den Kriterien passen. " +
	"Versuche es mit einem höheren Budget, einem flexibleren Zeitraum oder weniger Mindestanforderungen."

// Report is the rendered result of one search.
type Report struct {
	Text        string    `json:"text"`
	OfferCount  int       `json:"offer_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Empty reports whether the search found nothing.
func (r *Report) Empty() bool { return r.OfferCount == 0 }

// Builder renders reports.
type Builder struct {
	now       func() time.Time
	maxOffers int
}

// NewBuilder creates a Builder listing at most maxOffers offers.
func NewBuilder(maxOffers int) *Builder {
	if maxOffers <= 0 {
		maxOffers = DefaultMaxOffers
	}
	return &Builder{now: time.Now, maxOffers: maxOffers}
}

// Render never fails. offers must already be in rank order.
func (b *Builder) Render(cfg *criteria.AgentConfig, offers []offer.RankedOffer) *Report {
	if cfg == nil {
		cfg = &criteria.AgentConfig{}
	}
	var sb strings.Builder

	writeHeader(&sb, cfg)
	writeSummary(&sb, offers)

	if len(offers) == 0 {
		sb.WriteString("\n")
		sb.WriteString(emptyNote)
		sb.WriteString("\n")
	} else {
		top := offers
		if len(top) > b.maxOffers {
			top = top[:b.maxOffers]
		}
		writeTable(&sb, top)
		writeLinks(&sb, top)
	}

	return &Report{
		Text:        strings.TrimRight(sb.String(), "\n"),
		OfferCount:  len(offers),
		GeneratedAt: b.now(),
	}
}

func writeHeader(sb *strings.Builder, cfg *criteria.AgentConfig) {
	sb.WriteString("Reise-Report\n============\n\n")

	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(sb, "%s: %s\n", label, value)
		}
	}
	line("Ziel", orDash(cfg.Destination))
	line("Zeitraum", window(cfg.Departure))
	line("Reisende", fmt.Sprint(cfg.Travelers))
	if cfg.Budget != nil {
		line("Budget", money.Format(*cfg.Budget))
	}
	line("Unterkunft", cfg.Lodging.Label())
	line("Verpflegungswunsch", cfg.Board)
	if cfg.MinStars != nil {
		line("Mindestbewertung", rating(*cfg.MinStars)+" Sterne")
	}
	if cfg.MinRecommendPct != nil {
		line("Mindestempfehlung", rating(*cfg.MinRecommendPct)+" %")
	}
	line("Bevorzugte Portale", strings.Join(cfg.PreferredPortals, ", "))

	if notes := strings.TrimSpace(cfg.Notes); notes != "" {
		sb.WriteString("\nZusatzinformationen:\n")
		sb.WriteString(notes)
		sb.WriteString("\n")
	}
}

func writeSummary(sb *strings.Builder, offers []offer.RankedOffer) {
	sb.WriteString("\nZusammenfassung:\n")
	if len(offers) == 0 {
		sb.WriteString("- Keine Angebote gefunden\n")
		return
	}

	total := decimal.Zero
	cheapest := offers[0].PriceEUR
	for _, o := range offers {
		total = total.Add(o.PriceEUR)
		cheapest = decimal.Min(cheapest, o.PriceEUR)
	}
	avg := total.Div(decimal.NewFromInt(int64(len(offers)))).Round(0)

	fmt.Fprintf(sb, "- %d Angebote gefunden\n", len(offers))
	fmt.Fprintf(sb, "- Durchschnittlicher Preis: %s\n", money.Format(avg))
	fmt.Fprintf(sb, "- Günstigstes Angebot: %s\n", money.Format(cheapest))
}

func writeTable(sb *strings.Builder, offers []offer.RankedOffer) {
	sb.WriteString("\nTop-Angebote:\n")
	sb.WriteString("| # | Anbieter | Angebot | Preis | Sterne | Empfehlung | Nächte | Verpflegung | Score |\n")
	sb.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, o := range offers {
		portal := o.Portal
		if o.Preferred {
			portal += " ★"
		}
		fmt.Fprintf(sb, "| %d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			o.Rank,
			portal,
			cell(o.Title),
			money.Format(o.PriceEUR),
			optional(o.Stars, ""),
			optional(o.RecommendPct, " %"),
			nights(o.Nights),
			orDash(o.Board),
			rating(o.Score),
		)
	}
	sb.WriteString("\n★ = bevorzugtes Portal\n")
}

func writeLinks(sb *strings.Builder, offers []offer.RankedOffer) {
	sb.WriteString("\nDetaillierte Links:\n")
	for _, o := range offers {
		fmt.Fprintf(sb, "- %s: %s\n", o.Portal, o.URL)
	}
}

func window(r criteria.DateRange) string {
	if r.IsZero() {
		return "flexibel"
	}
	return date(r.From) + " – " + date(r.To)
}

func date(t *time.Time) string {
	if t == nil {
		return "flexibel"
	}
	return t.Format("02.01.2006")
}

// rating renders 4.5 as "4,5" and 4 as "4".
func rating(f float64) string {
	return strings.Replace(humanize.Ftoa(f), ".", ",", 1)
}

func optional(v *float64, suffix string) string {
	if v == nil {
		return "-"
	}
	return rating(*v) + suffix
}

func nights(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// cell keeps titles from breaking the table.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	return strings.Join(strings.Fields(s), " ")
}
