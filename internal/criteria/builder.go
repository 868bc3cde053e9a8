package criteria

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/holiday-agent/internal/money"
	"github.com/shopspring/decimal"
)

// ErrEmptyRequest is returned by FromRequest when there is nothing to build from.
var ErrEmptyRequest = errors.New("request has neither free text nor a destination")

var dateLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006", "02/01/2006", "02.01.06", "2.1.06"}

// Builder turns payloads and free text into AgentConfigs.
type Builder struct {
	now   func() time.Time
	rules []Rule
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the clock used to resolve month hints such as "im August".
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRules replaces the free-text extractor rules.
func WithRules(rules ...Rule) Option {
	return func(b *Builder) { b.rules = rules }
}

// NewBuilder creates a Builder with the default extractor rules.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now, rules: DefaultRules()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// FromRequest builds from whichever path the request takes.
func (b *Builder) FromRequest(r Request) (*AgentConfig, error) {
	if r.IsFreeText() {
		return b.BuildFromText(r.FreeText), nil
	}
	if r.Payload == (Payload{}) {
		return nil, ErrEmptyRequest
	}
	return b.Build(r.Payload)
}

// Build validates a structured payload. The first malformed field is
// reported as a *ValidationError.
func (b *Builder) Build(p Payload) (*AgentConfig, error) {
	cfg := &AgentConfig{Travelers: DefaultTravelers}

	if !p.Travelers.Blank() {
		n, err := strconv.Atoi(p.Travelers.String())
		if err != nil {
			return nil, invalid("travelers", p.Travelers, "must be a whole number")
		}
		if n <= 0 {
			return nil, invalid("travelers", p.Travelers, "must be positive")
		}
		cfg.Travelers = n
	}

	cfg.Destination = collapseSpaces(p.Destination.String())
	if cfg.Destination == "" {
		return nil, invalid("destination", p.Destination, "is required")
	}

	from, err := parseDateField("departure_window.from", p.Departure.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDateField("departure_window.to", p.Departure.To)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, invalid("departure_window", p.Departure.To, "ends before it starts")
	}
	cfg.Departure = DateRange{From: from, To: to}

	if !p.Budget.Blank() {
		amount, err := money.ParseAmount(p.Budget.String())
		if err != nil {
			return nil, invalid("budget", p.Budget, "is not an amount")
		}
		if !amount.IsPositive() {
			return nil, invalid("budget", p.Budget, "must be positive")
		}
		cfg.Budget = &amount
	}

	cfg.Lodging = ParseLodging(p.Lodging.String())
	cfg.Board = ParseBoard(p.Board.String())
	cfg.PreferredPortals = ParsePortals(string(p.PreferredPortals))

	if cfg.MinStars, err = parseBounded("min_stars", p.MinStars, 5); err != nil {
		return nil, err
	}
	if cfg.MinRecommendPct, err = parseBounded("min_recommend_pct", p.MinRecommendPct, 100); err != nil {
		return nil, err
	}

	cfg.Notes = p.Notes.String()
	return cfg, nil
}

// BuildFromText extracts what it can from a free-text request. It never
// fails; fields no rule recognizes stay unset.
func (b *Builder) BuildFromText(text string) *AgentConfig {
	cfg := &AgentConfig{Notes: strings.TrimSpace(text)}
	now := b.now()
	for _, r := range b.rules {
		r.Apply(text, cfg, now)
	}
	if cfg.Travelers <= 0 {
		cfg.Travelers = DefaultTravelers
	}
	return cfg
}

func parseDateField(name string, f Field) (*time.Time, error) {
	if f.Blank() {
		return nil, nil
	}
	d, ok := parseDate(f.String())
	if !ok {
		return nil, invalid(name, f, "is not a date (expected YYYY-MM-DD or DD.MM.YYYY)")
	}
	return &d, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func parseBounded(name string, f Field, max float64) (*float64, error) {
	if f.Blank() {
		return nil, nil
	}
	v, err := money.ParseFloat(f.String())
	if err != nil {
		return nil, invalid(name, f, "is not a number")
	}
	if v < 0 || v > max {
		return nil, invalid(name, f, "must be between 0 and %s", decimal.NewFromFloat(max).String())
	}
	return &v, nil
}

// ParsePortals splits a comma-separated portal list into an ordered set of
// bare, lower-cased domains.
func ParsePortals(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		d := Domain(part)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// Domain reduces a portal name or URL to its bare lower-case host:
// "https://www.TUI.com/reisen" becomes "tui.com".
func Domain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.Trim(s, ".")
}

// ParseLodging maps common lodging words onto the known kinds.
func ParseLodging(s string) Lodging {
	s = collapseSpaces(s)
	switch strings.ToLower(s) {
	case "":
		return LodgingAny
	case "hotel", "hotels":
		return LodgingHotel
	case "apartment", "appartement", "ferienwohnung", "fewo", "flat":
		return LodgingApartment
	case "ferienhaus", "holiday home", "holiday_home", "villa", "house":
		return LodgingHolidayHome
	case "resort", "club", "clubanlage":
		return LodgingResort
	}
	return Lodging(s)
}

// ParseBoard maps board (Verpflegung) wording onto its German label.
func ParseBoard(s string) string {
	s = collapseSpaces(s)
	switch strings.ToLower(s) {
	case "":
		return ""
	case "all inclusive", "all-inclusive", "ai", "alles inklusive":
		return BoardAllInclusive
	case "vollpension", "full board", "vp":
		return BoardFullBoard
	case "halbpension", "half board", "hp":
		return BoardHalfBoard
	case "frühstück", "fruehstueck", "breakfast", "bed & breakfast":
		return BoardBreakfast
	case "ohne verpflegung", "room only", "nur übernachtung":
		return BoardRoomOnly
	}
	return s
}

const (
	BoardAllInclusive = "All Inclusive"
	BoardFullBoard    = "Vollpension"
	BoardHalfBoard    = "Halbpension"
	BoardBreakfast    = "Frühstück"
	BoardRoomOnly     = "Ohne Verpflegung"
)

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
