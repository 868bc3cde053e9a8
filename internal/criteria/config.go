package criteria

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTravelers applies when neither form nor text names a traveler count.
const DefaultTravelers = 2

// Lodging is a lodging preference. Known kinds use the constants below;
// anything else is kept as the user wrote it.
type Lodging string

const (
	LodgingAny         Lodging = ""
	LodgingHotel       Lodging = "hotel"
	LodgingApartment   Lodging = "apartment"
	LodgingHolidayHome Lodging = "holiday_home"
	LodgingResort      Lodging = "resort"
)

// Label returns the German display name used in reports.
func (l Lodging) Label() string {
	switch l {
	case LodgingHotel:
		return "Hotel"
	case LodgingApartment:
		return "Ferienwohnung"
	case LodgingHolidayHome:
		return "Ferienhaus"
	case LodgingResort:
		return "Resort"
	}
	return string(l)
}

// DateRange is an optional departure window. Either bound may be nil.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool { return r.From == nil && r.To == nil }

// AgentConfig is the canonical, validated form of one search request.
// Unset optional values are nil or empty; it is never modified after Build.
type AgentConfig struct {
	Travelers        int              `json:"travelers"`
	Destination      string           `json:"destination,omitempty"`
	Departure        DateRange        `json:"departure_window"`
	Budget           *decimal.Decimal `json:"budget,omitempty"`
	Lodging          Lodging          `json:"lodging,omitempty"`
	Board            string           `json:"board,omitempty"`
	PreferredPortals []string         `json:"preferred_portals,omitempty"`
	MinStars         *float64         `json:"min_stars,omitempty"`
	MinRecommendPct  *float64         `json:"min_recommend_pct,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}

// IsPreferred reports whether domain, or a parent of it, is one of the
// preferred portals.
func (c *AgentConfig) IsPreferred(domain string) bool {
	domain = Domain(domain)
	if domain == "" {
		return false
	}
	for _, p := range c.PreferredPortals {
		if domain == p || strings.HasSuffix(domain, "."+p) {
			return true
		}
	}
	return false
}

// ValidationError describes a malformed structured field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

func invalid(field string, value Field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Value: string(value), Message: fmt.Sprintf(format, args...)}
}
