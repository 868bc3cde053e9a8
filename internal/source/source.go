package source

import (
	"context"
	"fmt"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/offer"
)

// Source produces raw offers for a search. Implementations must honour ctx.
type Source interface {
	Name() string
	Fetch(ctx context.Context, cfg *criteria.AgentConfig) ([]offer.RawOffer, error)
}

// Error is a failed fetch. Callers usually degrade it to an empty result.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fixed returns the same offers, or the same error, for every search.
type Fixed struct {
	Offers []offer.RawOffer
	Err    error
}

// NewFixed creates a Fixed source over offers.
func NewFixed(offers ...offer.RawOffer) *Fixed {
	return &Fixed{Offers: offers}
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Fetch(ctx context.Context, _ *criteria.AgentConfig) ([]offer.RawOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Source: f.Name(), Err: err}
	}
	if f.Err != nil {
		return nil, &Error{Source: f.Name(), Err: f.Err}
	}
	out := make([]offer.RawOffer, len(f.Offers))
	copy(out, f.Offers)
	return out, nil
}
