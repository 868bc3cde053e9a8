package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/money"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Hit is one web search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// PortalOptions tunes a PortalSearch.
type PortalOptions struct {
	MaxResults        int
	RequestsPerSecond float64
}

// PortalSearch finds offers through web search: first restricted to each
// preferred portal, then unrestricted while results are still short.
type PortalSearch struct {
	searcher   Searcher
	limiter    *rate.Limiter
	maxResults int
	logger     *zap.Logger
}

// NewPortalSearch creates a PortalSearch backed by searcher.
func NewPortalSearch(searcher Searcher, opts PortalOptions, logger *zap.Logger) *PortalSearch {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &PortalSearch{
		searcher:   searcher,
		limiter:    rate.NewLimiter(limit, 1),
		maxResults: opts.MaxResults,
		logger:     logger,
	}
}

func (p *PortalSearch) Name() string { return "portal" }

// Fetch returns whatever offers the queries yielded. It fails only when no
// query produced anything and at least one query errored.
func (p *PortalSearch) Fetch(ctx context.Context, cfg *criteria.AgentConfig) ([]offer.RawOffer, error) {
	seen := make(map[string]bool)
	var (
		offers []offer.RawOffer
		errs   []error
	)

	run := func(query string) bool {
		if err := p.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			return false
		}
		hits, err := p.searcher.Search(ctx, query)
		if err != nil {
			p.logger.Warn("portal query failed", zap.String("query", query), zap.Error(err))
			errs = append(errs, fmt.Errorf("query %q: %w", query, err))
			return ctx.Err() == nil
		}
		for _, h := range hits {
			if h.URL == "" || seen[h.URL] {
				continue
			}
			seen[h.URL] = true
			offers = append(offers, parseHit(h, cfg))
			if len(offers) >= p.maxResults {
				return false
			}
		}
		return true
	}

	base := searchTerms(cfg)
	for _, portal := range cfg.PreferredPortals {
		if !run(base + " site:" + portal) {
			break
		}
	}
	if len(offers) < p.maxResults && ctx.Err() == nil {
		run(base)
	}

	p.logger.Debug("portal search finished",
		zap.Int("offers", len(offers)),
		zap.Int("errors", len(errs)))

	if len(offers) == 0 && len(errs) > 0 {
		return nil, &Error{Source: p.Name(), Err: errors.Join(errs...)}
	}
	return offers, nil
}

func searchTerms(cfg *criteria.AgentConfig) string {
	terms := []string{"pauschalreise"}
	if cfg.Destination != "" {
		terms = append(terms, strings.ToLower(cfg.Destination))
	}
	if cfg.Departure.From != nil {
		terms = append(terms, cfg.Departure.From.Format("01/2006"))
	}
	if cfg.Board != "" {
		terms = append(terms, strings.ToLower(cfg.Board))
	}
	return strings.Join(terms, " ")
}

var (
	hitPriceRe     = regexp.MustCompile(`(?i)(\d{1,3}(?:[.\s]\d{3})+(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)\s?(€|eur\b|euro\b|euros\b)`)
	hitStarsRe     = regexp.MustCompile(`(?i)(\d(?:[.,]\d)?)\s*-?\s*(?:stern(?:en?)?|stars?)\b`)
	hitRecommendRe = regexp.MustCompile(`(?i)(\d{1,3})\s?%[^%]*?(?:weiterempfehlung|empfehlung|recommended|bewertung)`)
	hitNightsRe    = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:nächte|naechte|nights|übernachtungen)`)
	hitDaysRe      = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:tage|days)\b`)
)

// parseHit turns a search result into a RawOffer. Fields it cannot find
// stay empty; the processor drops offers without a usable price.
func parseHit(h Hit, cfg *criteria.AgentConfig) offer.RawOffer {
	text := h.Title + " " + h.Snippet
	raw := offer.RawOffer{
		Portal:      criteria.Domain(h.URL),
		Title:       strings.TrimSpace(h.Title),
		Destination: cfg.Destination,
		URL:         h.URL,
		Lodging:     string(criteria.ParseLodging(lodgingIn(text))),
		Board:       boardIn(text),
	}

	if m := hitPriceRe.FindStringSubmatch(text); m != nil {
		raw.Price = m[1]
		raw.Currency = m[2]
	}
	if m := hitStarsRe.FindStringSubmatch(text); m != nil {
		if v, err := money.ParseFloat(m[1]); err == nil && v <= 5 {
			raw.Stars = &v
		}
	}
	if m := hitRecommendRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 100 {
			raw.RecommendPct = &v
		}
	}
	if m := hitNightsRe.FindStringSubmatch(text); m != nil {
		raw.Nights, _ = strconv.Atoi(m[1])
	} else if m := hitDaysRe.FindStringSubmatch(text); m != nil {
		if days, _ := strconv.Atoi(m[1]); days > 1 {
			raw.Nights = days - 1
		}
	}
	return raw
}

func lodgingIn(text string) string {
	lower := strings.ToLower(text)
	for _, word := range []string{"ferienwohnung", "apartment", "ferienhaus", "villa", "resort", "hotel"} {
		if strings.Contains(lower, word) {
			return word
		}
	}
	return ""
}

func boardIn(text string) string {
	lower := strings.ToLower(text)
	for _, word := range []string{"all inclusive", "all-inclusive", "vollpension", "halbpension", "frühstück"} {
		if strings.Contains(lower, word) {
			return criteria.ParseBoard(word)
		}
	}
	return ""
}
