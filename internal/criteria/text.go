package criteria

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nidhogg/holiday-agent/internal/money"
)

// Rule fills at most one AgentConfig field from free text. A rule that
// finds nothing leaves cfg untouched.
type Rule struct {
	Name  string
	Apply func(text string, cfg *AgentConfig, now time.Time)
}

// DefaultRules returns the extractor chain in evaluation order. The month
// rule runs after the date-range rule and only fills an empty window.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "travelers", Apply: extractTravelers},
		{Name: "date_range", Apply: extractDateRange},
		{Name: "month", Apply: extractMonth},
		{Name: "destination", Apply: extractDestination},
		{Name: "budget", Apply: extractBudget},
		{Name: "min_stars", Apply: extractStars},
		{Name: "min_recommend_pct", Apply: extractRecommendation},
		{Name: "lodging", Apply: extractLodging},
		{Name: "board", Apply: extractBoard},
		{Name: "preferred_portals", Apply: extractPortals},
	}
}

var (
	travelersRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:personen|person|leute|reisende|erwachsene|people|persons|travell?ers|adults|pax)\b`)
	companyRe   = regexp.MustCompile(`(?i)\bzu\s+(zweit|dritt|viert|fünft|sechst)\b`)

	datePart    = `(\d{1,2}\.\d{1,2}\.\d{2,4}|\d{4}-\d{2}-\d{2})`
	dateRangeRe = regexp.MustCompile(`(?i)` + datePart + `\s*(?:bis|–|to|until)\s*` + datePart + `|` + datePart + `\s+-\s+` + datePart)
	dateStartRe = regexp.MustCompile(`(?i)\b(?:ab|from|am|on|starting)\s+` + datePart)

	// Abbreviations and the English "may" double as ordinary words, so they
	// only count after a time preposition.
	monthRe      = regexp.MustCompile(`(?i)\b(januar|january|februar|february|märz|maerz|march|april|mai|juni|june|juli|july|august|september|oktober|october|november|dezember|december)\b`)
	monthShortRe = regexp.MustCompile(`(?i)\b(?:in|im|ab|bis|from|until|anfang|mitte|ende|early|mid|late)\s+(may|jan|feb|apr|aug|sept|sep|okt|oct|nov|dez|dec)\b`)

	destinationRe = regexp.MustCompile(`(?i)(?:^|[\s,])(?:nach|to|richtung)\s+`)
	wordRe        = regexp.MustCompile(`^[\p{L}][\p{L}\-']*$`)

	// "auf Kreta", "in der Türkei": weaker hints, tried only when no
	// directional preposition names a place.
	locativeRe = regexp.MustCompile(`(?i)(?:^|[\s,])(?:auf|in)\s+(?:(?:der|die|den|dem|the)\s+)?`)

	budgetKeywordRe  = regexp.MustCompile(`(?i)\bbudget\s*(?:von|of|:)?\s*(?:ca\.?\s*|max(?:imal)?\.?\s*)?(\d[\d.,]*)`)
	budgetCurrencyRe = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(?:€|eur(?:o|os)?\b)`)

	starsRe = regexp.MustCompile(`(?i)(\d(?:[.,]\d)?)\s*-?\s*(?:stern(?:en?)?|stars?)\b`)

	recommendAfterRe  = regexp.MustCompile(`(?i)(\d{1,3}(?:[.,]\d+)?)\s*%\s*(?:weiter)?(?:empfehlung|empfehlungsrate|recommendation|recommended|recommend)`)
	recommendBeforeRe = regexp.MustCompile(`(?i)(?:weiter)?(?:empfehlung(?:srate)?|recommendation(?:\s+rate)?)\s*(?:von|of|:)?\s*(?:mindestens|min\.?|at least|über|ueber|over)?\s*(\d{1,3}(?:[.,]\d+)?)\s*%`)

	portalRe = regexp.MustCompile(`(?i)\b((?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+(?:de|com|at|ch|net|eu|org|travel))\b`)
)

var companyWords = map[string]int{"zweit": 2, "dritt": 3, "viert": 4, "fünft": 5, "sechst": 6}

var months = map[string]time.Month{
	"januar": time.January, "january": time.January, "jan": time.January,
	"februar": time.February, "february": time.February, "feb": time.February,
	"märz": time.March, "maerz": time.March, "march": time.March,
	"april": time.April, "apr": time.April,
	"mai": time.May, "may": time.May,
	"juni": time.June, "june": time.June,
	"juli": time.July, "july": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"oktober": time.October, "october": time.October, "okt": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"dezember": time.December, "december": time.December, "dez": time.December, "dec": time.December,
}

// stopWords end a destination phrase.
var stopWords = map[string]bool{
	"im": true, "in": true, "am": true, "ab": true, "vom": true, "von": true, "bis": true,
	"für": true, "fuer": true, "mit": true, "und": true, "oder": true, "zum": true, "zur": true,
	"budget": true, "mindestens": true, "maximal": true, "max": true, "unter": true, "über": true,
	"ueber": true, "via": true, "hotel": true, "for": true, "from": true, "with": true, "and": true,
	"on": true, "at": true, "under": true,
}

// notPlaces are capitalised nouns that follow "auf" or "in" without naming
// a destination.
var notPlaces = map[string]bool{
	"urlaub": true, "reise": true, "ruhe": true, "hotel": true, "hotels": true, "ferien": true,
	"empfehlung": true, "anfrage": true, "zukunft": true, "sommer": true, "winter": true,
	"frühling": true, "herbst": true, "kürze": true, "summer": true, "nähe": true,
	"strandnähe": true, "strandnaehe": true, "zentrumsnähe": true,
}

func extractTravelers(text string, cfg *AgentConfig, _ time.Time) {
	if m := travelersRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			cfg.Travelers = n
		}
		return
	}
	if m := companyRe.FindStringSubmatch(text); m != nil {
		cfg.Travelers = companyWords[strings.ToLower(m[1])]
	}
}

func extractDateRange(text string, cfg *AgentConfig, _ time.Time) {
	if m := dateRangeRe.FindStringSubmatch(text); m != nil {
		a, b := m[1], m[2]
		if a == "" {
			a, b = m[3], m[4]
		}
		from, okFrom := parseDate(a)
		to, okTo := parseDate(b)
		if okFrom && okTo && !to.Before(from) {
			cfg.Departure = DateRange{From: &from, To: &to}
		}
		return
	}
	if m := dateStartRe.FindStringSubmatch(text); m != nil {
		if from, ok := parseDate(m[1]); ok {
			cfg.Departure = DateRange{From: &from}
		}
	}
}

// extractMonth resolves a month name to that month's full window in its
// next occurrence: "im August" in October means next year's August.
func extractMonth(text string, cfg *AgentConfig, now time.Time) {
	if !cfg.Departure.IsZero() {
		return
	}
	name := earliestGroup(text, monthRe, monthShortRe)
	if name == "" {
		return
	}
	month := months[strings.ToLower(name)]
	year := now.Year()
	if month < now.Month() {
		year++
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	cfg.Departure = DateRange{From: &from, To: &to}
}

// earliestGroup returns the first capture group of whichever pattern
// matches first in text.
func earliestGroup(text string, res ...*regexp.Regexp) string {
	best, pos := "", len(text)+1
	for _, re := range res {
		if loc := re.FindStringSubmatchIndex(text); loc != nil && loc[0] < pos {
			best, pos = text[loc[2]:loc[3]], loc[0]
		}
	}
	return best
}

func extractDestination(text string, cfg *AgentConfig, _ time.Time) {
	for _, loc := range destinationRe.FindAllStringIndex(text, -1) {
		if dest := destinationWords(text[loc[1]:]); dest != "" {
			cfg.Destination = dest
			return
		}
	}
	for _, loc := range locativeRe.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		first, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsUpper(first) {
			continue
		}
		dest := destinationWords(rest)
		if dest == "" || notPlaces[strings.ToLower(strings.Fields(dest)[0])] {
			continue
		}
		cfg.Destination = dest
		return
	}
}

// destinationWords takes up to four words from the start of s, stopping at
// punctuation, a stop word, a month name or anything that is not a word.
func destinationWords(s string) string {
	var words []string
	for _, tok := range strings.Fields(s) {
		word := strings.TrimRight(tok, ",.;:!?)")
		lower := strings.ToLower(word)
		if word == "" || stopWords[lower] || !wordRe.MatchString(word) {
			break
		}
		if _, isMonth := months[lower]; isMonth {
			break
		}
		words = append(words, word)
		if word != tok || len(words) == 4 {
			break
		}
	}
	return strings.Join(words, " ")
}

func extractBudget(text string, cfg *AgentConfig, _ time.Time) {
	for _, re := range []*regexp.Regexp{budgetKeywordRe, budgetCurrencyRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := money.ParseAmount(strings.TrimRight(m[1], ".,"))
		if err == nil && amount.IsPositive() {
			cfg.Budget = &amount
			return
		}
	}
}

func extractStars(text string, cfg *AgentConfig, _ time.Time) {
	m := starsRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	if v, err := money.ParseFloat(m[1]); err == nil && v >= 0 && v <= 5 {
		cfg.MinStars = &v
	}
}

func extractRecommendation(text string, cfg *AgentConfig, _ time.Time) {
	for _, re := range []*regexp.Regexp{recommendAfterRe, recommendBeforeRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, err := money.ParseFloat(m[1]); err == nil && v >= 0 && v <= 100 {
			cfg.MinRecommendPct = &v
			return
		}
	}
}

var lodgingWords = []struct {
	re   *regexp.Regexp
	kind Lodging
}{
	{regexp.MustCompile(`(?i)\b(?:ferienwohnung|apartment|appartement|fewo)\b`), LodgingApartment},
	{regexp.MustCompile(`(?i)\b(?:ferienhaus|villa|holiday home)\b`), LodgingHolidayHome},
	{regexp.MustCompile(`(?i)\b(?:resort|clubanlage|club)\b`), LodgingResort},
	{regexp.MustCompile(`(?i)\bhotels?\b`), LodgingHotel},
}

func extractLodging(text string, cfg *AgentConfig, _ time.Time) {
	for _, w := range lodgingWords {
		if w.re.MatchString(text) {
			cfg.Lodging = w.kind
			return
		}
	}
}

var boardWords = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\b(?:all[\s-]inclusive|alles inklusive)\b`), BoardAllInclusive},
	{regexp.MustCompile(`(?i)\b(?:vollpension|full board)\b`), BoardFullBoard},
	{regexp.MustCompile(`(?i)\b(?:halbpension|half board)\b`), BoardHalfBoard},
	{regexp.MustCompile(`(?i)(?:frühstück|fruehstueck|\bbreakfast\b)`), BoardBreakfast},
}

func extractBoard(text string, cfg *AgentConfig, _ time.Time) {
	for _, w := range boardWords {
		if w.re.MatchString(text) {
			cfg.Board = w.label
			return
		}
	}
}

func extractPortals(text string, cfg *AgentConfig, _ time.Time) {
	found := portalRe.FindAllString(text, -1)
	if len(found) == 0 {
		return
	}
	cfg.PreferredPortals = ParsePortals(strings.Join(found, ","))
}
