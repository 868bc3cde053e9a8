package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Base is the currency every normalized amount is expressed in.
const Base = "EUR"

var (
	ErrUnparseable     = errors.New("unparseable amount")
	ErrUnknownCurrency = errors.New("unknown currency")
)

// rates converts one unit of a currency into EUR.
var rates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("1.17"),
	"CHF": decimal.RequireFromString("1.04"),
}

var currencyAliases = map[string]string{
	"€":     "EUR",
	"eur":   "EUR",
	"euro":  "EUR",
	"euros": "EUR",
	"$":     "USD",
	"usd":   "USD",
	"£":     "GBP",
	"gbp":   "GBP",
	"chf":   "CHF",
	"sfr":   "CHF",
}

var (
	numberRe     = regexp.MustCompile(`^\d[\d.,]*$`)
	groupedDotRe = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	groupedComRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	symbolRe     = regexp.MustCompile(`(?i)(€|\$|£|euros?|eur|usd|gbp|chf|sfr)`)
)

// ParseAmount reads a non-negative amount written in German or English
// notation: "1.200€", "1.200,50", "1,200.50", "999.99", "90%".
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := symbolRe.ReplaceAllString(s, "")
	cleaned = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "%", "").Replace(cleaned)
	if !numberRe.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	d, err := decimal.NewFromString(normalizeSeparators(cleaned))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	return d, nil
}

// ParseFloat is ParseAmount for plain numbers such as star ratings ("4,5").
func ParseFloat(s string) (float64, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if groupedComRe.MatchString(s) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		// "1.200" is a German thousands separator, "999.99" a decimal point.
		if groupedDotRe.MatchString(s) {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// Currency maps a symbol or code to an ISO code. Empty input means Base.
func Currency(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Base, nil
	}
	if code, ok := currencyAliases[strings.ToLower(s)]; ok {
		return code, nil
	}
	code := strings.ToUpper(s)
	if _, ok := rates[code]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
}

// ToBase converts amount in currency into EUR, rounded to cents.
func ToBase(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	code, err := Currency(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rates[code]).Round(2), nil
}

// Format renders an EUR amount the German way, "1.200 €" or "1.200,50 €".
func Format(d decimal.Decimal) string {
	f := d.InexactFloat64()
	if d.Equal(d.Truncate(0)) {
		return humanize.FormatFloat("#.###,", f) + " €"
	}
	return humanize.FormatFloat("#.###,##", f) + " €"
}
