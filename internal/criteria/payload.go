package criteria

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a form value as submitted. Web forms post strings, API clients
// post numbers; both decode into the literal text. Arrays of strings are
// joined with commas so preferred portals may be sent either way.
type Field string

func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field(s)
	case len(b) > 0 && b[0] == '[':
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("field: expected a list of strings: %w", err)
		}
		*f = Field(strings.Join(items, ","))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("field: expected string or number, got %s", b)
		}
		*f = Field(n.String())
	}
	return nil
}

// Blank reports whether the field carries no value.
func (f Field) Blank() bool { return strings.TrimSpace(string(f)) == "" }

func (f Field) String() string { return strings.TrimSpace(string(f)) }

// Window is the submitted departure window.
type Window struct {
	From Field `json:"from,omitempty"`
	To   Field `json:"to,omitempty"`
}

// Payload is the structured search form.
type Payload struct {
	Travelers        Field  `json:"travelers,omitempty"`
	Destination      Field  `json:"destination,omitempty"`
	Departure        Window `json:"departure_window"`
	Budget           Field  `json:"budget,omitempty"`
	Lodging          Field  `json:"lodging,omitempty"`
	Board            Field  `json:"board,omitempty"`
	PreferredPortals Field  `json:"preferred_portals,omitempty"`
	MinStars         Field  `json:"min_stars,omitempty"`
	MinRecommendPct  Field  `json:"min_recommend_pct,omitempty"`
	Notes            Field  `json:"notes,omitempty"`
}

// Request is what a front end submits: either a structured payload or a
// single free-text sentence. Free text wins when both are present.
type Request struct {
	Payload
	FreeText string `json:"free_text,omitempty"`
}

// IsFreeText reports whether the request should take the text path.
func (r Request) IsFreeText() bool { return strings.TrimSpace(r.FreeText) != "" }

// Validate checks a structured request without keeping the result.
// Free-text requests always validate.
func (r Request) Validate() error {
	if r.IsFreeText() {
		return nil
	}
	_, err := NewBuilder().Build(r.Payload)
	return err
}
