package harmonize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind discriminates harmonized cell values
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
)

// Value is one harmonized cell. The zero Value is null, so records can
// omit fields that have no source column without special casing.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Null returns the null value
func Null() Value {
	return Value{}
}

// Text returns a text value
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind returns the value's kind
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// TextValue returns the text content, or "" for non-text values
func (v Value) TextValue() string {
	if v.kind != KindText {
		return ""
	}
	return v.text
}

// Float returns the numeric content, with ok false for non-numbers
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// String renders the value for output. Null renders as the empty
// string so CSV cells stay blank rather than carrying a sentinel.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// valueJSON is the wire form of Value in run artifacts. Zero fields are
// dropped; the kind disambiguates on the way back in.
type valueJSON struct {
	Kind Kind    `json:"kind"`
	Text string  `json:"text,omitempty"`
	Num  float64 `json:"num,omitempty"`
}

// MarshalJSON encodes the value for run artifacts
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: v.kind, Text: v.text, Num: v.num})
}

// UnmarshalJSON decodes a value from a run artifact
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v.kind, v.text, v.num = w.Kind, w.Text, w.Num
	return nil
}

// Coercer turns raw cell strings into harmonized values. It treats the
// configured missing token as null, case-insensitively.
type Coercer struct {
	missingToken string
}

// NewCoercer creates a coercer for the given missing token
func NewCoercer(missingToken string) *Coercer {
	return &Coercer{missingToken: missingToken}
}

// Text trims the raw cell, mapping empty and missing-token cells to
// null. Text coercion cannot fail.
func (c *Coercer) Text(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, c.missingToken) {
		return Null()
	}
	return Text(trimmed)
}

// Number parses a numeric cell, stripping thousands separators. The
// second return is false when a non-missing cell failed to parse.
func (c *Coercer) Number(raw string) (Value, bool) {
	base := c.Text(raw)
	if base.IsNull() {
		return Null(), true
	}
	cleaned := strings.ReplaceAll(base.TextValue(), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Null(), false
	}
	return Number(f), true
}

// Years parses an experience cell. Survey exports mix plain numbers
// with boundary phrases, which get deterministic numeric stand-ins:
// "Less than N ..." becomes N - 0.5 and "More than N ..." becomes N.
// Anything else non-missing that fails to parse is a parse failure.
func (c *Coercer) Years(raw string) (Value, bool) {
	base := c.Text(raw)
	if base.IsNull() {
		return Null(), true
	}
	text := base.TextValue()

	cleaned := strings.ReplaceAll(text, ",", "")
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return Number(f), true
	}

	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "less than") {
		if n, found := firstNumber(strings.TrimPrefix(lower, "less than")); found {
			return Number(n - 0.5), true
		}
	}
	if strings.HasPrefix(lower, "more than") {
		if n, found := firstNumber(strings.TrimPrefix(lower, "more than")); found {
			return Number(n), true
		}
	}
	return Null(), false
}

// firstNumber extracts the first whitespace-delimited numeric token
func firstNumber(s string) (float64, bool) {
	for _, token := range strings.Fields(s) {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
