// Package money holds the decimal helpers shared by pricing and persistence.
// All monetary values use shopspring/decimal; float64 is never used for money.
package money

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the zero amount.
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest amount a NUMERIC(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

const (
	maxInputLen = 32
	minExponent = -20
	maxExponent = 10
)

func init() {
	// The quote builder reads amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Parse converts user-entered text into an amount. Blank, malformed,
// negative and out-of-range input all become zero; currency symbols and
// thousands separators are tolerated.
func Parse(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" || len(cleaned) > maxInputLen {
		return Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return Zero
	}
	// Exponent is checked before any comparison: rescaling 1e3000000 to
	// compare it is itself the expensive operation.
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return Zero
	}
	if d.GreaterThan(MaxAmount) {
		return Zero
	}
	return d
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Cents rounds half-up to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount × percent / 100 rounded to cents.
func Percent(amount decimal.Decimal, percent int) decimal.Decimal {
	return Cents(amount.Mul(decimal.NewFromInt(int64(percent))).Div(hundred))
}

// Flex is an amount decoded leniently from JSON: numbers and numeric strings
// are accepted, anything else decodes to zero instead of failing the request.
type Flex struct {
	decimal.Decimal
}

// NewFlex wraps a float literal, mostly for tests and fixtures.
func NewFlex(v float64) Flex {
	return Flex{Decimal: NonNegative(decimal.NewFromFloat(v))}
}

// FlexFromString wraps user text using Parse.
func FlexFromString(raw string) Flex {
	return Flex{Decimal: Parse(raw)}
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.Decimal = Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			f.Decimal = Zero
			return nil
		}
		f.Decimal = Parse(s)
		return nil
	}
	if len(data) > maxInputLen {
		f.Decimal = Zero
		return nil
	}
	f.Decimal = Parse(string(data))
	return nil
}

// MarshalJSON renders the amount as a JSON number.
func (f Flex) MarshalJSON() ([]byte, error) {
	return []byte(f.Decimal.String()), nil
}
