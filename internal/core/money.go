// Package core holds the transaction data model shared by every engine.
//
// This file contains signed money parsing and formatting. Amounts are kept
// as cents to keep comparisons exact; two-decimal rounding is a display
// concern only.
package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// Money is a signed amount at cent precision. Negative cents are outflow
// (spending), non-negative cents are inflow.
type Money struct {
	Cents int64
}

// ParseAmount converts a signed decimal string to Money. It is the lenient
// import parser: it accepts dot and comma decimal separators, performs
// half-up rounding on the third decimal place, and reports malformed input
// through ok=false with zero money instead of an error, so one bad field
// never aborts a batch.
func ParseAmount(s string) (Money, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, false
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, false
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		// No digits at all ("-", "+", ".").
		return Money{}, false
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, false
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, false
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, false
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, false
	}

	// Take first two fractional digits, half-up rounding on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, true
}

// String renders the amount as a plain decimal with two fractional digits,
// the form used for CSV export and API responses.
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + twoDigits(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// Value returns the amount as a float64 for display aggregation.
// Use cents for comparisons; floats are for presentation only.
func (m Money) Value() float64 {
	return float64(m.Cents) / 100.0
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// MarshalJSON encodes money as a decimal number so snapshots stay
// interchangeable with the documented gateway contract.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both numbers and numeric strings; malformed values
// fall back to zero, mirroring the lenient import behavior.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*m = Money{}
			return nil
		}
		raw = json.Number(s)
	}
	parsed, _ := ParseAmount(raw.String())
	*m = parsed
	return nil
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
