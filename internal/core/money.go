// Package core holds the domain model of the finance tracker: money
// handling, the Category/Transaction/Budget entities and their business-rule
// validation, and the error taxonomy shared by every layer.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in integer cents. Calculations always stay in cents;
// floating point only appears at the formatting boundary.
type Money struct {
	Cents int64
}

// Validate reports whether the amount is strictly positive.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ValidationFailed("Amount must be greater than 0")
	}
	return nil
}

// Float64 returns the decimal value for display and percentages.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m - other. The result may be negative (overspent budgets).
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// String renders the amount with two decimals, e.g. "95.99" or "-12.00".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// MarshalJSON emits the amount as a plain decimal number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. Sign is
// preserved; range checks belong to validation, not decoding.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	cents, err := parseSignedCents(s)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}

// ParseDecimalToCents converts a decimal string to positive cents with
// half-up rounding on the third decimal place. Both "12.34" and "12,34" are
// accepted. Zero and negative amounts are rejected.
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseSignedCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ValidationFailed("Amount must be greater than 0")
	}
	return cents, nil
}

func parseSignedCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ValidationFailed("Amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")

	// Only a minus sign is recognized; "+5" is rejected as malformed.
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ValidationFailed("Invalid amount format")
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ValidationFailed("Invalid amount format")
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ValidationFailed("Invalid amount format")
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ValidationFailed("Invalid amount format")
	}

	// First two fractional digits are cents; half-up rounding on the third.
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
	return cents, nil
}
