// README: Common value objects used across modules.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currency is the only currency the marketplace settles in.
const Currency = "THB"

// Money is an amount in minor units (satang).
type Money int64

// FromFloat converts a major-unit amount (e.g. 55.8) to Money, rounding half away from zero.
func FromFloat(v float64) Money {
	return Money(math.Round(v * 100))
}

func (m Money) Float() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Percent returns round(m * rate) in minor units.
func (m Money) Percent(rate float64) Money {
	return Money(math.Round(float64(m) * rate))
}

// MarshalJSON renders the amount in major units, e.g. 55.80.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "null" || raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %q: %w", raw, err)
	}
	*m = FromFloat(v)
	return nil
}
