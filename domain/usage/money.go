package usage

import (
	"math"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount kept at full float precision. It is rounded to two
// decimal places only when rendered (JSON, CSV, terminal).
type Money float64

// Percent is a share in the range 0..100, rendered with two decimal places.
type Percent float64

// Decimal returns m rounded half away from zero to cents. Non-finite values render as zero.
func (m Money) Decimal() decimal.Decimal { return round2(float64(m)) }

func (m Money) String() string { return m.Decimal().StringFixed(2) }

// MarshalJSON emits m as a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) { return []byte(m.String()), nil }

func (p Percent) String() string { return round2(float64(p)).StringFixed(2) }

// MarshalJSON emits p as a bare JSON number with two decimals.
func (p Percent) MarshalJSON() ([]byte, error) { return []byte(p.String()), nil }

// Share returns 100*part/total, or 0 when total is not positive.
func Share(part, total float64) Percent {
	if total <= 0 || !finite(part) || !finite(total) {
		return 0
	}
	return Percent(100 * part / total)
}

func round2(v float64) decimal.Decimal {
	if !finite(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Finite reports whether v is neither NaN nor ±Inf.
func Finite(v float64) bool { return finite(v) }
