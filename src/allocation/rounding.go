package allocation

import (
	"math"

	"github.com/shopspring/decimal"
)

var defaultMinUnit = decimal.New(1, -2)

// Places returns the number of decimal places implied by minUnit, log10(1/minUnit)
// truncated toward zero: 0.00000001 -> 8, 0.01 -> 2, 0.25 -> 0, 1 -> 0.
// Units above 1 still round to whole numbers.
func Places(minUnit decimal.Decimal) int32 {
	if !minUnit.IsPositive() {
		minUnit = defaultMinUnit
	}
	// the epsilon absorbs float error on exact powers of ten
	places := math.Trunc(math.Log10(1/minUnit.InexactFloat64()) + 1e-9)
	if places < 0 {
		return 0
	}
	return int32(places)
}

// Round rounds value to the precision of minUnit, half away from zero.
// A non-positive minUnit rounds to cents.
func Round(value float64, minUnit decimal.Decimal) decimal.Decimal {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero
	}
	return RoundDecimal(decimal.NewFromFloat(value), minUnit)
}

func RoundDecimal(value, minUnit decimal.Decimal) decimal.Decimal {
	return value.Round(Places(minUnit))
}

// RoundCents is Round with the default 0.01 unit.
func RoundCents(value decimal.Decimal) decimal.Decimal {
	return RoundDecimal(value, defaultMinUnit)
}

// signedPow is x^e keeping the sign of x, so fractional exponents of negative
// bases stay real: -(-x)^e.
func signedPow(x, e float64) float64 {
	if x < 0 {
		return -math.Pow(-x, e)
	}
	return math.Pow(x, e)
}
