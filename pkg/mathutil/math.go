package mathutil

import (
	"github.com/shopspring/decimal"
)

func init() {
	decimal.DivisionPrecision = 8
}

// MidPrice returns (bid + ask) / 2.
func MidPrice(bid, ask decimal.Decimal) decimal.Decimal {
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}

// Spread returns ask - bid, clamped at zero for crossed inputs.
func Spread(bid, ask decimal.Decimal) decimal.Decimal {
	s := ask.Sub(bid)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// SafeDiv returns x / y, or zero when y is zero. Upstream reserves and
// amounts can legitimately be zero and must never produce NaN/Inf prices.
func SafeDiv(x, y decimal.Decimal) decimal.Decimal {
	if y.IsZero() {
		return decimal.Zero
	}
	return x.Div(y)
}

// WeightedAverage returns sum(value_i * weight_i) / sum(weight_i). When all
// weights are zero it falls back to the plain average of values, and it
// returns zero for an empty or mismatched input.
func WeightedAverage(values, weights []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 || len(values) != len(weights) {
		return decimal.Zero
	}

	num, den := decimal.Zero, decimal.Zero
	for i, v := range values {
		num = num.Add(v.Mul(weights[i]))
		den = den.Add(weights[i])
	}
	if den.IsZero() {
		sum := decimal.Zero
		for _, v := range values {
			sum = sum.Add(v)
		}
		return SafeDiv(sum, decimal.NewFromInt(int64(len(values))))
	}
	return num.Div(den)
}
