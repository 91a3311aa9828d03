// Package fee prices the transaction cost of a trade.
package fee

import "github.com/shopspring/decimal"

// DefaultRate is charged when no rate is configured (0.1%).
var DefaultRate = decimal.New(1, -3)

// Calculator is the fee policy applied once per trade.
type Calculator interface {
	Fee(price, qty int64) decimal.Decimal
}

// Compute returns price * qty * rate.
func Compute(price, qty int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(price).Mul(decimal.NewFromInt(qty)).Mul(rate)
}

// NetValue is the trade notional after the fee is subtracted.
func NetValue(price, qty int64, fee decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(price).Mul(decimal.NewFromInt(qty)).Sub(fee)
}

// FlatRate charges a fixed fraction of notional.
type FlatRate struct {
	Rate decimal.Decimal
}

func NewFlatRate(rate decimal.Decimal) FlatRate { return FlatRate{Rate: rate} }

// FromBps builds a flat rate from basis points, e.g. 5 bps = 0.05%.
func FromBps(bps int64) FlatRate { return FlatRate{Rate: decimal.New(bps, -4)} }

func (f FlatRate) Fee(price, qty int64) decimal.Decimal {
	return Compute(price, qty, f.Rate)
}

// Zero charges nothing.
type Zero struct{}

func (Zero) Fee(int64, int64) decimal.Decimal { return decimal.Zero }
