// Package risk implements the pre-trade position check.
//
// Checks run before an order reaches any book and never touch book state.
// The policy is pluggable: the engine only sees the Policy interface, so
// per-symbol limits or custom rules can be swapped in without changing it.
package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// Check accepts iff currentPosition + requestedQuantity <= maxPosition. The
// sum is compared exactly: an int64 overflow never wraps into acceptance.
func Check(current, requested, max int64) bool {
	sum := current + requested
	switch {
	case requested > 0 && sum < current:
		return false // true sum is above MaxInt64
	case requested < 0 && sum > current:
		return true // true sum is below MinInt64
	}
	return sum <= max
}

// Policy decides whether a trader holding `current` exposure in symbol may
// add `requested` more.
type Policy interface {
	Check(symbol string, current, requested int64) bool
}

// Exposure maps a signed position and an order onto the (current, requested)
// pair the policy sees. Buys grow long exposure; sells grow short exposure.
func Exposure(side orderbook.Side, position, qty int64) (current, requested int64) {
	if side == orderbook.Sell {
		return -position, qty
	}
	return position, qty
}

// PositionLimit applies one maximum to every symbol.
type PositionLimit struct {
	Max int64
}

func (p PositionLimit) Check(_ string, current, requested int64) bool {
	return Check(current, requested, p.Max)
}

// SymbolLimits applies a per-symbol maximum, falling back to Default.
type SymbolLimits struct {
	Default   int64            `yaml:"default"`
	PerSymbol map[string]int64 `yaml:"symbols"`
}

func (s SymbolLimits) Limit(symbol string) int64 {
	if limit, ok := s.PerSymbol[symbol]; ok {
		return limit
	}
	return s.Default
}

func (s SymbolLimits) Check(symbol string, current, requested int64) bool {
	return Check(current, requested, s.Limit(symbol))
}

// LoadSymbolLimits reads limits from a YAML file:
//
//	default: 1000
//	symbols:
//	  AAPL: 500
func LoadSymbolLimits(path string) (SymbolLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SymbolLimits{}, fmt.Errorf("read risk limits %s: %w", path, err)
	}
	var limits SymbolLimits
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return SymbolLimits{}, fmt.Errorf("decode risk limits %s: %w", path, err)
	}
	if limits.Default < 0 {
		return SymbolLimits{}, fmt.Errorf("risk limits %s: default must not be negative", path)
	}
	for sym, limit := range limits.PerSymbol {
		if limit < 0 {
			return SymbolLimits{}, fmt.Errorf("risk limits %s: limit for %s must not be negative", path, sym)
		}
	}
	return limits, nil
}

// Unlimited accepts everything.
type Unlimited struct{}

func (Unlimited) Check(string, int64, int64) bool { return true }
