package risk

import (
	"math"
	"sync"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// Positions tracks the signed net quantity per trader per symbol
// (+ve = long, -ve = short). It is fed from executed trades.
type Positions struct {
	mu       sync.RWMutex
	byTrader map[string]map[string]int64 // trader -> symbol -> net qty
}

func NewPositions() *Positions {
	return &Positions{byTrader: make(map[string]map[string]int64)}
}

func (p *Positions) Get(trader, symbol string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byTrader[trader][symbol]
}

// Apply books both legs of a trade.
func (p *Positions) Apply(t orderbook.Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(t.BuyTraderID, t.Symbol, t.Qty)
	p.add(t.SellTraderID, t.Symbol, -t.Qty)
}

// Set overrides a position, e.g. when seeding from an external account system.
func (p *Positions) Set(trader, symbol string, qty int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(trader, symbol, qty-p.byTrader[trader][symbol])
}

func (p *Positions) add(trader, symbol string, delta int64) {
	if trader == "" {
		return
	}
	acct := p.byTrader[trader]
	if acct == nil {
		acct = make(map[string]int64)
		p.byTrader[trader] = acct
	}
	acct[symbol] = clampAdd(acct[symbol], delta)
}

// clampAdd saturates at ±MaxInt64 so a position can always be negated.
func clampAdd(a, b int64) int64 {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt64
	case b < 0 && sum > a, sum == math.MinInt64:
		return -math.MaxInt64
	}
	return sum
}

// Snapshot returns a copy of a trader's positions.
func (p *Positions) Snapshot(trader string) map[string]int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]int64, len(p.byTrader[trader]))
	for sym, qty := range p.byTrader[trader] {
		out[sym] = qty
	}
	return out
}
