package ledger

import (
	"github.com/shopspring/decimal"
)

// Stats summarizes the trades of one symbol.
type Stats struct {
	Symbol   string          `json:"symbol"`
	Count    int             `json:"count"`
	Volume   int64           `json:"volume"`
	Notional decimal.Decimal `json:"notional"`
	Fees     decimal.Decimal `json:"fees"`
	Net      decimal.Decimal `json:"net"`
	VWAP     decimal.Decimal `json:"vwap"`
	Last     int64           `json:"last"`
	High     int64           `json:"high"`
	Low      int64           `json:"low"`
}

// TraderStats summarizes one trader's executions across all symbols.
type TraderStats struct {
	Trader   string          `json:"trader"`
	Bought   int64           `json:"bought"`
	Sold     int64           `json:"sold"`
	Spent    decimal.Decimal `json:"spent"`
	Received decimal.Decimal `json:"received"`
	Fees     decimal.Decimal `json:"fees"`
}

func (l *Ledger) Stats(symbol string) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Symbol: symbol}
	for _, i := range l.bySymbol[symbol] {
		t := l.trades[i]
		s.Count++
		s.Volume += t.Qty
		s.Notional = s.Notional.Add(t.Notional())
		s.Fees = s.Fees.Add(t.Fee)
		s.Net = s.Net.Add(t.NetValue)
		s.Last = t.Price
		if s.Count == 1 || t.Price > s.High {
			s.High = t.Price
		}
		if s.Count == 1 || t.Price < s.Low {
			s.Low = t.Price
		}
	}
	if s.Volume > 0 {
		s.VWAP = s.Notional.Div(decimal.NewFromInt(s.Volume))
	}
	return s
}

// TraderStats attributes each trade's fee to the seller, who receives the net
// value; the buyer pays full notional.
func (l *Ledger) TraderStats(trader string) TraderStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := TraderStats{Trader: trader}
	for _, t := range l.trades {
		if t.BuyTraderID == trader {
			s.Bought += t.Qty
			s.Spent = s.Spent.Add(t.Notional())
		}
		if t.SellTraderID == trader {
			s.Sold += t.Qty
			s.Received = s.Received.Add(t.NetValue)
			s.Fees = s.Fees.Add(t.Fee)
		}
	}
	return s
}

// Symbols lists every symbol that has traded.
func (l *Ledger) Symbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.bySymbol))
	for sym := range l.bySymbol {
		out = append(out, sym)
	}
	return out
}
