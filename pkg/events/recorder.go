package events

import (
	"sync"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// Recorder keeps every notification in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) OrderAccepted(o orderbook.Order) {
	r.add(Event{Type: OrderAccepted, Symbol: o.Symbol, Order: &o})
}

func (r *Recorder) OrderRejected(o orderbook.Order, reason error) {
	r.add(Event{Type: OrderRejected, Symbol: o.Symbol, Order: &o, Reason: reason.Error()})
}

func (r *Recorder) TradeExecuted(t orderbook.Trade) {
	r.add(Event{Type: TradeExecuted, Symbol: t.Symbol, Trade: &t})
}

func (r *Recorder) OrderCancelled(o orderbook.Order, reason string) {
	r.add(Event{Type: OrderCancelled, Symbol: o.Symbol, Order: &o, Reason: reason})
}

func (r *Recorder) StopTriggered(o orderbook.Order, marketPrice int64) {
	r.add(Event{Type: StopTriggered, Symbol: o.Symbol, Order: &o, MarketPrice: marketPrice})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Of returns the recorded events of one type.
func (r *Recorder) Of(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Trades() []orderbook.Trade {
	var out []orderbook.Trade
	for _, e := range r.Of(TradeExecuted) {
		out = append(out, *e.Trade)
	}
	return out
}
