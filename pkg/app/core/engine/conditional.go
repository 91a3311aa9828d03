package engine

import (
	"sort"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/events"
)

// TriggerPolicy decides whether a dormant conditional order fires at a
// market price.
type TriggerPolicy interface {
	Triggered(o *orderbook.Order, marketPrice int64) bool
}

// StopPriceTrigger fires buy stops at or below the stop price and sell stops
// at or above it.
type StopPriceTrigger struct{}

func (StopPriceTrigger) Triggered(o *orderbook.Order, marketPrice int64) bool {
	return o.IsTriggered(marketPrice)
}

// TriggerFunc adapts a plain function.
type TriggerFunc func(o *orderbook.Order, marketPrice int64) bool

func (f TriggerFunc) Triggered(o *orderbook.Order, marketPrice int64) bool { return f(o, marketPrice) }

// firing returns the dormant orders of m that trigger at marketPrice, in
// placement order. Caller holds m.mu.
func (e *Engine) firing(m *market, marketPrice int64) []*orderbook.Order {
	var fired []*orderbook.Order
	for _, o := range m.stops {
		if e.trigger.Triggered(o, marketPrice) {
			fired = append(fired, o)
		}
	}
	sort.Slice(fired, func(i, j int) bool { return fired[i].Seq < fired[j].Seq })
	return fired
}

// activate turns each fired stop into a resting limit order and matches it.
// Caller holds m.mu.
func (e *Engine) activate(m *market, fired []*orderbook.Order, marketPrice int64) []string {
	ids := make([]string, 0, len(fired))
	for _, o := range fired {
		delete(m.stops, o.ID)
		o.Activate(e.seq.Next())
		ev := orderEvent(events.StopTriggered, o, "")
		ev.MarketPrice = marketPrice
		e.emit(ev)
		e.metrics.ObserveTrigger(m.symbol)

		if err := m.book.Insert(o); err != nil {
			// The order was validated at placement; a failure here is a bug.
			panic("engine: insert of triggered order " + o.ID + ": " + err.Error())
		}
		e.settle(m.book.MatchAll())
		ids = append(ids, o.ID)
	}
	return ids
}

func sortBySeq(orders []orderbook.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].Seq < orders[j].Seq })
}
