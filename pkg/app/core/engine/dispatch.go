package engine

import (
	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/events"
)

// job is one unit of dispatcher work: an event, or a barrier to release once
// everything queued before it has been dispatched.
type job struct {
	event   events.Event
	barrier chan struct{}
}

func orderEvent(t events.Type, o *orderbook.Order, reason string) events.Event {
	cp := *o
	return events.Event{Type: t, Symbol: o.Symbol, Order: &cp, Reason: reason}
}

// emit queues an event for the dispatcher. It never blocks, so it is safe to
// call under a symbol lock, and calling it there keeps each symbol's events in
// the order they happened.
func (e *Engine) emit(ev events.Event) {
	ev.V = 1
	ev.Time = e.clock.Now()
	if !e.queue.Push(job{event: ev}) {
		e.logger.Warnw("event_dropped_after_close", "type", ev.Type.String(), "symbol", ev.Symbol)
	}
}

// settle applies the fee policy to freshly matched trades, books positions
// and queues them. Caller holds the symbol lock.
func (e *Engine) settle(trades []orderbook.Trade) {
	for i := range trades {
		t := &trades[i]
		t.Fee = e.fees.Fee(t.Price, t.Qty)
		t.NetValue = t.Notional().Sub(t.Fee)
		t.Time = e.clock.Now()

		e.positions.Apply(*t)
		e.metrics.ObserveTrade(t.Symbol, t.Qty)

		cp := *t
		e.emit(events.Event{Type: events.TradeExecuted, Symbol: t.Symbol, Trade: &cp})
	}
}

// run is the dispatcher loop. It is the only goroutine that touches the
// ledger, the sink and the feed on behalf of the engine.
func (e *Engine) run() {
	defer close(e.done)
	for {
		j, ok := e.queue.Pop()
		if !ok {
			return
		}
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		e.dispatch(j.event)
	}
}

func (e *Engine) dispatch(ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("sink_panic", "type", ev.Type.String(), "symbol", ev.Symbol, "panic", r)
		}
	}()

	if ev.Type == events.TradeExecuted {
		recorded := e.ledger.Record(*ev.Trade)
		ev.Trade = &recorded
		e.feed.Publish(recorded)
	}
	events.Deliver(e.sink, ev)
}

// Sync blocks until every event queued before the call has been dispatched.
func (e *Engine) Sync() {
	b := make(chan struct{})
	if !e.queue.Push(job{barrier: b}) {
		<-e.done
		return
	}
	<-b
}
