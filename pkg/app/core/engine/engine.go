// Package engine routes orders to per-symbol books and publishes what they do.
//
// Each symbol has its own lock, held for one insert+match, cancel or trigger
// pass; different symbols run fully in parallel. Nothing under a symbol lock
// does I/O: trades and notifications are queued and a single dispatcher
// goroutine records them in the ledger, notifies the sink and feeds
// subscribers.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/fee"
	"github.com/uhyunpark/crossbook/pkg/app/core/feed"
	"github.com/uhyunpark/crossbook/pkg/app/core/ledger"
	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/app/core/risk"
	"github.com/uhyunpark/crossbook/pkg/events"
	"github.com/uhyunpark/crossbook/pkg/metrics"
	"github.com/uhyunpark/crossbook/pkg/util"
)

type Engine struct {
	registry *registry
	seq      *util.Sequencer

	fees      fee.Calculator
	risk      risk.Policy
	trigger   TriggerPolicy
	positions *risk.Positions

	ledger  *ledger.Ledger
	feed    *feed.Publisher
	sink    events.Sink
	metrics *metrics.Engine

	clock  util.Clock
	logger *zap.SugaredLogger
	newID  func() string

	queue     *util.Queue[job]
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

type Option func(*Engine)

func WithFees(c fee.Calculator) Option { return func(e *Engine) { e.fees = c } }

func WithRisk(p risk.Policy) Option { return func(e *Engine) { e.risk = p } }

func WithTrigger(t TriggerPolicy) Option { return func(e *Engine) { e.trigger = t } }

// WithPositions shares a position tracker, e.g. one seeded from an account
// system.
func WithPositions(p *risk.Positions) Option { return func(e *Engine) { e.positions = p } }

func WithLedger(l *ledger.Ledger) Option { return func(e *Engine) { e.ledger = l } }

func WithSink(s events.Sink) Option { return func(e *Engine) { e.sink = s } }

func WithMetrics(m *metrics.Engine) Option { return func(e *Engine) { e.metrics = m } }

func WithClock(c util.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *zap.SugaredLogger) Option { return func(e *Engine) { e.logger = l } }

// WithIDGenerator replaces the UUID generator used for orders submitted
// without an ID.
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New starts an engine with a flat 0.1% fee, no position limit and the
// standard stop trigger unless options say otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:  newRegistry(),
		seq:       util.NewSequencer(0),
		fees:      fee.NewFlatRate(fee.DefaultRate),
		risk:      risk.Unlimited{},
		trigger:   StopPriceTrigger{},
		positions: risk.NewPositions(),
		feed:      feed.NewPublisher(),
		sink:      events.Nop{},
		clock:     util.RealClock{},
		logger:    zap.NewNop().Sugar(),
		newID:     uuid.NewString,
		queue:     util.NewQueue[job](),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		e.ledger = ledger.New(ledger.WithLogger(e.logger))
	}
	go e.run()
	return e
}

func (e *Engine) market(symbol string) *market {
	m, created := e.registry.getOrCreate(symbol)
	if created {
		e.logger.Infow("market_created", "symbol", symbol)
	}
	return m
}

// Place validates, risk checks and routes one order, returning its ID.
// Limit orders are inserted and matched, market orders sweep the opposite
// ladder, stop-limit orders wait dormant until a Tick fires them.
func (e *Engine) Place(ctx context.Context, req OrderRequest) (string, error) {
	if e.closed.Load() {
		return "", ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o := req.order()
	if o.ID == "" {
		o.ID = e.newID()
	}
	if err := o.Validate(); err != nil {
		return "", e.reject(o, err)
	}

	m := e.market(o.Symbol)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == Halted {
		return "", e.reject(o, fmt.Errorf("%w: %s", ErrMarketHalted, o.Symbol))
	}
	if m.has(o.ID) {
		return "", e.reject(o, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID))
	}
	// Positions only change under this lock, so the check is exact.
	current, requested := risk.Exposure(o.Side, e.positions.Get(o.TraderID, o.Symbol), o.OriginalQty)
	if !e.risk.Check(o.Symbol, current, requested) {
		return "", e.reject(o, fmt.Errorf("%w: trader %s position %d + %d on %s",
			ErrRiskRejected, o.TraderID, current, requested, o.Symbol))
	}

	start := e.clock.Now()
	o.Seq = e.seq.Next()

	switch o.Kind {
	case orderbook.StopLimit:
		o.Status = orderbook.Dormant
		m.stops[o.ID] = o
		e.emit(orderEvent(events.OrderAccepted, o, ""))

	case orderbook.Market:
		o.Status = orderbook.Open
		e.emit(orderEvent(events.OrderAccepted, o, ""))
		trades, err := m.book.Sweep(o)
		if err != nil {
			panic("engine: sweep of validated market order " + o.ID + ": " + err.Error())
		}
		e.settle(trades)
		if o.Status == orderbook.Cancelled {
			e.emit(orderEvent(events.OrderCancelled, o, events.ReasonNoLiquidity))
			e.metrics.ObserveCancel(o.Symbol, events.ReasonNoLiquidity)
		}

	default:
		if err := m.book.Insert(o); err != nil {
			return "", e.reject(o, err)
		}
		e.emit(orderEvent(events.OrderAccepted, o, ""))
		e.settle(m.book.MatchAll())
	}

	e.metrics.ObserveAccepted(o.Symbol, o.Kind.String())
	e.metrics.ObserveMatch(o.Symbol, e.clock.Now().Sub(start))
	return o.ID, nil
}

func (e *Engine) reject(o *orderbook.Order, err error) error {
	o.Status = orderbook.Rejected
	e.emit(orderEvent(events.OrderRejected, o, err.Error()))
	e.metrics.ObserveRejected(rejectReason(err))
	return err
}

// PlaceBatch places each request independently; results keep input order.
func (e *Engine) PlaceBatch(ctx context.Context, reqs []OrderRequest) []PlaceResult {
	out := make([]PlaceResult, len(reqs))
	for i, req := range reqs {
		id, err := e.Place(ctx, req)
		out[i] = PlaceResult{ID: id, Err: err}
	}
	return out
}

// Cancel removes a resting or dormant order. A second cancel of the same
// order returns ErrNotFound and has no other effect.
func (e *Engine) Cancel(ctx context.Context, orderID, symbol string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := e.registry.lookup(symbol)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var cancelled orderbook.Order
	if o, ok := m.stops[orderID]; ok {
		delete(m.stops, orderID)
		o.Status = orderbook.Cancelled
		cancelled = *o
	} else {
		cancelled, err = m.book.Remove(orderID)
		if err != nil {
			return fmt.Errorf("cancel %s on %s: %w", orderID, symbol, err)
		}
	}

	e.emit(orderEvent(events.OrderCancelled, &cancelled, events.ReasonUser))
	e.metrics.ObserveCancel(symbol, events.ReasonUser)
	return nil
}

// TriggerConditional activates every dormant order on symbol that fires at
// marketPrice and returns their IDs in placement order. The engine runs no
// timer of its own; an external driver calls this.
func (e *Engine) TriggerConditional(symbol string, marketPrice int64) []string {
	m, ok := e.registry.get(symbol)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fired := e.firing(m, marketPrice)
	if len(fired) == 0 {
		return nil
	}
	return e.activate(m, fired, marketPrice)
}

// Tick feeds a market price into conditional order evaluation.
func (e *Engine) Tick(ctx context.Context, marketPrice int64, symbol string) ([]string, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if marketPrice <= 0 {
		return nil, fmt.Errorf("%w: market price must be positive", ErrInvalidOrder)
	}
	return e.TriggerConditional(symbol, marketPrice), nil
}

// BestPrices returns the top of symbol's book. Unknown symbols have an empty
// quote.
func (e *Engine) BestPrices(symbol string) Quote {
	q := Quote{Symbol: symbol}
	m, ok := e.registry.get(symbol)
	if !ok {
		return q
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.book.BestBid(); ok {
		q.BestBid = &p
	}
	if p, ok := m.book.BestAsk(); ok {
		q.BestAsk = &p
	}
	return q
}

// Depth returns up to n aggregated levels per side.
func (e *Engine) Depth(symbol string, n int) (bids, asks []orderbook.PriceLevel) {
	m, ok := e.registry.get(symbol)
	if !ok {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.Depth(n)
}

// LastPrice is the most recent trade price on symbol, 0 if none.
func (e *Engine) LastPrice(symbol string) int64 {
	m, ok := e.registry.get(symbol)
	if !ok {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.LastPrice()
}

// Order looks up a resting or dormant order.
func (e *Engine) Order(symbol, id string) (orderbook.Order, bool) {
	m, ok := e.registry.get(symbol)
	if !ok {
		return orderbook.Order{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.stops[id]; ok {
		return *o, true
	}
	return m.book.Get(id)
}

// Dormant returns symbol's untriggered stop orders in placement order.
func (e *Engine) Dormant(symbol string) []orderbook.Order {
	m, ok := e.registry.get(symbol)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orderbook.Order, 0, len(m.stops))
	for _, o := range m.stops {
		out = append(out, *o)
	}
	sortBySeq(out)
	return out
}

func (e *Engine) Symbols() []string { return e.registry.symbols() }

// Halt stops new orders on symbol. Cancels and ticks still go through.
func (e *Engine) Halt(symbol string) {
	e.setStatus(symbol, Halted)
}

func (e *Engine) Resume(symbol string) {
	e.setStatus(symbol, Active)
}

func (e *Engine) setStatus(symbol string, status MarketStatus) {
	m := e.market(symbol)
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	e.logger.Infow("market_status", "symbol", symbol, "status", status.String())
}

func (e *Engine) Status(symbol string) MarketStatus {
	m, ok := e.registry.get(symbol)
	if !ok {
		return Active
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SubscribeTrades opens a lazy, unbounded stream of symbol's trades. "" or
// "*" subscribes to every symbol.
func (e *Engine) SubscribeTrades(symbol string) *feed.Subscription {
	return e.feed.Subscribe(symbol)
}

// OnTrade registers a callback for symbol's trades. It runs on the dispatcher
// goroutine and must not block.
func (e *Engine) OnTrade(symbol string, fn func(orderbook.Trade)) (cancel func()) {
	return e.feed.OnTrade(symbol, fn)
}

func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

func (e *Engine) Positions() *risk.Positions { return e.positions }

// Close rejects further calls, dispatches everything already queued and ends
// every trade subscription.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.queue.Close()
		<-e.done
		e.feed.Close()
		e.logger.Infow("engine_closed", "markets", e.registry.count(), "trades", e.ledger.Len())
	})
}
