package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uhyunpark/crossbook/pkg/app/core/fee"
	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/app/core/risk"
	"github.com/uhyunpark/crossbook/pkg/events"
	"github.com/uhyunpark/crossbook/pkg/metrics"
	"github.com/uhyunpark/crossbook/pkg/util"
)

var ctx = context.Background()

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	base := []Option{
		WithSink(rec),
		WithFees(fee.Zero{}),
		WithClock(util.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
	}
	e := New(append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, rec
}

func limitReq(id, symbol string, side orderbook.Side, price, qty int64) OrderRequest {
	return OrderRequest{ID: id, Symbol: symbol, Side: side, Kind: orderbook.Limit, LimitPrice: price, Qty: qty, TraderID: "t-" + id}
}

func place(t *testing.T, e *Engine, req OrderRequest) string {
	t.Helper()
	id, err := e.Place(ctx, req)
	require.NoError(t, err)
	return id
}

func TestPlaceCrossesAtRestingPrice(t *testing.T) {
	e, rec := newTestEngine(t)

	place(t, e, limitReq("bid", "SYM", orderbook.Buy, 150, 100))
	place(t, e, limitReq("ask", "SYM", orderbook.Sell, 149, 60))
	e.Sync()

	trades := rec.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, int64(150), trades[0].Price)
	assert.Equal(t, int64(60), trades[0].Qty)
	assert.Equal(t, "bid", trades[0].BuyOrderID)
	assert.Equal(t, "ask", trades[0].SellOrderID)
	assert.Equal(t, orderbook.Sell, trades[0].AggressorSide)
	assert.Equal(t, uint64(1), trades[0].Seq)

	bid, ok := e.Order("SYM", "bid")
	require.True(t, ok)
	assert.Equal(t, int64(40), bid.RemainingQty)
	assert.Equal(t, orderbook.PartiallyFilled, bid.Status)

	_, ok = e.Order("SYM", "ask")
	assert.False(t, ok, "filled ask must leave the book")

	q := e.BestPrices("SYM")
	require.NotNil(t, q.BestBid)
	assert.Equal(t, int64(150), *q.BestBid)
	assert.Nil(t, q.BestAsk)
	assert.Equal(t, int64(150), e.LastPrice("SYM"))
}

func TestPlaceAssignsIDs(t *testing.T) {
	n := 0
	e, _ := newTestEngine(t, WithIDGenerator(func() string { n++; return fmt.Sprintf("gen-%d", n) }))

	req := limitReq("", "SYM", orderbook.Buy, 100, 1)
	assert.Equal(t, "gen-1", place(t, e, req))
	assert.Equal(t, "gen-2", place(t, e, req))

	_, err := e.Place(ctx, limitReq("gen-1", "SYM", orderbook.Buy, 100, 1))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestDefaultIDsAreUUIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	id := place(t, e, limitReq("", "SYM", orderbook.Buy, 100, 1))
	assert.Len(t, id, 36)
}

func TestPlaceRejectsInvalid(t *testing.T) {
	e, rec := newTestEngine(t)

	tests := []struct {
		name string
		req  OrderRequest
	}{
		{"zero qty", limitReq("a", "SYM", orderbook.Buy, 100, 0)},
		{"no price", limitReq("b", "SYM", orderbook.Buy, 0, 10)},
		{"no symbol", limitReq("c", "", orderbook.Buy, 100, 10)},
		{"stop without stop price", OrderRequest{ID: "d", Symbol: "SYM", Side: orderbook.Buy, Kind: orderbook.StopLimit, LimitPrice: 10, Qty: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Place(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	e.Sync()
	assert.Len(t, rec.Of(events.OrderRejected), len(tests))
	assert.Empty(t, rec.Of(events.OrderAccepted))
	_, ok := e.Order("SYM", "a")
	assert.False(t, ok)
}

func TestRiskRejection(t *testing.T) {
	e, rec := newTestEngine(t, WithRisk(risk.PositionLimit{Max: 1000}))
	e.Positions().Set("alice", "SYM", 500)

	_, err := e.Place(ctx, OrderRequest{ID: "ok", Symbol: "SYM", Side: orderbook.Buy, LimitPrice: 10, Qty: 300, TraderID: "alice"})
	require.NoError(t, err)

	_, err = e.Place(ctx, OrderRequest{ID: "big", Symbol: "SYM", Side: orderbook.Buy, LimitPrice: 10, Qty: 600, TraderID: "alice"})
	assert.ErrorIs(t, err, ErrRiskRejected)

	_, ok := e.Order("SYM", "big")
	assert.False(t, ok, "rejected order never enters a book")

	e.Sync()
	rejected := rec.Of(events.OrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, orderbook.Rejected, rejected[0].Order.Status)
}

func TestRiskRejectsHugeQuantity(t *testing.T) {
	e, _ := newTestEngine(t, WithRisk(risk.PositionLimit{Max: 1000}))
	e.Positions().Set("alice", "SYM", 10)

	_, err := e.Place(ctx, OrderRequest{ID: "huge", Symbol: "SYM", Side: orderbook.Buy, LimitPrice: 10, Qty: math.MaxInt64, TraderID: "alice"})
	assert.ErrorIs(t, err, ErrRiskRejected)

	_, err = e.Place(ctx, OrderRequest{ID: "huge-sell", Symbol: "SYM", Side: orderbook.Sell, LimitPrice: 10, Qty: math.MaxInt64, TraderID: "alice"})
	assert.ErrorIs(t, err, ErrRiskRejected)
	assert.Nil(t, e.BestPrices("SYM").BestBid)
}

func TestOnTradeCallbackMayCancelItself(t *testing.T) {
	e, _ := newTestEngine(t)

	var calls int
	var cancel func()
	cancel = e.OnTrade("SYM", func(orderbook.Trade) {
		calls++
		cancel()
	})
	place(t, e, limitReq("b1", "SYM", orderbook.Buy, 100, 2))
	place(t, e, limitReq("a1", "SYM", orderbook.Sell, 100, 1))
	place(t, e, limitReq("a2", "SYM", orderbook.Sell, 100, 1))

	synced := make(chan struct{})
	go func() {
		e.Sync()
		close(synced)
	}()
	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher stuck after a callback cancelled itself")
	}
	assert.Equal(t, 1, calls, "cancelled callback sees no further trades")
	assert.Equal(t, 2, e.Ledger().Len())
}

func TestRiskTracksFilledPositions(t *testing.T) {
	e, _ := newTestEngine(t, WithRisk(risk.PositionLimit{Max: 100}))

	place(t, e, OrderRequest{ID: "s1", Symbol: "SYM", Side: orderbook.Sell, LimitPrice: 10, Qty: 80, TraderID: "bob"})
	place(t, e, OrderRequest{ID: "b1", Symbol: "SYM", Side: orderbook.Buy, LimitPrice: 10, Qty: 80, TraderID: "alice"})
	assert.Equal(t, int64(80), e.Positions().Get("alice", "SYM"))
	assert.Equal(t, int64(-80), e.Positions().Get("bob", "SYM"))

	_, err := e.Place(ctx, OrderRequest{ID: "b2", Symbol: "SYM", Side: orderbook.Buy, LimitPrice: 10, Qty: 30, TraderID: "alice"})
	assert.ErrorIs(t, err, ErrRiskRejected)

	// Selling reduces alice's long, so a large sell is fine.
	place(t, e, OrderRequest{ID: "s2", Symbol: "SYM", Side: orderbook.Sell, LimitPrice: 20, Qty: 150, TraderID: "alice"})

	// bob is short 80; selling 30 more would breach the limit.
	_, err = e.Place(ctx, OrderRequest{ID: "s3", Symbol: "SYM", Side: orderbook.Sell, LimitPrice: 20, Qty: 30, TraderID: "bob"})
	assert.ErrorIs(t, err, ErrRiskRejected)
}

func TestCancelOnce(t *testing.T) {
	e, rec := newTestEngine(t)
	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	place(t, e, limitReq("a", "SYM", orderbook.Sell, 110, 10))

	require.NoError(t, e.Cancel(ctx, "a", "SYM"))
	err := e.Cancel(ctx, "a", "SYM")
	assert.ErrorIs(t, err, ErrNotFound)

	e.Sync()
	cancels := rec.Of(events.OrderCancelled)
	require.Len(t, cancels, 1)
	assert.Equal(t, "a", cancels[0].Order.ID)
	assert.Equal(t, orderbook.Cancelled, cancels[0].Order.Status)
	assert.Equal(t, events.ReasonUser, cancels[0].Reason)

	assert.Nil(t, e.BestPrices("SYM").BestAsk)
	assert.NotNil(t, e.BestPrices("SYM").BestBid)
}

func TestCancelFirstOrderOnEitherLadder(t *testing.T) {
	e, _ := newTestEngine(t)
	place(t, e, limitReq("b0", "SYM", orderbook.Buy, 100, 10))
	place(t, e, limitReq("a0", "SYM", orderbook.Sell, 110, 10))

	require.NoError(t, e.Cancel(ctx, "a0", "SYM"))
	require.NoError(t, e.Cancel(ctx, "b0", "SYM"))
	q := e.BestPrices("SYM")
	assert.Nil(t, q.BestBid)
	assert.Nil(t, q.BestAsk)
}

func TestCancelUnknown(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Cancel(ctx, "x", "NOPE"), ErrNotFound)
	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	assert.ErrorIs(t, e.Cancel(ctx, "x", "SYM"), ErrNotFound)
	assert.ErrorIs(t, e.Cancel(ctx, "b", "OTHER"), ErrNotFound)
}

func TestFilledOrderCannotBeCancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	place(t, e, limitReq("a", "SYM", orderbook.Sell, 100, 10))
	assert.ErrorIs(t, e.Cancel(ctx, "b", "SYM"), ErrNotFound)
}

func TestStopLimitTrigger(t *testing.T) {
	e, rec := newTestEngine(t)
	place(t, e, limitReq("ask", "SYM", orderbook.Sell, 157, 5))

	stop := OrderRequest{ID: "stop", Symbol: "SYM", Side: orderbook.Buy, Kind: orderbook.StopLimit, StopPrice: 155, LimitPrice: 158, Qty: 10, TraderID: "alice"}
	place(t, e, stop)

	o, ok := e.Order("SYM", "stop")
	require.True(t, ok)
	assert.Equal(t, orderbook.Dormant, o.Status)
	assert.Nil(t, e.BestPrices("SYM").BestBid, "dormant order is not on a ladder")

	fired, err := e.Tick(ctx, 156, "SYM")
	require.NoError(t, err)
	assert.Empty(t, fired)

	fired, err = e.Tick(ctx, 154, "SYM")
	require.NoError(t, err)
	assert.Equal(t, []string{"stop"}, fired)

	o, ok = e.Order("SYM", "stop")
	require.True(t, ok)
	assert.Equal(t, orderbook.Limit, o.Kind)
	assert.Equal(t, int64(158), o.LimitPrice)
	assert.Equal(t, int64(5), o.RemainingQty)
	assert.Equal(t, orderbook.PartiallyFilled, o.Status)
	assert.Empty(t, e.Dormant("SYM"))

	e.Sync()
	trades := rec.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, int64(157), trades[0].Price, "resting ask sets the price")
	require.Len(t, rec.Of(events.StopTriggered), 1)
	assert.Equal(t, int64(154), rec.Of(events.StopTriggered)[0].MarketPrice)

	fired, _ = e.Tick(ctx, 100, "SYM")
	assert.Empty(t, fired, "a stop fires once")
}

func TestStopLimitExactStopPrice(t *testing.T) {
	e, _ := newTestEngine(t)
	place(t, e, OrderRequest{ID: "stop", Symbol: "SYM", Side: orderbook.Buy, Kind: orderbook.StopLimit, StopPrice: 155, LimitPrice: 158, Qty: 10})

	assert.Empty(t, e.TriggerConditional("SYM", 156))
	assert.Equal(t, []string{"stop"}, e.TriggerConditional("SYM", 155))

	o, ok := e.Order("SYM", "stop")
	require.True(t, ok)
	assert.Equal(t, orderbook.Open, o.Status)
	assert.Equal(t, int64(158), *e.BestPrices("SYM").BestBid)
}

func TestTriggeredStopsKeepPlacementOrder(t *testing.T) {
	e, rec := newTestEngine(t)
	for i := 1; i <= 3; i++ {
		place(t, e, OrderRequest{ID: fmt.Sprintf("s%d", i), Symbol: "SYM", Side: orderbook.Sell, Kind: orderbook.StopLimit, StopPrice: 90, LimitPrice: 95, Qty: 1})
	}
	place(t, e, limitReq("bid", "SYM", orderbook.Buy, 95, 2))

	assert.Equal(t, []string{"s1", "s2", "s3"}, e.TriggerConditional("SYM", 90))
	e.Sync()
	trades := rec.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, "s1", trades[0].SellOrderID)
	assert.Equal(t, "s2", trades[1].SellOrderID)

	// s1..s3 took seqs 1-3 and the bid 4; activation hands out fresh ones.
	s3, ok := e.Order("SYM", "s3")
	require.True(t, ok)
	assert.Equal(t, uint64(7), s3.Seq)
	assert.Equal(t, orderbook.Open, s3.Status)
}

func TestCancelDormantStop(t *testing.T) {
	e, rec := newTestEngine(t)
	place(t, e, OrderRequest{ID: "stop", Symbol: "SYM", Side: orderbook.Sell, Kind: orderbook.StopLimit, StopPrice: 90, LimitPrice: 89, Qty: 1})
	require.NoError(t, e.Cancel(ctx, "stop", "SYM"))
	assert.Empty(t, e.TriggerConditional("SYM", 95))
	assert.ErrorIs(t, e.Cancel(ctx, "stop", "SYM"), ErrNotFound)
	e.Sync()
	assert.Len(t, rec.Of(events.OrderCancelled), 1)
}

func TestCustomTriggerPolicy(t *testing.T) {
	never := TriggerFunc(func(*orderbook.Order, int64) bool { return false })
	e, _ := newTestEngine(t, WithTrigger(never))
	place(t, e, OrderRequest{ID: "stop", Symbol: "SYM", Side: orderbook.Buy, Kind: orderbook.StopLimit, StopPrice: 155, LimitPrice: 158, Qty: 1})
	assert.Empty(t, e.TriggerConditional("SYM", 1))
	assert.Len(t, e.Dormant("SYM"), 1)
}

func TestTickValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Tick(ctx, 0, "SYM")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	fired, err := e.Tick(ctx, 10, "UNKNOWN")
	assert.NoError(t, err)
	assert.Empty(t, fired)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Tick(cctx, 10, "SYM")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarketOrderSweeps(t *testing.T) {
	e, rec := newTestEngine(t)
	place(t, e, limitReq("a1", "SYM", orderbook.Sell, 101, 5))
	place(t, e, limitReq("a2", "SYM", orderbook.Sell, 102, 5))

	id := place(t, e, OrderRequest{ID: "m", Symbol: "SYM", Side: orderbook.Buy, Kind: orderbook.Market, Qty: 8})
	assert.Equal(t, "m", id)
	e.Sync()

	trades := rec.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, int64(101), trades[0].Price)
	assert.Equal(t, int64(5), trades[0].Qty)
	assert.Equal(t, int64(102), trades[1].Price)
	assert.Equal(t, int64(3), trades[1].Qty)
	assert.Equal(t, orderbook.Buy, trades[1].AggressorSide)

	_, ok := e.Order("SYM", "m")
	assert.False(t, ok, "market orders never rest")
	assert.Empty(t, rec.Of(events.OrderCancelled))
}

func TestMarketOrderRemainderCancelled(t *testing.T) {
	e, rec := newTestEngine(t)
	place(t, e, limitReq("b1", "SYM", orderbook.Buy, 99, 2))
	place(t, e, OrderRequest{ID: "m", Symbol: "SYM", Side: orderbook.Sell, Kind: orderbook.Market, Qty: 5})
	e.Sync()

	require.Len(t, rec.Trades(), 1)
	cancels := rec.Of(events.OrderCancelled)
	require.Len(t, cancels, 1)
	assert.Equal(t, "m", cancels[0].Order.ID)
	assert.Equal(t, int64(3), cancels[0].Order.RemainingQty)
	assert.Equal(t, events.ReasonNoLiquidity, cancels[0].Reason)
}

func TestFeesApplied(t *testing.T) {
	e, _ := newTestEngine(t, WithFees(fee.NewFlatRate(fee.DefaultRate)))
	place(t, e, limitReq("bid", "SYM", orderbook.Buy, 150, 100))
	place(t, e, limitReq("ask", "SYM", orderbook.Sell, 149, 60))
	e.Sync()

	trades := e.Ledger().Trades("SYM", 0)
	require.Len(t, trades, 1)
	assert.Equal(t, "9", trades[0].Fee.String())
	assert.Equal(t, "8991", trades[0].NetValue.String())
	assert.True(t, e.Ledger().RealizedValue("SYM").Equal(decimal.NewFromInt(9000)))
	assert.Equal(t, "8991", e.Ledger().TraderStats("t-ask").Received.String())
}

func TestSubscribeTrades(t *testing.T) {
	e, _ := newTestEngine(t)
	sub := e.SubscribeTrades("SYM")
	other := e.SubscribeTrades("OTHER")
	defer other.Close()

	var mu sync.Mutex
	var pushed []orderbook.Trade
	cancel := e.OnTrade("SYM", func(tr orderbook.Trade) {
		mu.Lock()
		pushed = append(pushed, tr)
		mu.Unlock()
	})
	defer cancel()

	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	place(t, e, limitReq("a1", "SYM", orderbook.Sell, 100, 4))
	place(t, e, limitReq("a2", "SYM", orderbook.Sell, 100, 6))

	for i, want := range []int64{4, 6} {
		select {
		case tr := <-sub.C:
			assert.Equal(t, want, tr.Qty)
			assert.Equal(t, uint64(i+1), tr.Seq)
		case <-time.After(time.Second):
			t.Fatal("no trade on subscription")
		}
	}
	sub.Close()

	e.Sync()
	mu.Lock()
	assert.Len(t, pushed, 2)
	mu.Unlock()

	select {
	case tr := <-other.C:
		t.Fatalf("unexpected trade on OTHER: %+v", tr)
	default:
	}
}

func TestPlaceBatch(t *testing.T) {
	e, _ := newTestEngine(t)
	results := e.PlaceBatch(ctx, []OrderRequest{
		limitReq("b", "SYM", orderbook.Buy, 100, 10),
		limitReq("bad", "SYM", orderbook.Buy, 100, 0),
		limitReq("a", "SYM", orderbook.Sell, 100, 10),
	})
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].ID)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrInvalidOrder)
	assert.Equal(t, "a", results[2].ID)
	e.Sync()
	assert.Equal(t, 1, e.Ledger().Len())
}

func TestHaltAndResume(t *testing.T) {
	e, _ := newTestEngine(t)
	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	e.Halt("SYM")
	assert.Equal(t, Halted, e.Status("SYM"))

	_, err := e.Place(ctx, limitReq("a", "SYM", orderbook.Sell, 100, 10))
	assert.ErrorIs(t, err, ErrMarketHalted)
	require.NoError(t, e.Cancel(ctx, "b", "SYM"))

	e.Resume("SYM")
	place(t, e, limitReq("a", "SYM", orderbook.Sell, 100, 10))
}

func TestUnknownSymbolAutoCreates(t *testing.T) {
	e, _ := newTestEngine(t)
	q := e.BestPrices("NEW")
	assert.Nil(t, q.BestBid)
	assert.Empty(t, e.Symbols())

	place(t, e, limitReq("b", "NEW", orderbook.Buy, 10, 1))
	place(t, e, limitReq("c", "ALSO", orderbook.Buy, 10, 1))
	assert.Equal(t, []string{"ALSO", "NEW"}, e.Symbols())
}

func TestDepth(t *testing.T) {
	e, _ := newTestEngine(t)
	place(t, e, limitReq("b1", "SYM", orderbook.Buy, 99, 5))
	place(t, e, limitReq("b2", "SYM", orderbook.Buy, 99, 5))
	place(t, e, limitReq("b3", "SYM", orderbook.Buy, 98, 1))
	place(t, e, limitReq("a1", "SYM", orderbook.Sell, 101, 2))

	bids, asks := e.Depth("SYM", 1)
	require.Len(t, bids, 1)
	assert.Equal(t, orderbook.PriceLevel{Price: 99, Qty: 10, Orders: 2}, bids[0])
	require.Len(t, asks, 1)
	assert.Equal(t, int64(101), asks[0].Price)
}

func TestClose(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := New(WithLogger(zap.New(core).Sugar()), WithFees(fee.Zero{}))
	sub := e.SubscribeTrades("")

	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	place(t, e, limitReq("a", "SYM", orderbook.Sell, 100, 10))
	e.Close()
	e.Close()

	assert.Equal(t, 1, e.Ledger().Len(), "queued trades are dispatched before close returns")
	tr, ok := <-sub.C
	require.True(t, ok)
	assert.Equal(t, int64(10), tr.Qty)
	_, ok = <-sub.C
	assert.False(t, ok)

	_, err := e.Place(ctx, limitReq("x", "SYM", orderbook.Buy, 100, 10))
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.ErrorIs(t, e.Cancel(ctx, "x", "SYM"), ErrEngineClosed)
	e.Sync()

	assert.Equal(t, 1, logs.FilterMessage("market_created").Len())
	assert.Equal(t, 1, logs.FilterMessage("engine_closed").Len())
}

func TestSinkPanicDoesNotStopDispatcher(t *testing.T) {
	e, _ := newTestEngine(t, WithSink(panicSink{}))
	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	place(t, e, limitReq("a", "SYM", orderbook.Sell, 100, 10))
	e.Sync()
	assert.Equal(t, 1, e.Ledger().Len())
}

type panicSink struct{ events.Nop }

func (panicSink) OrderAccepted(orderbook.Order) { panic("boom") }

func TestMetricsWired(t *testing.T) {
	m := metrics.New()
	e, _ := newTestEngine(t, WithMetrics(m))
	place(t, e, limitReq("b", "SYM", orderbook.Buy, 100, 10))
	_, _ = e.Place(ctx, limitReq("bad", "SYM", orderbook.Buy, 100, 0))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["crossbook_orders_accepted_total"])
	assert.True(t, names["crossbook_orders_rejected_total"])
}
