package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/crossbook/pkg/app/core/engine"
	"github.com/uhyunpark/crossbook/pkg/app/core/fee"
	"github.com/uhyunpark/crossbook/pkg/app/core/risk"
	"github.com/uhyunpark/crossbook/pkg/metrics"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	m := metrics.New()
	eng := engine.New(
		engine.WithFees(fee.NewFlatRate(fee.DefaultRate)),
		engine.WithRisk(risk.PositionLimit{Max: 1000}),
		engine.WithMetrics(m),
	)
	t.Cleanup(eng.Close)
	return NewServer(eng, Options{Metrics: m.Handler(), BookInterval: 10 * time.Millisecond}), eng
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSubmitAndMatch(t *testing.T) {
	s, eng := newTestServer(t)

	rec := do(t, s, "POST", "/api/v1/orders", map[string]interface{}{
		"id": "bid", "symbol": "SYM", "side": "buy", "kind": "limit", "limitPrice": 150, "qty": 100, "traderId": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, SubmitOrderResponse{Status: "accepted", OrderID: "bid"}, decodeJSON[SubmitOrderResponse](t, rec))

	rec = do(t, s, "POST", "/api/v1/orders", map[string]interface{}{
		"id": "ask", "symbol": "SYM", "side": "sell", "limitPrice": 149, "qty": 60, "traderId": "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	eng.Sync()

	trades := decodeJSON[[]TradeInfo](t, do(t, s, "GET", "/api/v1/markets/SYM/trades", nil))
	require.Len(t, trades, 1)
	assert.Equal(t, int64(150), trades[0].Price)
	assert.Equal(t, int64(60), trades[0].Size)
	assert.Equal(t, "9", trades[0].Fee)
	assert.Equal(t, "8991", trades[0].NetValue)
	assert.Equal(t, "sell", trades[0].Side)

	book := decodeJSON[OrderbookSnapshot](t, do(t, s, "GET", "/api/v1/markets/SYM/orderbook", nil))
	require.Len(t, book.Bids, 1)
	assert.Equal(t, PriceLevel{Price: 150, Size: 40, Orders: 1}, book.Bids[0])
	assert.Empty(t, book.Asks)

	bbo := decodeJSON[engine.Quote](t, do(t, s, "GET", "/api/v1/markets/SYM/bbo", nil))
	require.NotNil(t, bbo.BestBid)
	assert.Equal(t, int64(150), *bbo.BestBid)
	assert.Nil(t, bbo.BestAsk)

	markets := decodeJSON[[]MarketInfo](t, do(t, s, "GET", "/api/v1/markets", nil))
	require.Len(t, markets, 1)
	assert.Equal(t, "SYM", markets[0].Symbol)
	assert.Equal(t, int64(150), markets[0].LastPrice)
	assert.Equal(t, "active", markets[0].Status)

	order := decodeJSON[OrderInfo](t, do(t, s, "GET", "/api/v1/markets/SYM/orders/bid", nil))
	assert.Equal(t, int64(60), order.Filled)
	assert.Equal(t, "partially_filled", order.Status)

	positions := decodeJSON[[]PositionInfo](t, do(t, s, "GET", "/api/v1/traders/alice/positions", nil))
	assert.Equal(t, []PositionInfo{{Symbol: "SYM", Size: 60}}, positions)

	stats := do(t, s, "GET", "/api/v1/markets/SYM/stats", nil)
	assert.Contains(t, stats.Body.String(), `"volume":60`)
	traderStats := do(t, s, "GET", "/api/v1/traders/bob/stats", nil)
	assert.Contains(t, traderStats.Body.String(), `"received":"8991"`)
}

func TestSubmitErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"bad json", "not an order", http.StatusBadRequest},
		{"zero qty", map[string]interface{}{"symbol": "SYM", "side": "buy", "limitPrice": 1, "qty": 0}, http.StatusBadRequest},
		{"bad side", map[string]interface{}{"symbol": "SYM", "side": "long", "limitPrice": 1, "qty": 1}, http.StatusBadRequest},
		{"risk", map[string]interface{}{"symbol": "SYM", "side": "buy", "limitPrice": 1, "qty": 5000, "traderId": "x"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, "POST", "/api/v1/orders", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestBatchCancelAndTick(t *testing.T) {
	s, eng := newTestServer(t)

	rec := do(t, s, "POST", "/api/v1/orders/batch", []map[string]interface{}{
		{"id": "b1", "symbol": "SYM", "side": "buy", "limitPrice": 100, "qty": 10},
		{"id": "bad", "symbol": "SYM", "side": "buy", "limitPrice": 100, "qty": 0},
		{"id": "stop", "symbol": "SYM", "side": "buy", "kind": "stop_limit", "stopPrice": 155, "limitPrice": 158, "qty": 1},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeJSON[[]SubmitOrderResponse](t, rec)
	require.Len(t, results, 3)
	assert.Equal(t, "accepted", results[0].Status)
	assert.Equal(t, "rejected", results[1].Status)
	assert.Equal(t, "accepted", results[2].Status)

	rec = do(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{Symbol: "SYM", OrderID: "b1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{Symbol: "SYM", OrderID: "b1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{OrderID: "b1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tick := decodeJSON[TickResponse](t, do(t, s, "POST", "/api/v1/markets/SYM/tick", TickRequest{Price: 156}))
	assert.Empty(t, tick.Triggered)
	tick = decodeJSON[TickResponse](t, do(t, s, "POST", "/api/v1/markets/SYM/tick", TickRequest{Price: 155}))
	assert.Equal(t, []string{"stop"}, tick.Triggered)

	rec = do(t, s, "POST", "/api/v1/markets/SYM/tick", TickRequest{Price: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	o, ok := eng.Order("SYM", "stop")
	require.True(t, ok)
	assert.Equal(t, "open", o.Status.String())
}

func TestHaltEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "POST", "/api/v1/markets/SYM/halt", nil)
	assert.Contains(t, rec.Body.String(), `"halted"`)

	rec = do(t, s, "POST", "/api/v1/orders", map[string]interface{}{"symbol": "SYM", "side": "buy", "limitPrice": 1, "qty": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	do(t, s, "POST", "/api/v1/markets/SYM/resume", nil)
	rec = do(t, s, "POST", "/api/v1/orders", map[string]interface{}{"symbol": "SYM", "side": "buy", "limitPrice": 1, "qty": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, s, "GET", "/health", nil).Code)

	do(t, s, "POST", "/api/v1/orders", map[string]interface{}{"symbol": "SYM", "side": "buy", "limitPrice": 1, "qty": 1})
	rec := do(t, s, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crossbook_orders_accepted_total")
}

func TestInvalidQuery(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "GET", "/api/v1/markets/SYM/trades?limit=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "GET", "/api/v1/markets/SYM/orderbook?depth=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/api/v1/markets/SYM/orders/nope", nil).Code)
}

func TestWebSocketTradesAndBook(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{"trades:SYM", "orderbook:SYM"}}))
	require.Eventually(t, func() bool {
		return s.Hub().HasSubscribers("trades:SYM") && s.Hub().HasSubscribers("orderbook:SYM")
	}, 2*time.Second, 5*time.Millisecond)

	do(t, s, "POST", "/api/v1/orders", map[string]interface{}{"symbol": "SYM", "side": "buy", "limitPrice": 100, "qty": 5})
	do(t, s, "POST", "/api/v1/orders", map[string]interface{}{"symbol": "SYM", "side": "sell", "limitPrice": 100, "qty": 2})

	var sawTrade, sawBook bool
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(sawTrade && sawBook) {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(msg, &head))
		switch head.Type {
		case "trade":
			var tu TradeUpdate
			require.NoError(t, json.Unmarshal(msg, &tu))
			assert.Equal(t, int64(2), tu.Size)
			sawTrade = true
		case "orderbook":
			var ob OrderbookUpdate
			require.NoError(t, json.Unmarshal(msg, &ob))
			assert.Equal(t, "SYM", ob.Symbol)
			sawBook = true
		}
	}
}
