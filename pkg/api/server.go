package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/engine"
	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/util"
)

const (
	defaultDepth      = 20
	defaultTradeLimit = 50
	maxBatch          = 100
	maxBodyBytes      = 1 << 20
)

type Options struct {
	// AllowedOrigins for CORS. Empty means the local dev frontends.
	AllowedOrigins []string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// BookInterval is how often subscribed orderbook channels are refreshed.
	BookInterval time.Duration
	Logger       *zap.SugaredLogger
	Clock        util.Clock
}

// Server exposes the engine over REST and WebSocket
type Server struct {
	engine  *engine.Engine
	router  *mux.Router
	hub     *Hub
	opts    Options
	logger  *zap.SugaredLogger
	clock   util.Clock
	handler http.Handler
}

func NewServer(eng *engine.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.BookInterval <= 0 {
		opts.BookInterval = 250 * time.Millisecond
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}

	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		hub:    NewHub(opts.Logger),
		opts:   opts,
		logger: opts.Logger,
		clock:  opts.Clock,
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/bbo", s.handleGetBBO).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/markets/{symbol}/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/markets/{symbol}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/markets/{symbol}/halt", s.handleHalt).Methods("POST")
	api.HandleFunc("/markets/{symbol}/resume", s.handleResume).Methods("POST")

	// Trader endpoints
	api.HandleFunc("/traders/{trader}/positions", s.handleGetPositions).Methods("GET")
	api.HandleFunc("/traders/{trader}/stats", s.handleGetTraderStats).Methods("GET")

	// Order submission
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/batch", s.handleSubmitBatch).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods("GET")
	}
}

// Handler is the CORS-wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Hub() *Hub { return s.hub }

// Run starts the WebSocket hub and the engine-to-hub bridges. It returns
// when ctx is done.
func (s *Server) Run(ctx context.Context) {
	cancel := s.engine.OnTrade("*", s.BroadcastTrade)
	defer cancel()

	go s.hub.Run(ctx)

	ticker := time.NewTicker(s.opts.BookInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range s.engine.Symbols() {
				if s.hub.HasSubscribers("orderbook:" + symbol) {
					s.BroadcastOrderbook(symbol)
				}
			}
		}
	}
}

// Start serves HTTP on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("api_listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	symbols := s.engine.Symbols()
	response := make([]MarketInfo, len(symbols))
	for i, symbol := range symbols {
		q := s.engine.BestPrices(symbol)
		response[i] = MarketInfo{
			Symbol:    symbol,
			Status:    s.engine.Status(symbol).String(),
			BestBid:   q.BestBid,
			BestAsk:   q.BestAsk,
			LastPrice: s.engine.LastPrice(symbol),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth, err := intQuery(r, "depth", defaultDepth)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid depth", err.Error())
		return
	}
	respondJSON(w, s.snapshot(symbol, depth))
}

func (s *Server) snapshot(symbol string, depth int) OrderbookSnapshot {
	bids, asks := s.engine.Depth(symbol, depth)
	return OrderbookSnapshot{
		Symbol:    symbol,
		Bids:      toLevels(bids),
		Asks:      toLevels(asks),
		Timestamp: s.clock.Now().UnixMilli(),
	}
}

func (s *Server) handleGetBBO(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.engine.BestPrices(mux.Vars(r)["symbol"]))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit, err := intQuery(r, "limit", defaultTradeLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	trades := s.engine.Ledger().Trades(symbol, limit)
	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = toTradeInfo(t)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.engine.Ledger().Stats(mux.Vars(r)["symbol"]))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	o, ok := s.engine.Order(vars["symbol"], vars["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", vars["id"])
		return
	}
	respondJSON(w, toOrderInfo(o))
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	var req TickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fired, err := s.engine.Tick(r.Context(), req.Price, symbol)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if fired == nil {
		fired = []string{}
	}
	respondJSON(w, TickResponse{Symbol: symbol, Triggered: fired})
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	s.engine.Halt(symbol)
	respondJSON(w, map[string]string{"symbol": symbol, "status": s.engine.Status(symbol).String()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	s.engine.Resume(symbol)
	respondJSON(w, map[string]string{"symbol": symbol, "status": s.engine.Status(symbol).String()})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	trader := mux.Vars(r)["trader"]
	positions := make([]PositionInfo, 0)
	for symbol, size := range s.engine.Positions().Snapshot(trader) {
		if size == 0 {
			continue // Skip flat positions
		}
		positions = append(positions, PositionInfo{Symbol: symbol, Size: size})
	}
	respondJSON(w, positions)
}

func (s *Server) handleGetTraderStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.engine.Ledger().TraderStats(mux.Vars(r)["trader"]))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req engine.OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.engine.Place(r.Context(), req)
	if err != nil {
		s.logger.Debugw("api_order_rejected", "symbol", req.Symbol, "trader", req.TraderID, "err", err)
		status, _ := errorStatus(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(SubmitOrderResponse{Status: "rejected", Message: err.Error()})
		return
	}
	respondJSON(w, SubmitOrderResponse{Status: "accepted", OrderID: id})
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []engine.OrderRequest
	if !decodeBody(w, r, &reqs) {
		return
	}
	if len(reqs) > maxBatch {
		respondError(w, http.StatusBadRequest, "batch too large", strconv.Itoa(maxBatch)+" orders max")
		return
	}

	results := s.engine.PlaceBatch(r.Context(), reqs)
	response := make([]SubmitOrderResponse, len(results))
	for i, res := range results {
		if res.Err != nil {
			response[i] = SubmitOrderResponse{Status: "rejected", Message: res.Err.Error()}
			continue
		}
		response[i] = SubmitOrderResponse{Status: "accepted", OrderID: res.ID}
	}
	respondJSON(w, response)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "missing orderId or symbol", "")
		return
	}

	if err := s.engine.Cancel(r.Context(), req.OrderID, req.Symbol); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "cancelled", "orderId": req.OrderID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the engine dispatcher)
// ==============================

// BroadcastTrade pushes an executed trade to "trades:<symbol>" subscribers.
func (s *Server) BroadcastTrade(t orderbook.Trade) {
	s.hub.BroadcastToChannel("trades:"+t.Symbol, TradeUpdate{Type: "trade", TradeInfo: toTradeInfo(t)})
}

// BroadcastOrderbook pushes a depth snapshot to "orderbook:<symbol>" subscribers.
func (s *Server) BroadcastOrderbook(symbol string) {
	snap := s.snapshot(symbol, defaultDepth)
	s.hub.BroadcastToChannel("orderbook:"+symbol, OrderbookUpdate{
		Type:      "orderbook",
		Symbol:    symbol,
		Bids:      snap.Bids,
		Asks:      snap.Asks,
		Timestamp: snap.Timestamp,
		Seq:       s.engine.Ledger().LastSeq(),
	})
}

// ==============================
// Helper Functions
// ==============================

func toLevels(levels []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Qty, Orders: l.Orders}
	}
	return out
}

func toTradeInfo(t orderbook.Trade) TradeInfo {
	return TradeInfo{
		Seq:         t.Seq,
		Symbol:      t.Symbol,
		Price:       t.Price,
		Size:        t.Qty,
		Side:        t.AggressorSide.String(),
		Fee:         t.Fee.String(),
		NetValue:    t.NetValue.String(),
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Timestamp:   t.Time.UnixMilli(),
	}
}

func toOrderInfo(o orderbook.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side.String(),
		Kind:      o.Kind.String(),
		Price:     o.LimitPrice,
		StopPrice: o.StopPrice,
		Size:      o.OriginalQty,
		Filled:    o.FilledQty(),
		Remaining: o.RemainingQty,
		Status:    o.Status.String(),
		Trader:    o.TraderID,
	}
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// errorStatus maps engine errors onto HTTP statuses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid order"
	case errors.Is(err, engine.ErrRiskRejected):
		return http.StatusUnprocessableEntity, "risk rejected"
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, engine.ErrDuplicateOrder), errors.Is(err, engine.ErrMarketHalted):
		return http.StatusConflict, "conflict"
	case errors.Is(err, engine.ErrEngineClosed):
		return http.StatusServiceUnavailable, "engine closed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondEngineError(w http.ResponseWriter, err error) {
	status, label := errorStatus(err)
	respondError(w, status, label, err.Error())
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
