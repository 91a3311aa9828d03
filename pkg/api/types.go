package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// MarketInfo is the summary of one symbol's book
type MarketInfo struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`    // "active", "halted"
	BestBid   *int64 `json:"bestBid"`   // null when the bid ladder is empty
	BestAsk   *int64 `json:"bestAsk"`   // null when the ask ladder is empty
	LastPrice int64  `json:"lastPrice"` // 0 before the first trade
}

// OrderbookSnapshot represents current orderbook state
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`      // Sorted high to low
	Asks      []PriceLevel `json:"asks"`      // Sorted low to high
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// PriceLevel is the aggregated size resting at one price
type PriceLevel struct {
	Price  int64 `json:"price"`  // ticks
	Size   int64 `json:"size"`   // lots
	Orders int   `json:"orders"` // resting orders at this price
}

// TradeInfo represents an executed trade
type TradeInfo struct {
	Seq         uint64 `json:"seq"`
	Symbol      string `json:"symbol"`
	Price       int64  `json:"price"`
	Size        int64  `json:"size"`
	Side        string `json:"side"` // aggressor side, "buy" or "sell"
	Fee         string `json:"fee"`
	NetValue    string `json:"netValue"`
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	Timestamp   int64  `json:"timestamp"` // Unix milliseconds
}

// OrderInfo represents a resting or dormant order
type OrderInfo struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"` // "buy" or "sell"
	Kind      string `json:"kind"` // "limit", "stop_limit"
	Price     int64  `json:"price"`
	StopPrice int64  `json:"stopPrice,omitempty"`
	Size      int64  `json:"size"`
	Filled    int64  `json:"filled"`
	Remaining int64  `json:"remaining"`
	Status    string `json:"status"` // "dormant", "open", "partially_filled"
	Trader    string `json:"trader"`
}

// PositionInfo is a trader's signed net quantity in one symbol
type PositionInfo struct {
	Symbol string `json:"symbol"`
	Size   int64  `json:"size"` // +ve = long, -ve = short
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:AAPL", "trades:AAPL"]
}

// OrderbookUpdate is broadcast on every refresh interval
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
	Seq       uint64       `json:"seq"` // last trade seq reflected
}

// TradeUpdate is broadcast when a trade executes
type TradeUpdate struct {
	Type string `json:"type"` // "trade"
	TradeInfo
}

// ==============================
// REST Request Types
// ==============================

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
}

// TickRequest is the payload for POST /api/v1/markets/{symbol}/tick
type TickRequest struct {
	Price int64 `json:"price"`
}

type TickResponse struct {
	Symbol    string   `json:"symbol"`
	Triggered []string `json:"triggered"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	Status  string `json:"status"`            // "accepted", "rejected"
	OrderID string `json:"orderId,omitempty"` // Assigned order ID
	Message string `json:"message,omitempty"` // Error message if rejected
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
