package engine

import "github.com/uhyunpark/crossbook/pkg/app/core/orderbook"

// OrderRequest is what a caller submits. ID is optional; the engine assigns
// one when it is empty.
type OrderRequest struct {
	ID         string         `json:"id,omitempty"`
	Symbol     string         `json:"symbol"`
	Side       orderbook.Side `json:"side"`
	Kind       orderbook.Kind `json:"kind"`
	LimitPrice int64          `json:"limitPrice,omitempty"`
	StopPrice  int64          `json:"stopPrice,omitempty"`
	Qty        int64          `json:"qty"`
	TraderID   string         `json:"traderId"`
}

func (r OrderRequest) order() *orderbook.Order {
	return &orderbook.Order{
		ID:           r.ID,
		Symbol:       r.Symbol,
		Side:         r.Side,
		Kind:         r.Kind,
		LimitPrice:   r.LimitPrice,
		StopPrice:    r.StopPrice,
		OriginalQty:  r.Qty,
		RemainingQty: r.Qty,
		TraderID:     r.TraderID,
		Status:       orderbook.Pending,
	}
}

// PlaceResult is one entry of a batch placement.
type PlaceResult struct {
	ID  string `json:"id,omitempty"`
	Err error  `json:"-"`
}

// Quote is the top of a book. A nil price means that side is empty.
type Quote struct {
	Symbol  string `json:"symbol"`
	BestBid *int64 `json:"bestBid"`
	BestAsk *int64 `json:"bestAsk"`
}

func (q Quote) Spread() (int64, bool) {
	if q.BestBid == nil || q.BestAsk == nil {
		return 0, false
	}
	return *q.BestAsk - *q.BestBid, true
}
