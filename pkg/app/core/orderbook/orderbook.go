package orderbook

import (
	"container/heap"
	"fmt"
	"sort"
)

// OrderBook holds the resting orders of one symbol in two ladders.
//
// Bids are ordered by (price desc, seq asc) and asks by (price asc, seq asc).
// Each ladder is a heap of distinct prices plus a FIFO queue per price, kept
// sorted by arrival sequence.
//
// OrderBook is single-writer: it does no locking of its own. The engine
// serializes every call for a symbol under that symbol's lock.
type OrderBook struct {
	Symbol string

	bidHeap *priceHeap
	askHeap *priceHeap

	bids map[int64][]*Order // price -> queue ordered by Seq
	asks map[int64][]*Order

	index map[string]*Order // order ID -> resting order

	lastPrice int64 // most recent trade price
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol:  symbol,
		bidHeap: newPriceHeap(true),
		askHeap: newPriceHeap(false),
		bids:    make(map[int64][]*Order),
		asks:    make(map[int64][]*Order),
		index:   make(map[string]*Order),
	}
}

func (ob *OrderBook) ladder(side Side) (map[int64][]*Order, *priceHeap) {
	if side == Buy {
		return ob.bids, ob.bidHeap
	}
	return ob.asks, ob.askHeap
}

// BestBid returns the highest bid price
func (ob *OrderBook) BestBid() (int64, bool) { return ob.bidHeap.Peek() }

// BestAsk returns the lowest ask price
func (ob *OrderBook) BestAsk() (int64, bool) { return ob.askHeap.Peek() }

// LastPrice returns the price of the most recent trade, 0 if none.
func (ob *OrderBook) LastPrice() int64 { return ob.lastPrice }

// Len returns the number of resting orders across both ladders.
func (ob *OrderBook) Len() int { return len(ob.index) }

// Has reports whether an order with this ID is resting in the book.
func (ob *OrderBook) Has(id string) bool {
	_, ok := ob.index[id]
	return ok
}

// Get returns a copy of a resting order.
func (ob *OrderBook) Get(id string) (Order, bool) {
	o, ok := ob.index[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Insert places a limit order in its ladder without matching it.
func (ob *OrderBook) Insert(o *Order) error {
	if o.Symbol != ob.Symbol {
		return fmt.Errorf("%w: %s into %s", ErrSymbolMismatch, o.Symbol, ob.Symbol)
	}
	if o.Kind != Limit {
		return fmt.Errorf("%w: only limit orders rest in the book, got %s", ErrInvalidOrder, o.Kind)
	}
	if o.LimitPrice <= 0 {
		return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
	}
	if o.RemainingQty <= 0 || o.RemainingQty > o.OriginalQty {
		return fmt.Errorf("%w: remaining quantity %d out of range", ErrInvalidOrder, o.RemainingQty)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidOrder, o.ID, o.Status)
	}
	if _, exists := ob.index[o.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}

	levels, prices := ob.ladder(o.Side)
	queue := levels[o.LimitPrice]
	if len(queue) == 0 {
		// New price level - add to heap
		heap.Push(prices, o.LimitPrice)
	}
	// Arrivals are almost always the newest, so this lands at the tail.
	i := sort.Search(len(queue), func(i int) bool { return queue[i].Seq > o.Seq })
	queue = append(queue, nil)
	copy(queue[i+1:], queue[i:])
	queue[i] = o
	levels[o.LimitPrice] = queue

	if o.RemainingQty == o.OriginalQty {
		o.Status = Open
	} else {
		o.Status = PartiallyFilled
	}
	ob.index[o.ID] = o
	return nil
}

// head returns the first order at the best price of a ladder.
func (ob *OrderBook) head(side Side) (*Order, bool) {
	levels, prices := ob.ladder(side)
	price, ok := prices.Peek()
	if !ok {
		return nil, false
	}
	queue := levels[price]
	if len(queue) == 0 {
		panic(fmt.Sprintf("orderbook %s: empty %s level at %d", ob.Symbol, side, price))
	}
	return queue[0], true
}

// popHead drops the filled head order of a ladder.
func (ob *OrderBook) popHead(side Side) {
	levels, prices := ob.ladder(side)
	price, _ := prices.Peek()
	queue := levels[price]
	delete(ob.index, queue[0].ID)
	queue[0] = nil
	if len(queue) == 1 {
		delete(levels, price)
		prices.drop(price)
		return
	}
	levels[price] = queue[1:]
}

// fill decrements an order and settles its status, removing it from the
// ladder when nothing remains.
func (ob *OrderBook) fill(o *Order, qty int64, resting bool) {
	o.RemainingQty -= qty
	if o.RemainingQty < 0 {
		panic(fmt.Sprintf("orderbook %s: order %s overfilled", ob.Symbol, o.ID))
	}
	if o.RemainingQty > 0 {
		o.Status = PartiallyFilled
		return
	}
	o.Status = Filled
	if resting {
		ob.popHead(o.Side)
	}
}

// MatchOnce crosses the top of both ladders once. The trade is priced at the
// resting order, which is the one that arrived first.
func (ob *OrderBook) MatchOnce() (Trade, bool) {
	bidP, okBid := ob.BestBid()
	askP, okAsk := ob.BestAsk()
	if !okBid || !okAsk || bidP < askP {
		return Trade{}, false
	}
	bid, _ := ob.head(Buy)
	ask, _ := ob.head(Sell)

	qty := min(bid.RemainingQty, ask.RemainingQty)
	price, aggressor := askP, Buy
	if bid.Seq < ask.Seq {
		price, aggressor = bidP, Sell
	}

	trade := ob.newTrade(bid, ask, price, qty, aggressor)
	ob.fill(bid, qty, true)
	ob.fill(ask, qty, true)
	ob.lastPrice = price
	return trade, true
}

// MatchAll runs MatchOnce until the book no longer crosses. It is a no-op on
// an uncrossed book.
func (ob *OrderBook) MatchAll() []Trade {
	var trades []Trade
	for {
		t, ok := ob.MatchOnce()
		if !ok {
			return trades
		}
		trades = append(trades, t)
	}
}

// Sweep executes a market order against the opposite ladder at the resting
// prices. A market order never rests: whatever cannot be filled is cancelled.
func (ob *OrderBook) Sweep(o *Order) ([]Trade, error) {
	if o.Symbol != ob.Symbol {
		return nil, fmt.Errorf("%w: %s into %s", ErrSymbolMismatch, o.Symbol, ob.Symbol)
	}
	if o.Kind != Market {
		return nil, fmt.Errorf("%w: sweep requires a market order, got %s", ErrInvalidOrder, o.Kind)
	}
	if o.RemainingQty <= 0 {
		return nil, fmt.Errorf("%w: remaining quantity must be positive", ErrInvalidOrder)
	}

	var trades []Trade
	for o.RemainingQty > 0 {
		maker, ok := ob.head(o.Side.Opposite())
		if !ok {
			break
		}
		qty := min(o.RemainingQty, maker.RemainingQty)
		bid, ask := o, maker
		if o.Side == Sell {
			bid, ask = maker, o
		}
		trades = append(trades, ob.newTrade(bid, ask, maker.LimitPrice, qty, o.Side))
		ob.lastPrice = maker.LimitPrice
		ob.fill(maker, qty, true)
		ob.fill(o, qty, false)
	}
	if o.RemainingQty > 0 {
		o.Status = Cancelled
	}
	return trades, nil
}

func (ob *OrderBook) newTrade(bid, ask *Order, price, qty int64, aggressor Side) Trade {
	return Trade{
		Symbol:        ob.Symbol,
		Price:         price,
		Qty:           qty,
		BuyOrderID:    bid.ID,
		SellOrderID:   ask.ID,
		BuyTraderID:   bid.TraderID,
		SellTraderID:  ask.TraderID,
		AggressorSide: aggressor,
	}
}

// Remove cancels a resting order. Both ladders are searched; a miss on the
// bid side never short-circuits the ask search.
func (ob *OrderBook) Remove(id string) (Order, error) {
	o, ok := ob.index[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	price := o.LimitPrice

	removed := ob.removeFrom(ob.bids, ob.bidHeap, price, id)
	if removed == nil {
		removed = ob.removeFrom(ob.asks, ob.askHeap, price, id)
	}
	if removed == nil {
		panic(fmt.Sprintf("orderbook %s: indexed order %s missing from both ladders", ob.Symbol, id))
	}

	delete(ob.index, id)
	removed.Status = Cancelled
	return *removed, nil
}

func (ob *OrderBook) removeFrom(levels map[int64][]*Order, prices *priceHeap, price int64, id string) *Order {
	queue, exists := levels[price]
	if !exists {
		return nil
	}
	for i, o := range queue {
		if o.ID != id {
			continue
		}
		// Remove from FIFO queue
		queue = append(queue[:i], queue[i+1:]...)
		if len(queue) == 0 {
			delete(levels, price)
			prices.drop(price)
		} else {
			levels[price] = queue
		}
		return o
	}
	return nil
}

// Orders returns copies of one ladder's orders in priority order.
func (ob *OrderBook) Orders(side Side) []Order {
	levels, prices := ob.ladder(side)
	sorted := append([]int64(nil), prices.prices...)
	sort.Slice(sorted, func(i, j int) bool {
		if side == Buy {
			return sorted[i] > sorted[j]
		}
		return sorted[i] < sorted[j]
	})

	var out []Order
	for _, p := range sorted {
		for _, o := range levels[p] {
			out = append(out, *o)
		}
	}
	return out
}

// Depth returns up to n aggregated levels per side, best first. n <= 0 means
// every level.
func (ob *OrderBook) Depth(n int) (bids, asks []PriceLevel) {
	return ob.levels(Buy, n), ob.levels(Sell, n)
}

func (ob *OrderBook) levels(side Side, n int) []PriceLevel {
	levels, _ := ob.ladder(side)
	out := make([]PriceLevel, 0, len(levels))
	for price, queue := range levels {
		var total int64
		for _, o := range queue {
			total += o.RemainingQty
		}
		out = append(out, PriceLevel{Price: price, Qty: total, Orders: len(queue)})
	}

	// Sort high to low for bids, low to high for asks
	sort.Slice(out, func(i, j int) bool {
		if side == Buy {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MidPrice returns the average of best bid and best ask, 0 when one-sided.
func (ob *OrderBook) MidPrice() int64 {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return (bid + ask) / 2
}
