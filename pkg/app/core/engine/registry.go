package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// MarketStatus defines the trading status of a market
type MarketStatus int8

const (
	Active MarketStatus = iota // Trading enabled
	Halted                     // New orders rejected, cancels still allowed
)

func (ms MarketStatus) String() string {
	switch ms {
	case Active:
		return "active"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// market is everything the engine keeps per symbol. mu is the symbol lock:
// it guards the book, the dormant stops and the status.
type market struct {
	mu     sync.Mutex
	symbol string
	book   *orderbook.OrderBook
	stops  map[string]*orderbook.Order // dormant stop-limit orders by ID
	status MarketStatus
}

func newMarket(symbol string) *market {
	return &market{
		symbol: symbol,
		book:   orderbook.NewOrderBook(symbol),
		stops:  make(map[string]*orderbook.Order),
	}
}

func (m *market) has(id string) bool {
	if m.book.Has(id) {
		return true
	}
	_, ok := m.stops[id]
	return ok
}

// registry maps symbols to markets. The write lock is only taken the first
// time a symbol is seen.
type registry struct {
	mu      sync.RWMutex
	markets map[string]*market
}

func newRegistry() *registry {
	return &registry{markets: make(map[string]*market)}
}

func (r *registry) get(symbol string) (*market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[symbol]
	return m, ok
}

// getOrCreate returns the market for symbol, creating an empty one on first
// reference. created reports whether this call made it.
func (r *registry) getOrCreate(symbol string) (m *market, created bool) {
	if m, ok := r.get(symbol); ok {
		return m, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.markets[symbol]; ok {
		return m, false
	}
	m = newMarket(symbol)
	r.markets[symbol] = m
	return m, true
}

func (r *registry) lookup(symbol string) (*market, error) {
	m, ok := r.get(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, symbol)
	}
	return m, nil
}

// symbols lists every known symbol, sorted.
func (r *registry) symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.markets))
	for sym := range r.markets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
