// Package sim drives an engine with random order flow for load testing and
// demos.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/uhyunpark/crossbook/pkg/app/core/engine"
	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

type ActionKind int8

const (
	PlaceAction ActionKind = iota
	CancelAction
	TickAction
)

func (k ActionKind) String() string {
	switch k {
	case PlaceAction:
		return "place"
	case CancelAction:
		return "cancel"
	case TickAction:
		return "tick"
	default:
		return "unknown"
	}
}

// Action is one generated call against the engine.
type Action struct {
	Kind    ActionKind
	Order   engine.OrderRequest // PlaceAction
	Symbol  string              // CancelAction, TickAction
	OrderID string              // CancelAction
	Price   int64               // TickAction
}

const (
	basePrice   = 50000
	recentIDs   = 100
	maxPriceGap = 2500 // ±5% around the mid
)

// Generator creates random order flow. The same seed yields the same flow.
type Generator struct {
	accounts []string
	symbols  []string
	mid      map[string]int64
	recent   []orderRef // ring of recently placed ids, for cancels
	next     int
	orderID  int
	rng      *rand.Rand

	orders, cancels, ticks int
}

type orderRef struct {
	symbol, id string
}

func NewGenerator(numAccounts int, symbols []string, seed int64) *Generator {
	if numAccounts < 1 {
		numAccounts = 1
	}
	accounts := make([]string, numAccounts)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("trader_%d", i+1)
	}
	mid := make(map[string]int64, len(symbols))
	for _, s := range symbols {
		mid[s] = basePrice
	}
	return &Generator{
		accounts: accounts,
		symbols:  symbols,
		mid:      mid,
		recent:   make([]orderRef, 0, recentIDs),
		orderID:  1,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) symbol() string {
	return g.symbols[g.rng.Intn(len(g.symbols))]
}

// GenerateOrder returns a random order: 70% limit, 15% market, 15% stop-limit.
func (g *Generator) GenerateOrder() Action {
	account := g.accounts[g.rng.Intn(len(g.accounts))]
	symbol := g.symbol()

	side := orderbook.Buy
	if g.rng.Intn(2) == 1 {
		side = orderbook.Sell
	}

	mid := g.mid[symbol]
	price := mid + int64(g.rng.Intn(2*maxPriceGap)-maxPriceGap)
	if price < 1 {
		price = 1
	}

	req := engine.OrderRequest{
		ID:       fmt.Sprintf("%s_o%d", account, g.orderID),
		Symbol:   symbol,
		Side:     side,
		Qty:      int64(g.rng.Intn(100) + 1),
		TraderID: account,
	}
	g.orderID++

	switch r := g.rng.Intn(100); {
	case r < 70:
		req.Kind = orderbook.Limit
		req.LimitPrice = price
	case r < 85:
		req.Kind = orderbook.Market
	default:
		// Buy stops sit below the mid, sell stops above, so a tick
		// crossing the stop activates them.
		req.Kind = orderbook.StopLimit
		offset := int64(g.rng.Intn(maxPriceGap) + 1)
		if side == orderbook.Buy {
			req.StopPrice = mid - offset
			req.LimitPrice = req.StopPrice + offset/2
		} else {
			req.StopPrice = mid + offset
			req.LimitPrice = req.StopPrice - offset/2
		}
		if req.StopPrice < 1 {
			req.StopPrice = 1
		}
		if req.LimitPrice < 1 {
			req.LimitPrice = 1
		}
	}

	g.remember(orderRef{symbol: symbol, id: req.ID})
	g.orders++
	return Action{Kind: PlaceAction, Order: req}
}

func (g *Generator) remember(ref orderRef) {
	if len(g.recent) < recentIDs {
		g.recent = append(g.recent, ref)
		return
	}
	g.recent[g.next] = ref
	g.next = (g.next + 1) % recentIDs
}

// GenerateCancel picks one of the last placed orders. It may already be
// filled or cancelled.
func (g *Generator) GenerateCancel() Action {
	g.cancels++
	if len(g.recent) == 0 {
		return Action{Kind: CancelAction, Symbol: g.symbol(), OrderID: "none"}
	}
	ref := g.recent[g.rng.Intn(len(g.recent))]
	return Action{Kind: CancelAction, Symbol: ref.symbol, OrderID: ref.id}
}

// GenerateTick moves a symbol's mid by a random walk step.
func (g *Generator) GenerateTick() Action {
	symbol := g.symbol()
	mid := g.mid[symbol] + int64(g.rng.Intn(201)-100)
	if mid < 1 {
		mid = 1
	}
	g.mid[symbol] = mid
	g.ticks++
	return Action{Kind: TickAction, Symbol: symbol, Price: mid}
}

// GenerateMix returns 85% orders, 10% cancels and 5% ticks.
func (g *Generator) GenerateMix() Action {
	switch r := g.rng.Intn(100); {
	case r < 85:
		return g.GenerateOrder()
	case r < 95:
		return g.GenerateCancel()
	default:
		return g.GenerateTick()
	}
}

func (g *Generator) GenerateBatch(count int) []Action {
	batch := make([]Action, count)
	for i := range batch {
		batch[i] = g.GenerateMix()
	}
	return batch
}

type GenStats struct {
	Orders  int
	Cancels int
	Ticks   int
}

func (g *Generator) Stats() GenStats {
	return GenStats{Orders: g.orders, Cancels: g.cancels, Ticks: g.ticks}
}
