package storage

import (
	"fmt"
)

// Key schema:
//
//	trade:<symbol>:<seq>  → Trade (seq zero-padded to 20 digits)
//	ord:<symbol>:<id>     → Order, last known state
//	meta:trade_seq        → highest archived trade sequence
const (
	prefixTrade = "trade:"
	prefixOrder = "ord:"
)

func kTradeSeq() []byte { return []byte("meta:trade_seq") }

// tradeKey returns the key for a trade
// Format: "trade:{symbol}:{seq}"
// Sequence is zero-padded (20 digits) for lexicographic sorting
func tradeKey(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTrade, symbol, seq))
}

// tradePrefix returns the prefix for all trades of a symbol
// Format: "trade:{symbol}:"
func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, symbol))
}

// orderKey returns the key for an order
// Format: "ord:{symbol}:{orderID}"
func orderKey(symbol, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixOrder, symbol, orderID))
}

// orderPrefix returns the prefix for all orders of a symbol
// Format: "ord:{symbol}:"
func orderPrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOrder, symbol))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
