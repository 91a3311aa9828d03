// Package ledger is the append-only record of executed trades and the
// performance figures derived from it.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// Archive receives every recorded trade, e.g. a pebble store.
type Archive interface {
	SaveTrade(t orderbook.Trade) error
}

// Ledger assigns trade sequence numbers and keeps the full history in memory.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	trades   []orderbook.Trade
	bySymbol map[string][]int // symbol -> indexes into trades
	lastSeq  uint64

	archive Archive
	logger  *zap.SugaredLogger
}

type Option func(*Ledger)

// WithArchive mirrors recorded trades into a. Archive failures are logged and
// never block recording.
func WithArchive(a Archive) Option { return func(l *Ledger) { l.archive = a } }

// WithStartSeq resumes numbering after seq, e.g. after reopening an archive.
func WithStartSeq(seq uint64) Option { return func(l *Ledger) { l.lastSeq = seq } }

func WithLogger(logger *zap.SugaredLogger) Option { return func(l *Ledger) { l.logger = logger } }

func New(opts ...Option) *Ledger {
	l := &Ledger{
		bySymbol: make(map[string][]int),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record stamps t with the next sequence number and appends it.
func (l *Ledger) Record(t orderbook.Trade) orderbook.Trade {
	l.mu.Lock()
	l.lastSeq++
	t.Seq = l.lastSeq
	l.bySymbol[t.Symbol] = append(l.bySymbol[t.Symbol], len(l.trades))
	l.trades = append(l.trades, t)
	l.mu.Unlock()

	if l.archive != nil {
		if err := l.archive.SaveTrade(t); err != nil {
			l.logger.Warnw("archive_trade_failed", "symbol", t.Symbol, "seq", t.Seq, "err", err)
		}
	}
	return t
}

// Trades returns up to limit of the most recent trades for symbol, oldest
// first. limit <= 0 returns all of them.
func (l *Ledger) Trades(symbol string, limit int) []orderbook.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.bySymbol[symbol]
	if limit > 0 && len(idx) > limit {
		idx = idx[len(idx)-limit:]
	}
	out := make([]orderbook.Trade, len(idx))
	for i, j := range idx {
		out[i] = l.trades[j]
	}
	return out
}

// All returns every trade in sequence order.
func (l *Ledger) All() []orderbook.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]orderbook.Trade(nil), l.trades...)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

func (l *Ledger) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSeq
}

// RealizedValue is the summed notional (price * qty) traded in symbol.
func (l *Ledger) RealizedValue(symbol string) decimal.Decimal {
	return l.Stats(symbol).Notional
}
