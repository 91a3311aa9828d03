// Package storage archives trades and order states in pebble and journals
// engine events to a file. None of it sits on the matching path: the ledger
// and the event dispatcher call in after the symbol lock is released.
package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveTrade persists a ledger-stamped trade and advances the archived
// sequence in the same batch.
func (s *PebbleStore) SaveTrade(t orderbook.Trade) error {
	data, err := encode(t)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(tradeKey(t.Symbol, t.Seq), data, nil); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	last, err := s.LastTradeSeq()
	if err != nil {
		return err
	}
	if t.Seq > last {
		if err := b.Set(kTradeSeq(), seqBytes(t.Seq), nil); err != nil {
			return fmt.Errorf("failed to save trade seq: %w", err)
		}
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to commit trade: %w", err)
	}
	return nil
}

// LastTradeSeq returns the highest archived trade sequence, 0 when empty.
func (s *PebbleStore) LastTradeSeq() (uint64, error) {
	val, closer, err := s.db.Get(kTradeSeq())
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get trade seq: %w", err)
	}
	defer closer.Close()
	return parseSeq(val)
}

// LoadRecentTrades loads the most recent N trades for a symbol, newest first.
// limit <= 0 loads all of them.
func (s *PebbleStore) LoadRecentTrades(symbol string, limit int) ([]orderbook.Trade, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("trade iterator: %w", err)
	}
	defer iter.Close()

	var trades []orderbook.Trade
	for iter.Last(); iter.Valid() && (limit <= 0 || len(trades) < limit); iter.Prev() {
		var t orderbook.Trade
		if err := decode(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("trade %s: %w", iter.Key(), err)
		}
		trades = append(trades, t)
	}
	return trades, iter.Error()
}

// SaveOrder persists the latest state of an order
func (s *PebbleStore) SaveOrder(o orderbook.Order) error {
	data, err := encode(o)
	if err != nil {
		return err
	}
	if err := s.db.Set(orderKey(o.Symbol, o.ID), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// LoadOrder loads an order. ok is false when the order was never saved.
func (s *PebbleStore) LoadOrder(symbol, id string) (o orderbook.Order, ok bool, err error) {
	data, closer, err := s.db.Get(orderKey(symbol, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return orderbook.Order{}, false, nil
	}
	if err != nil {
		return orderbook.Order{}, false, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()
	if err := decode(data, &o); err != nil {
		return orderbook.Order{}, false, err
	}
	return o, true, nil
}

// LoadOrders loads every saved order of a symbol that matches keep.
func (s *PebbleStore) LoadOrders(symbol string, keep func(orderbook.Order) bool) ([]orderbook.Order, error) {
	prefix := orderPrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("order iterator: %w", err)
	}
	defer iter.Close()

	var orders []orderbook.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o orderbook.Order
		if err := decode(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("order %s: %w", iter.Key(), err)
		}
		if keep == nil || keep(o) {
			orders = append(orders, o)
		}
	}
	return orders, iter.Error()
}

// LoadOpenOrders loads orders still resting or dormant at last save
func (s *PebbleStore) LoadOpenOrders(symbol string) ([]orderbook.Order, error) {
	return s.LoadOrders(symbol, func(o orderbook.Order) bool {
		return o.Status.Resting() || o.Status == orderbook.Dormant
	})
}
