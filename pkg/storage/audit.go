package storage

import (
	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// OrderStore is the part of PebbleStore the audit trail needs.
type OrderStore interface {
	SaveOrder(o orderbook.Order) error
	LoadOrder(symbol, id string) (orderbook.Order, bool, error)
}

// AuditSink keeps the last known state of every order, including filled,
// cancelled and rejected ones that have left the book.
type AuditSink struct {
	store  OrderStore
	logger *zap.SugaredLogger
}

func NewAuditSink(store OrderStore, logger *zap.SugaredLogger) *AuditSink {
	return &AuditSink{store: store, logger: logger}
}

func (a *AuditSink) save(o orderbook.Order) {
	if err := a.store.SaveOrder(o); err != nil {
		a.logger.Warnw("audit_save_failed", "id", o.ID, "symbol", o.Symbol, "err", err)
	}
}

func (a *AuditSink) OrderAccepted(o orderbook.Order) { a.save(o) }

func (a *AuditSink) OrderRejected(o orderbook.Order, _ error) {
	if o.Symbol == "" || o.ID == "" {
		return
	}
	a.save(o)
}

func (a *AuditSink) OrderCancelled(o orderbook.Order, _ string) { a.save(o) }

func (a *AuditSink) StopTriggered(o orderbook.Order, _ int64) { a.save(o) }

// TradeExecuted applies the fill to both recorded orders.
func (a *AuditSink) TradeExecuted(t orderbook.Trade) {
	a.fill(t.Symbol, t.BuyOrderID, t.Qty)
	a.fill(t.Symbol, t.SellOrderID, t.Qty)
}

func (a *AuditSink) fill(symbol, id string, qty int64) {
	o, ok, err := a.store.LoadOrder(symbol, id)
	if err != nil {
		a.logger.Warnw("audit_load_failed", "id", id, "symbol", symbol, "err", err)
		return
	}
	if !ok {
		return
	}
	o.RemainingQty -= qty
	switch {
	case o.RemainingQty <= 0:
		o.RemainingQty = 0
		o.Status = orderbook.Filled
	default:
		o.Status = orderbook.PartiallyFilled
	}
	a.save(o)
}
