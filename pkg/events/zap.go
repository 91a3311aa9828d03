package events

import (
	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

// ZapSink writes every notification as a structured log line.
type ZapSink struct {
	logger *zap.SugaredLogger
}

func NewZapSink(logger *zap.SugaredLogger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (z *ZapSink) OrderAccepted(o orderbook.Order) {
	z.logger.Infow("order_accepted",
		"id", o.ID,
		"symbol", o.Symbol,
		"side", o.Side.String(),
		"kind", o.Kind.String(),
		"price", o.LimitPrice,
		"qty", o.OriginalQty,
		"trader", o.TraderID,
		"seq", o.Seq,
	)
}

func (z *ZapSink) OrderRejected(o orderbook.Order, reason error) {
	z.logger.Warnw("order_rejected",
		"id", o.ID,
		"symbol", o.Symbol,
		"trader", o.TraderID,
		"qty", o.OriginalQty,
		"reason", reason,
	)
}

func (z *ZapSink) TradeExecuted(t orderbook.Trade) {
	z.logger.Infow("trade_executed",
		"symbol", t.Symbol,
		"seq", t.Seq,
		"price", t.Price,
		"qty", t.Qty,
		"fee", t.Fee.String(),
		"net", t.NetValue.String(),
		"buy_order", t.BuyOrderID,
		"sell_order", t.SellOrderID,
		"aggressor", t.AggressorSide.String(),
	)
}

func (z *ZapSink) OrderCancelled(o orderbook.Order, reason string) {
	z.logger.Infow("order_cancelled",
		"id", o.ID,
		"symbol", o.Symbol,
		"remaining", o.RemainingQty,
		"reason", reason,
	)
}

func (z *ZapSink) StopTriggered(o orderbook.Order, marketPrice int64) {
	z.logger.Infow("stop_triggered",
		"id", o.ID,
		"symbol", o.Symbol,
		"limit", o.LimitPrice,
		"market_price", marketPrice,
	)
}
