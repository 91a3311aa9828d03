// Package events carries engine notifications to injected sinks.
package events

import (
	"fmt"
	"time"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

type Type int

const (
	OrderAccepted Type = iota + 1
	OrderRejected
	TradeExecuted
	OrderCancelled
	StopTriggered
)

var typeNames = map[Type]string{
	OrderAccepted:  "order_accepted",
	OrderRejected:  "order_rejected",
	TradeExecuted:  "trade_executed",
	OrderCancelled: "order_cancelled",
	StopTriggered:  "stop_triggered",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	for k, name := range typeNames {
		if name == string(b) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", b)
}

// Cancel reasons.
const (
	ReasonUser        = "user"
	ReasonNoLiquidity = "no_liquidity"
)

// Event is the wire form of a notification.
type Event struct {
	V           int              `json:"v"`
	Type        Type             `json:"type"`
	Symbol      string           `json:"symbol"`
	Order       *orderbook.Order `json:"order,omitempty"`
	Trade       *orderbook.Trade `json:"trade,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	MarketPrice int64            `json:"marketPrice,omitempty"`
	Time        time.Time        `json:"time"`
}

// Sink receives engine notifications. Calls arrive from a single dispatcher
// goroutine, in the order the engine produced them for each symbol.
type Sink interface {
	OrderAccepted(o orderbook.Order)
	OrderRejected(o orderbook.Order, reason error)
	TradeExecuted(t orderbook.Trade)
	OrderCancelled(o orderbook.Order, reason string)
	StopTriggered(o orderbook.Order, marketPrice int64)
}

// Deliver routes e to the matching Sink method.
func Deliver(s Sink, e Event) {
	switch e.Type {
	case OrderAccepted:
		s.OrderAccepted(*e.Order)
	case OrderRejected:
		s.OrderRejected(*e.Order, rejectErr(e.Reason))
	case TradeExecuted:
		s.TradeExecuted(*e.Trade)
	case OrderCancelled:
		s.OrderCancelled(*e.Order, e.Reason)
	case StopTriggered:
		s.StopTriggered(*e.Order, e.MarketPrice)
	default:
		panic(fmt.Sprintf("events: unknown type %d", e.Type))
	}
}

type rejectErr string

func (r rejectErr) Error() string { return string(r) }

// Nop discards everything.
type Nop struct{}

func (Nop) OrderAccepted(orderbook.Order)          {}
func (Nop) OrderRejected(orderbook.Order, error)   {}
func (Nop) TradeExecuted(orderbook.Trade)          {}
func (Nop) OrderCancelled(orderbook.Order, string) {}
func (Nop) StopTriggered(orderbook.Order, int64)   {}

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) OrderAccepted(o orderbook.Order) {
	for _, s := range m {
		s.OrderAccepted(o)
	}
}

func (m Multi) OrderRejected(o orderbook.Order, reason error) {
	for _, s := range m {
		s.OrderRejected(o, reason)
	}
}

func (m Multi) TradeExecuted(t orderbook.Trade) {
	for _, s := range m {
		s.TradeExecuted(t)
	}
}

func (m Multi) OrderCancelled(o orderbook.Order, reason string) {
	for _, s := range m {
		s.OrderCancelled(o, reason)
	}
}

func (m Multi) StopTriggered(o orderbook.Order, marketPrice int64) {
	for _, s := range m {
		s.StopTriggered(o, marketPrice)
	}
}
