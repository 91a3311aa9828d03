package orderbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an order of this side trades against.
func (s Side) Opposite() Side { return -s }

func (s Side) MarshalText() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("invalid side %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "buy", "bid":
		*s = Buy
	case "sell", "ask":
		*s = Sell
	default:
		return fmt.Errorf("invalid side %q", b)
	}
	return nil
}

// Kind is the closed set of order variants. A StopLimit order turns into a
// Limit order once its stop price is reached.
type Kind int8

const (
	Limit Kind = iota
	Market
	StopLimit
)

func (k Kind) String() string {
	switch k {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < Limit || k > StopLimit {
		return nil, fmt.Errorf("invalid order kind %d", k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "limit", "":
		*k = Limit
	case "market":
		*k = Market
	case "stop_limit", "stoplimit", "stop-limit":
		*k = StopLimit
	default:
		return fmt.Errorf("invalid order kind %q", b)
	}
	return nil
}

// Status tracks an order through its lifecycle:
//
//	Pending -> Open -> PartiallyFilled -> Filled
//	Open/PartiallyFilled -> Cancelled
//	Pending -> Rejected
//	Pending -> Dormant -> Open (stop-limit only)
type Status int8

const (
	Pending Status = iota
	Dormant
	Open
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Dormant:
		return "dormant"
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for st := Pending; st <= Rejected; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Resting reports whether an order in this state may sit in a ladder.
func (s Status) Resting() bool {
	return s == Open || s == PartiallyFilled
}

type Order struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Side         Side   `json:"side"`
	Kind         Kind   `json:"kind"`
	LimitPrice   int64  `json:"limitPrice,omitempty"` // integer ticks
	StopPrice    int64  `json:"stopPrice,omitempty"`
	OriginalQty  int64  `json:"originalQty"` // integer lots
	RemainingQty int64  `json:"remainingQty"`
	TraderID     string `json:"traderId"`
	Seq          uint64 `json:"seq"` // arrival sequence, tie-break within a price
	Status       Status `json:"status"`
}

func (o *Order) FilledQty() int64 {
	return o.OriginalQty - o.RemainingQty
}

// Validate checks the order shape before it may reach any book.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("%w: invalid side %d", ErrInvalidOrder, o.Side)
	}
	if o.OriginalQty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if o.RemainingQty <= 0 || o.RemainingQty > o.OriginalQty {
		return fmt.Errorf("%w: remaining quantity %d out of range (original %d)", ErrInvalidOrder, o.RemainingQty, o.OriginalQty)
	}
	switch o.Kind {
	case Limit:
		if o.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit order requires a positive price", ErrInvalidOrder)
		}
	case StopLimit:
		if o.LimitPrice <= 0 {
			return fmt.Errorf("%w: stop-limit order requires a positive limit price", ErrInvalidOrder)
		}
		if o.StopPrice <= 0 {
			return fmt.Errorf("%w: stop-limit order requires a positive stop price", ErrInvalidOrder)
		}
	case Market:
		if o.LimitPrice != 0 || o.StopPrice != 0 {
			return fmt.Errorf("%w: market order cannot carry a price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order kind %d", ErrInvalidOrder, o.Kind)
	}
	return nil
}

// IsTriggered reports whether a stop-limit order fires at marketPrice.
// Buy stops fire when the market falls to the stop, sell stops when it rises to it.
func (o *Order) IsTriggered(marketPrice int64) bool {
	if o.Kind != StopLimit {
		return false
	}
	if o.Side == Buy {
		return marketPrice <= o.StopPrice
	}
	return marketPrice >= o.StopPrice
}

// Activate converts a dormant stop-limit order into an open limit order at
// its limit price with a new arrival sequence.
func (o *Order) Activate(seq uint64) {
	o.Kind = Limit
	o.StopPrice = 0
	o.Seq = seq
	o.Status = Open
}

type Trade struct {
	Symbol        string          `json:"symbol"`
	Price         int64           `json:"price"` // resting order's price
	Qty           int64           `json:"qty"`
	Fee           decimal.Decimal `json:"fee"`
	NetValue      decimal.Decimal `json:"netValue"` // notional minus fee
	BuyOrderID    string          `json:"buyOrderId"`
	SellOrderID   string          `json:"sellOrderId"`
	BuyTraderID   string          `json:"buyTraderId"`
	SellTraderID  string          `json:"sellTraderId"`
	AggressorSide Side            `json:"aggressorSide"`
	Seq           uint64          `json:"seq"`
	Time          time.Time       `json:"time"`
}

func (t Trade) Notional() decimal.Decimal {
	return decimal.NewFromInt(t.Price).Mul(decimal.NewFromInt(t.Qty))
}

// PriceLevel aggregates the resting quantity at one price.
type PriceLevel struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}
