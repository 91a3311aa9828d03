package engine

import (
	"errors"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
)

var (
	ErrInvalidOrder   = orderbook.ErrInvalidOrder
	ErrNotFound       = orderbook.ErrNotFound
	ErrDuplicateOrder = orderbook.ErrDuplicateOrder

	ErrRiskRejected = errors.New("rejected by risk policy")
	ErrMarketHalted = errors.New("market halted")
	ErrEngineClosed = errors.New("engine closed")
)

// rejectReason is the metrics label for a placement error.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrRiskRejected):
		return "risk"
	case errors.Is(err, ErrMarketHalted):
		return "halted"
	case errors.Is(err, ErrDuplicateOrder):
		return "duplicate"
	case errors.Is(err, ErrInvalidOrder):
		return "invalid"
	default:
		return "other"
	}
}
