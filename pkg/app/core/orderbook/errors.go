package orderbook

import "errors"

var (
	ErrInvalidOrder   = errors.New("invalid order")
	ErrNotFound       = errors.New("order not found")
	ErrSymbolMismatch = errors.New("order symbol does not match book")
	ErrDuplicateOrder = errors.New("duplicate order id")
)
