package order

import "errors"

var (
	// -- Resource state --
	ErrOrderNotFound = errors.New("order not found")

	// -- Transitions --
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrStatusNoop              = errors.New("order already in requested status")
	ErrUnknownStatus           = errors.New("unknown order status")

	// -- Business rules --
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotCancellable     = errors.New("order cannot be cancelled in its current status")
	ErrNotDeletable       = errors.New("cannot delete an order that has been shipped or delivered")
	ErrEmptyOrder         = errors.New("order has no products")
	ErrInvalidQuantity    = errors.New("product quantity must be at least 1")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
