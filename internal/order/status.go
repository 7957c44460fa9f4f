package order

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusProcessing    OrderStatus = "PROCESSING"
	StatusConfirmed     OrderStatus = "CONFIRMED"
	StatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
	StatusExpired       OrderStatus = "EXPIRED"
	StatusPreparing     OrderStatus = "PREPARING"
	StatusShipped       OrderStatus = "SHIPPED"
	StatusDelivered     OrderStatus = "DELIVERED"
	StatusCancelled     OrderStatus = "CANCELLED"
	StatusRefunded      OrderStatus = "REFUNDED"
)

// transitions is the authoritative transition table. A pair not listed
// here is rejected; CANCELLED and REFUNDED have no outgoing edges.
var transitions = map[OrderStatus][]OrderStatus{
	StatusProcessing:    {StatusConfirmed, StatusCancelled, StatusPaymentFailed, StatusExpired},
	StatusConfirmed:     {StatusPreparing, StatusCancelled, StatusRefunded},
	StatusPaymentFailed: {StatusCancelled, StatusProcessing},
	StatusExpired:       {StatusCancelled, StatusProcessing},
	StatusPreparing:     {StatusShipped, StatusCancelled},
	StatusShipped:       {StatusDelivered},
	StatusDelivered:     {StatusRefunded},
	StatusCancelled:     {},
	StatusRefunded:      {},
}

// CanTransition reports whether the table allows moving from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s OrderStatus) bool {
	return len(transitions[s]) == 0
}

// IsCancellable reports whether an order in this status may still be
// cancelled by its owner.
func IsCancellable(s OrderStatus) bool {
	switch s {
	case StatusProcessing, StatusConfirmed, StatusPreparing, StatusPaymentFailed, StatusExpired:
		return true
	}
	return false
}

// HoldsStock reports whether an order in this status still holds its
// reservation, i.e. cancelling it must credit the stock back.
func HoldsStock(s OrderStatus) bool {
	switch s {
	case StatusProcessing, StatusConfirmed, StatusPreparing:
		return true
	}
	return false
}

// statusDisplay maps each status to its human readable form.
var statusDisplay = map[OrderStatus]string{
	StatusProcessing:    "Processing",
	StatusConfirmed:     "Confirmed",
	StatusPaymentFailed: "Payment Failed",
	StatusExpired:       "Expired",
	StatusPreparing:     "Preparing",
	StatusShipped:       "Shipped",
	StatusDelivered:     "Delivered",
	StatusCancelled:     "Cancelled",
	StatusRefunded:      "Refunded",
}

// Display returns the human readable form of the status.
func (s OrderStatus) Display() string {
	if d, ok := statusDisplay[s]; ok {
		return d
	}
	return string(s)
}

// ParseStatus accepts either the enum name (PAYMENT_FAILED) or the
// display form ("Payment Failed"), case-insensitively. Unknown input is
// an error rather than a silent default.
func ParseStatus(value string) (OrderStatus, error) {
	for status, display := range statusDisplay {
		if strings.EqualFold(string(status), value) || strings.EqualFold(display, value) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
}
