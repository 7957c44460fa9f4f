package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutSession is an external payment session. The order id travels in
// the session metadata so webhook events can be correlated back.
type CheckoutSession struct {
	SessionID string
	URL       string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*CheckoutSession, error)

	// VerifyWebhook checks the signature header against the raw payload
	// and decodes the event. The payload is never interpreted before the
	// signature passes.
	VerifyWebhook(payload []byte, sigHeader string) (*Event, error)
}
