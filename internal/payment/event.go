package payment

import (
	"encoding/json"
	"fmt"
)

// Stripe event types the webhook cares about.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
	EventDisputeCreated         = "charge.dispute.created"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Event is the decoded webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// SessionData is the checkout session object carried by checkout.* events.
type SessionData struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// Session decodes the event payload as a checkout session.
func (e *Event) Session() (*SessionData, error) {
	var s SessionData
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &s, nil
}

// OrderID extracts the correlation metadata from a checkout session event.
func (e *Event) OrderID() (string, error) {
	s, err := e.Session()
	if err != nil {
		return "", err
	}
	orderID := s.Metadata["order_id"]
	if orderID == "" {
		return "", ErrOrderUnresolvable
	}
	return orderID, nil
}
