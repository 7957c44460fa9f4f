package payment

import "errors"

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrSignatureExpired  = errors.New("webhook signature timestamp outside tolerance")
	ErrMalformedEvent    = errors.New("malformed webhook event")
	ErrOrderUnresolvable = errors.New("order id missing from event metadata")
)
