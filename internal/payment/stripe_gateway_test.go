package payment

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func newTestGateway() *stripeGateway {
	return NewStripeGateway(StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://shop.example.com/success",
		CancelURL:     "https://shop.example.com/cancel",
	}).(*stripeGateway)
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gw := newTestGateway()

		respBody := `{"id": "cs_test_123", "url": "https://checkout.stripe.com/pay/cs_test_123"}`

		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "POST", req.Method)
			assert.Equal(t, "https://api.stripe.com/v1/checkout/sessions", req.URL.String())

			user, _, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "sk_test_123", user)

			require.NoError(t, req.ParseForm())
			assert.Equal(t, "payment", req.PostForm.Get("mode"))
			assert.Equal(t, "ord-1", req.PostForm.Get("metadata[order_id]"))
			// 49.99 becomes 4999 cents.
			assert.Equal(t, "4999", req.PostForm.Get("line_items[0][price_data][unit_amount]"))
			assert.Equal(t, "usd", req.PostForm.Get("line_items[0][price_data][currency]"))
			assert.Equal(t, "https://shop.example.com/success?session_id={CHECKOUT_SESSION_ID}",
				req.PostForm.Get("success_url"))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(respBody)),
				Header:     make(http.Header),
			}
		})

		session, err := gw.CreateCheckoutSession(context.Background(), "ord-1",
			decimal.NewFromFloat(49.99), "usd")
		require.NoError(t, err)
		assert.Equal(t, "cs_test_123", session.SessionID)
		assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_123", session.URL)
	})

	t.Run("StripeError", func(t *testing.T) {
		gw := newTestGateway()

		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusPaymentRequired,
				Body:       io.NopCloser(bytes.NewBufferString(`{"error": {"message": "card declined"}}`)),
				Header:     make(http.Header),
			}
		})

		_, err := gw.CreateCheckoutSession(context.Background(), "ord-1",
			decimal.NewFromFloat(10), "usd")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "stripe error")
	})

	t.Run("MalformedResponse", func(t *testing.T) {
		gw := newTestGateway()

		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString("not json")),
				Header:     make(http.Header),
			}
		})

		_, err := gw.CreateCheckoutSession(context.Background(), "ord-1",
			decimal.NewFromFloat(10), "usd")
		assert.Error(t, err)
	})
}

func TestStripeGateway_VerifyWebhook(t *testing.T) {
	gw := newTestGateway()
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "payment_status": "paid", "metadata": {"order_id": "ord-1"}}}
	}`)

	t.Run("Valid", func(t *testing.T) {
		header := SignPayload(payload, "whsec_test", time.Now())

		event, err := gw.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, EventCheckoutCompleted, event.Type)

		orderID, err := event.OrderID()
		require.NoError(t, err)
		assert.Equal(t, "ord-1", orderID)
	})

	t.Run("BadSignature", func(t *testing.T) {
		header := SignPayload(payload, "whsec_wrong", time.Now())

		_, err := gw.VerifyWebhook(payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		bad := []byte("not json")
		header := SignPayload(bad, "whsec_test", time.Now())

		_, err := gw.VerifyWebhook(bad, header)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})

	t.Run("MissingEventType", func(t *testing.T) {
		body := []byte(`{"id": "evt_2"}`)
		header := SignPayload(body, "whsec_test", time.Now())

		_, err := gw.VerifyWebhook(body, header)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestEvent_OrderID(t *testing.T) {
	t.Run("MissingMetadata", func(t *testing.T) {
		var e Event
		e.Type = EventCheckoutCompleted
		e.Data.Object = []byte(`{"id": "cs_1", "metadata": {}}`)

		_, err := e.OrderID()
		assert.ErrorIs(t, err, ErrOrderUnresolvable)
	})

	t.Run("MalformedObject", func(t *testing.T) {
		var e Event
		e.Data.Object = []byte(`[1,2,3]`)

		_, err := e.OrderID()
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}
