package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"assembliestore-be/internal/order"
	"assembliestore-be/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, string, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*order.Order), args.String(1), args.Error(2)
}

func (m *MockOrderService) FindOrderByID(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) FindAllOrders(ctx context.Context) ([]*order.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) FindOrdersByUserID(ctx context.Context, userID string) ([]*order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) FindOrdersByStatus(ctx context.Context, status order.OrderStatus) ([]*order.Order, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, orderID string, newStatus order.OrderStatus) (*order.Order, error) {
	args := m.Called(ctx, orderID, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*order.Order, error) {
	args := m.Called(ctx, orderID, userID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderService) RefundOrder(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) MarkPaymentCompleted(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderService) MarkPaymentFailed(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderService) MarkPaymentExpired(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, orderID, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) VerifyWebhook(payload []byte, sigHeader string) (*payment.Event, error) {
	args := m.Called(payload, sigHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Event), args.Error(1)
}

// --- Helpers ---

func checkoutEvent(eventType, orderID string) *payment.Event {
	e := &payment.Event{ID: "evt_1", Type: eventType}
	e.Data.Object = []byte(`{"id": "cs_1", "payment_status": "paid", "metadata": {"order_id": "` + orderID + `"}}`)
	return e
}

func postWebhook(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	h.HandleStripeWebhook(w, req)
	return w
}

// --- Tests ---

func TestHandleStripeWebhook(t *testing.T) {
	body := `{"id":"evt_1"}`

	t.Run("CheckoutCompleted", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", []byte(body), "t=1,v1=sig").
			Return(checkoutEvent(payment.EventCheckoutCompleted, "ord-1"), nil)
		svc.On("MarkPaymentCompleted", mock.Anything, "ord-1").Return(nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("AsyncPaymentSucceeded", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutAsyncSucceeded, "ord-1"), nil)
		svc.On("MarkPaymentCompleted", mock.Anything, "ord-1").Return(nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("AsyncPaymentFailed", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutAsyncFailed, "ord-1"), nil)
		svc.On("MarkPaymentFailed", mock.Anything, "ord-1").Return(nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("SessionExpired", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutExpired, "ord-1"), nil)
		svc.On("MarkPaymentExpired", mock.Anything, "ord-1").Return(nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("BadSignature", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(nil, payment.ErrInvalidSignature)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "MarkPaymentCompleted")
	})

	t.Run("MissingOrderID_DroppedWith200", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		e := &payment.Event{ID: "evt_1", Type: payment.EventCheckoutCompleted}
		e.Data.Object = []byte(`{"id": "cs_1", "metadata": {}}`)
		gw.On("VerifyWebhook", mock.Anything, mock.Anything).Return(e, nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertNotCalled(t, "MarkPaymentCompleted")
	})

	t.Run("Replay_NoopIs200", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutCompleted, "ord-1"), nil)
		svc.On("MarkPaymentCompleted", mock.Anything, "ord-1").Return(order.ErrStatusNoop)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("UnknownOrder_DroppedWith200", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutCompleted, "ghost"), nil)
		svc.On("MarkPaymentCompleted", mock.Anything, "ghost").Return(order.ErrOrderNotFound)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ConflictingTransition_AckedWith200", func(t *testing.T) {
		// A completed-checkout event for a cancelled order can never
		// apply; a 500 would make the gateway retry it forever.
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutCompleted, "ord-1"), nil)
		svc.On("MarkPaymentCompleted", mock.Anything, "ord-1").
			Return(fmt.Errorf("%w: CANCELLED -> CONFIRMED", order.ErrInvalidStatusTransition))

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("TransitionError_500", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyWebhook", mock.Anything, mock.Anything).
			Return(checkoutEvent(payment.EventCheckoutCompleted, "ord-1"), nil)
		svc.On("MarkPaymentCompleted", mock.Anything, "ord-1").Return(assert.AnError)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("DisputeCreated_LoggedOnly", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		e := &payment.Event{ID: "evt_1", Type: payment.EventDisputeCreated}
		gw.On("VerifyWebhook", mock.Anything, mock.Anything).Return(e, nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertNotCalled(t, "MarkPaymentCompleted")
		svc.AssertNotCalled(t, "MarkPaymentFailed")
	})

	t.Run("UnhandledEventType_Acknowledged", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		e := &payment.Event{ID: "evt_1", Type: "customer.created"}
		gw.On("VerifyWebhook", mock.Anything, mock.Anything).Return(e, nil)

		w := postWebhook(h, body)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHandleRefund(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		refunded := &order.Order{ID: "ord-1", Status: order.StatusRefunded}
		svc.On("RefundOrder", mock.Anything, "ord-1").Return(refunded, nil)

		req := httptest.NewRequest("POST", "/webhooks/refund/ord-1", nil)
		req.SetPathValue("orderId", "ord-1")
		w := httptest.NewRecorder()
		h.HandleRefund(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		svc.On("RefundOrder", mock.Anything, "ghost").Return(nil, order.ErrOrderNotFound)

		req := httptest.NewRequest("POST", "/webhooks/refund/ghost", nil)
		req.SetPathValue("orderId", "ghost")
		w := httptest.NewRecorder()
		h.HandleRefund(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		svc.On("RefundOrder", mock.Anything, "ord-1").Return(nil, order.ErrInvalidStatusTransition)

		req := httptest.NewRequest("POST", "/webhooks/refund/ord-1", nil)
		req.SetPathValue("orderId", "ord-1")
		w := httptest.NewRecorder()
		h.HandleRefund(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
