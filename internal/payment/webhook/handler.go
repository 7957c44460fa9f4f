package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"assembliestore-be/internal/logger"
	"assembliestore-be/internal/metrics"
	"assembliestore-be/internal/middleware"
	"assembliestore-be/internal/order"
	"assembliestore-be/internal/payment"
	"assembliestore-be/internal/transport"
	"assembliestore-be/internal/utils"

	"go.uber.org/zap"
)

// Handler receives Stripe webhook deliveries and the admin refund
// trigger. The gateway owns retry semantics: signature failures are
// rejected, unresolvable events are acknowledged and dropped.
type Handler struct {
	orderSvc order.Service
	gateway  payment.Gateway
}

func NewHandler(orderSvc order.Service, gateway payment.Gateway) *Handler {
	return &Handler{orderSvc: orderSvc, gateway: gateway}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
	mux.HandleFunc("POST /webhooks/refund/{orderId}",
		middleware.RequireRoles(h.HandleRefund, utils.RoleAdmin))
}

func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())
	timer := metrics.StartTimer()
	defer func() {
		log.Debug("webhook handled", zap.Duration("duration", timer.Duration()))
	}()

	payloadBytes, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Signature first; the body is never interpreted before it passes.
	event, err := h.gateway.VerifyWebhook(payloadBytes, r.Header.Get("Stripe-Signature"))
	if err != nil {
		metrics.WebhookRejected.Inc()
		log.Warn("webhook rejected", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncSucceeded:
		h.handleCheckoutEvent(w, r, event, log, h.orderSvc.MarkPaymentCompleted)
	case payment.EventCheckoutAsyncFailed:
		h.handleCheckoutEvent(w, r, event, log, h.orderSvc.MarkPaymentFailed)
	case payment.EventCheckoutExpired:
		h.handleCheckoutEvent(w, r, event, log, h.orderSvc.MarkPaymentExpired)
	case payment.EventDisputeCreated, payment.EventPaymentIntentFailed:
		// These payloads carry no order correlation; acknowledge and log.
		log.Info("payment event received without order correlation")
		metrics.WebhookProcessed.Inc()
		ack(w)
	default:
		log.Info("unhandled event type")
		metrics.WebhookProcessed.Inc()
		ack(w)
	}
}

func (h *Handler) handleCheckoutEvent(
	w http.ResponseWriter,
	r *http.Request,
	event *payment.Event,
	log *zap.Logger,
	transition func(ctx context.Context, orderID string) error,
) {
	orderID, err := event.OrderID()
	if err != nil {
		// No correlation metadata: drop the event without failing the
		// transport, the gateway would only replay it forever.
		metrics.WebhookDropped.Inc()
		log.Warn("dropping webhook event", zap.Error(err))
		ack(w)
		return
	}

	log = log.With(zap.String("order_id", orderID))

	err = transition(r.Context(), orderID)
	switch {
	case err == nil:
		metrics.WebhookProcessed.Inc()
		log.Info("webhook event processed")
		ack(w)
	case errors.Is(err, order.ErrStatusNoop):
		// Replay of an already-applied event: success, not an error.
		metrics.WebhookProcessed.Inc()
		log.Info("webhook event replay ignored")
		ack(w)
	case errors.Is(err, order.ErrOrderNotFound):
		metrics.WebhookDropped.Inc()
		log.Warn("webhook event references unknown order")
		ack(w)
	case errors.Is(err, order.ErrInvalidStatusTransition):
		// The order can never reach the target from its current status,
		// so a retry would only replay the same conflict.
		metrics.WebhookDropped.Inc()
		log.Warn("webhook event conflicts with order status", zap.Error(err))
		ack(w)
	default:
		log.Error("failed to process webhook event", zap.Error(err))
		http.Error(w, "failed to update order", http.StatusInternalServerError)
	}
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	log := logger.FromCtx(r.Context()).With(zap.String("order_id", orderID))

	o, err := h.orderSvc.RefundOrder(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			transport.ErrorCode(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
		case errors.Is(err, order.ErrInvalidStatusTransition):
			transport.ErrorCode(w, http.StatusConflict, "INVALID_STATUS_TRANSITION", err.Error())
		default:
			log.Error("failed to process refund", zap.Error(err))
			transport.Error(w, http.StatusInternalServerError, "error processing refund")
		}
		return
	}

	log.Info("refund processed")
	transport.JSON(w, http.StatusOK, "Refund processed successfully", o)
}

func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
