package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assembliestore-be/internal/logger"
	"assembliestore-be/internal/metrics"
	"assembliestore-be/internal/payment"
	"assembliestore-be/internal/stock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier receives best-effort order events. Delivery failures are the
// implementation's problem; they never surface here.
type Notifier interface {
	NotifyOrderStatusChange(orderID, oldStatus, newStatus, userID string)
	NotifyPaymentResult(orderID, userID, paymentStatus, title, message, amount string)
	NotifyOrderCancelled(orderID, userID string)
}

type Service interface {
	// CreateOrder reserves stock, opens a checkout session for card
	// methods and persists the order, all-or-nothing. The returned URL is
	// empty for non-card payment methods.
	CreateOrder(ctx context.Context, o *Order) (*Order, string, error)

	FindOrderByID(ctx context.Context, orderID string) (*Order, error)
	FindAllOrders(ctx context.Context) ([]*Order, error)
	FindOrdersByUserID(ctx context.Context, userID string) ([]*Order, error)
	FindOrdersByStatus(ctx context.Context, status OrderStatus) ([]*Order, error)

	UpdateOrderStatus(ctx context.Context, orderID string, newStatus OrderStatus) (*Order, error)
	CancelOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	RefundOrder(ctx context.Context, orderID string) (*Order, error)

	// Webhook-driven transitions. Replaying an event for an order already
	// in the target status returns ErrStatusNoop, which callers treat as
	// success.
	MarkPaymentCompleted(ctx context.Context, orderID string) error
	MarkPaymentFailed(ctx context.Context, orderID string) error
	MarkPaymentExpired(ctx context.Context, orderID string) error
}

type service struct {
	repo     Repository
	stock    stock.Ledger
	gateway  payment.Gateway
	notifier Notifier
	currency string
}

func NewService(repo Repository, ledger stock.Ledger, gateway payment.Gateway, notifier Notifier) Service {
	return &service{
		repo:     repo,
		stock:    ledger,
		gateway:  gateway,
		notifier: notifier,
		currency: "usd",
	}
}

func (s *service) CreateOrder(ctx context.Context, o *Order) (*Order, string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("user_id", o.UserID),
		zap.Int("product_count", len(o.Products)),
	)

	if len(o.Products) == 0 {
		return nil, "", ErrEmptyOrder
	}
	for _, p := range o.Products {
		if p.Quantity < 1 {
			return nil, "", ErrInvalidQuantity
		}
	}

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.Status = StatusProcessing
	o.OrderDate = time.Now()
	o.StatusUpdateDate = o.OrderDate
	o.CalculateTotal()

	log = log.With(zap.String("order_id", o.ID), zap.String("total", o.Total.String()))

	quantities := o.ProductQuantities()
	if err := s.stock.Reserve(ctx, quantities); err != nil {
		metrics.OrdersRejected.Inc()
		log.Warn("stock reservation rejected", zap.Error(err))
		return nil, "", err
	}

	var paymentURL string
	if o.PaymentMethod.RequiresCheckout() {
		session, err := s.gateway.CreateCheckoutSession(ctx, o.ID, o.Total, s.currency)
		if err != nil {
			// Roll the reservation back; the order is never persisted.
			if restoreErr := s.stock.Restore(ctx, quantities); restoreErr != nil {
				log.Error("failed to roll back reservation after gateway failure",
					zap.Error(restoreErr))
			}
			metrics.OrdersRejected.Inc()
			log.Error("checkout session creation failed", zap.Error(err))
			return nil, "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		paymentURL = session.URL
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		if restoreErr := s.stock.Restore(ctx, quantities); restoreErr != nil {
			log.Error("failed to roll back reservation after persist failure",
				zap.Error(restoreErr))
		}
		log.Error("failed to persist order", zap.Error(err))
		return nil, "", err
	}

	metrics.OrdersCreated.Inc()
	log.Info("order created")

	return o, paymentURL, nil
}

func (s *service) FindOrderByID(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.FindOrderByID(ctx, orderID)
}

func (s *service) FindAllOrders(ctx context.Context) ([]*Order, error) {
	return s.repo.FindAllOrders(ctx)
}

func (s *service) FindOrdersByUserID(ctx context.Context, userID string) ([]*Order, error) {
	return s.repo.FindOrdersByUserID(ctx, userID)
}

func (s *service) FindOrdersByStatus(ctx context.Context, status OrderStatus) ([]*Order, error) {
	return s.repo.FindOrdersByStatus(ctx, status)
}

// applyTransition validates the move against the table and applies it
// with the expected-status guard. Losing the guard race re-reads: if the
// order got to the target through another path the call is a no-op.
func (s *service) applyTransition(ctx context.Context, o *Order, next OrderStatus) error {
	if o.Status == next {
		return ErrStatusNoop
	}
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}

	err := s.repo.UpdateOrderStatus(ctx, o.ID, o.Status, next)
	if errors.Is(err, ErrStatusConflict) {
		current, readErr := s.repo.FindOrderByID(ctx, o.ID)
		if readErr != nil {
			return readErr
		}
		if current.Status == next {
			o.Status = next
			return ErrStatusNoop
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, next)
	}
	if err != nil {
		return err
	}

	o.Status = next
	o.StatusUpdateDate = time.Now()
	return nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID string, newStatus OrderStatus) (*Order, error) {
	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	oldStatus := o.Status
	if err := s.applyTransition(ctx, o, newStatus); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyOrderStatusChange(o.ID, string(oldStatus), string(newStatus), o.UserID)
	}
	return o, nil
}

func (s *service) CancelOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
	)

	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && o.UserID != userID {
		return nil, ErrUnauthorized
	}

	if !IsCancellable(o.Status) {
		return nil, fmt.Errorf("%w: %s", ErrNotCancellable, o.Status)
	}

	oldStatus := o.Status

	// Orders in stock-holding statuses still own a reservation.
	if HoldsStock(o.Status) {
		if err := s.restoreStockOnce(ctx, o); err != nil {
			log.Error("failed to restore stock on cancel", zap.Error(err))
			return nil, err
		}
	}

	if err := s.applyTransition(ctx, o, StatusCancelled); err != nil && !errors.Is(err, ErrStatusNoop) {
		return nil, err
	}

	metrics.OrdersCancelled.Inc()
	log.Info("order cancelled", zap.String("previous_status", string(oldStatus)))

	// Best-effort: a lost notification never fails the cancellation.
	if s.notifier != nil {
		s.notifier.NotifyOrderStatusChange(o.ID, string(oldStatus), string(StatusCancelled), o.UserID)
		s.notifier.NotifyOrderCancelled(o.ID, o.UserID)
	}

	return o, nil
}

func (s *service) DeleteOrder(ctx context.Context, orderID string) error {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID))

	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if o.Status == StatusShipped || o.Status == StatusDelivered {
		return ErrNotDeletable
	}

	// A PROCESSING order still holds its reservation. Restore failure is
	// logged and deletion proceeds; for PAYMENT_FAILED and EXPIRED the
	// webhook already credited the stock back.
	if o.Status == StatusProcessing {
		if err := s.restoreStockOnce(ctx, o); err != nil {
			log.Error("failed to restore stock for deleted order", zap.Error(err))
		} else {
			log.Info("stock restored for deleted order")
		}
	}

	return s.repo.DeleteOrder(ctx, orderID)
}

func (s *service) RefundOrder(ctx context.Context, orderID string) (*Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID))

	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusRefunded {
		return o, nil
	}
	if !CanTransition(o.Status, StatusRefunded) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, StatusRefunded)
	}

	oldStatus := o.Status

	// The transition is validated above, so a rejected refund never
	// touches inventory. Skipped if a compensation already credited this
	// order's stock back.
	if err := s.restoreStockOnce(ctx, o); err != nil {
		log.Error("failed to restore stock for refund", zap.Error(err))
	}

	if err := s.applyTransition(ctx, o, StatusRefunded); err != nil {
		if errors.Is(err, ErrStatusNoop) {
			return o, nil
		}
		return nil, err
	}

	log.Info("order refunded", zap.String("previous_status", string(oldStatus)))

	if s.notifier != nil {
		s.notifier.NotifyOrderStatusChange(o.ID, string(oldStatus), string(StatusRefunded), o.UserID)
		s.notifier.NotifyPaymentResult(o.ID, o.UserID, "REFUNDED", "Payment Refunded",
			fmt.Sprintf("Your payment for order #%s has been refunded.", o.ID), o.Total.String())
	}

	return o, nil
}

// ----------------- Webhook-driven transitions -----------------

func (s *service) MarkPaymentCompleted(ctx context.Context, orderID string) error {
	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	oldStatus := o.Status
	if err := s.applyTransition(ctx, o, StatusConfirmed); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("payment completed",
		zap.String("order_id", orderID))

	if s.notifier != nil {
		s.notifier.NotifyOrderStatusChange(o.ID, string(oldStatus), string(StatusConfirmed), o.UserID)
		s.notifier.NotifyPaymentResult(o.ID, o.UserID, "SUCCESS", "Payment Successful",
			fmt.Sprintf("Your payment for order #%s was successful", o.ID), o.Total.String())
	}
	return nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, orderID string) error {
	return s.failPayment(ctx, orderID, StatusPaymentFailed, "FAILED", "Payment Failed",
		"Your payment for order #%s has failed")
}

func (s *service) MarkPaymentExpired(ctx context.Context, orderID string) error {
	return s.failPayment(ctx, orderID, StatusExpired, "EXPIRED", "Payment Session Expired",
		"Your payment session for order #%s has expired. Please try again if you wish to complete this order.")
}

func (s *service) failPayment(ctx context.Context, orderID string, target OrderStatus, paymentStatus, title, messageFmt string) error {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID))

	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	oldStatus := o.Status
	if err := s.applyTransition(ctx, o, target); err != nil {
		return err
	}

	// Failure-class events release the reservation exactly once.
	if err := s.restoreStockOnce(ctx, o); err != nil {
		log.Error("failed to restore stock after payment failure", zap.Error(err))
	}

	log.Info("payment not completed", zap.String("status", string(target)))

	if s.notifier != nil {
		s.notifier.NotifyOrderStatusChange(o.ID, string(oldStatus), string(target), o.UserID)
		s.notifier.NotifyPaymentResult(o.ID, o.UserID, paymentStatus, title,
			fmt.Sprintf(messageFmt, o.ID), o.Total.String())
	}
	return nil
}

// restoreStockOnce credits the order's reserved quantities back exactly
// once across cancel, delete, refund and webhook compensations. The
// restore flag is flipped with a conditional write; the loser of a
// concurrent race skips the credit. When the credit itself fails the
// flag is handed back so a retry still restores the stock.
func (s *service) restoreStockOnce(ctx context.Context, o *Order) error {
	first, err := s.repo.MarkStockRestored(ctx, o.ID)
	if err != nil {
		return err
	}
	if !first {
		logger.FromCtx(ctx).Debug("stock already restored for order",
			zap.String("order_id", o.ID))
		return nil
	}

	if err := s.stock.Restore(ctx, o.ProductQuantities()); err != nil {
		if clearErr := s.repo.ClearStockRestored(ctx, o.ID); clearErr != nil {
			logger.FromCtx(ctx).Error("failed to release restore flag after failed credit",
				zap.String("order_id", o.ID), zap.Error(clearErr))
		}
		return err
	}

	o.StockRestored = true
	return nil
}
