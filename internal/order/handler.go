package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"assembliestore-be/internal/logger"
	"assembliestore-be/internal/middleware"
	"assembliestore-be/internal/stock"
	"assembliestore-be/internal/transport"
	"assembliestore-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register wires the order routes. Reads are open to any authenticated
// user (ownership enforced in-handler); mutations of the lifecycle are
// staff-only except cancellation, which the owner may do too.
func (h *Handler) Register(mux *http.ServeMux) {
	staff := []string{utils.RoleAdmin, utils.RoleManagement}

	mux.HandleFunc("POST /orders", middleware.RequireAuth(h.CreateOrder))
	mux.HandleFunc("GET /orders/{id}", middleware.RequireAuth(h.GetOrderByID))
	mux.HandleFunc("GET /orders", middleware.RequireRoles(h.GetAllOrders, staff...))
	mux.HandleFunc("GET /orders/user/{userId}", middleware.RequireAuth(h.GetOrdersByUserID))
	mux.HandleFunc("GET /orders/status/{status}", middleware.RequireRoles(h.GetOrdersByStatus, staff...))
	mux.HandleFunc("PATCH /orders/{id}/status", middleware.RequireRoles(h.UpdateOrderStatus, staff...))
	mux.HandleFunc("DELETE /orders/{id}", middleware.RequireRoles(h.DeleteOrder, utils.RoleAdmin))
	mux.HandleFunc("POST /orders/{id}/cancel", middleware.RequireAuth(h.CancelOrder))
}

type createOrderRequest struct {
	Products []struct {
		ProductID string          `json:"productId"`
		Name      string          `json:"name"`
		UnitPrice decimal.Decimal `json:"unitPrice"`
		Quantity  int             `json:"quantity"`
	} `json:"products"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

type orderPaymentResponse struct {
	Order      *Order `json:"order"`
	PaymentURL string `json:"paymentUrl,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method, ok := ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		transport.Error(w, http.StatusBadRequest, "unknown payment method: "+req.PaymentMethod)
		return
	}

	o := &Order{
		UserID:          userID,
		PaymentMethod:   method,
		ShippingAddress: req.ShippingAddress,
	}
	for _, p := range req.Products {
		o.Products = append(o.Products, OrderProduct{
			ProductID: p.ProductID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
			Quantity:  p.Quantity,
		})
	}

	created, paymentURL, err := h.svc.CreateOrder(r.Context(), o)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	transport.JSON(w, http.StatusCreated, "Order created successfully", orderPaymentResponse{
		Order:      created,
		PaymentURL: paymentURL,
	})
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.FindOrderByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	// Non-staff users only see their own orders.
	userID, _ := utils.GetUserIDFromContext(r.Context())
	if !utils.IsStaff(r.Context()) && o.UserID != userID {
		transport.ErrorCode(w, http.StatusForbidden, "UNAUTHORIZED", "cannot access others' orders")
		return
	}

	transport.JSON(w, http.StatusOK, "Order found", o)
}

func (h *Handler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.FindAllOrders(r.Context())
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	transport.JSON(w, http.StatusOK, "Orders retrieved successfully", orders)
}

func (h *Handler) GetOrdersByUserID(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("userId")

	userID, _ := utils.GetUserIDFromContext(r.Context())
	if !utils.IsStaff(r.Context()) && targetID != userID {
		transport.ErrorCode(w, http.StatusForbidden, "UNAUTHORIZED", "cannot access others' orders")
		return
	}

	orders, err := h.svc.FindOrdersByUserID(r.Context(), targetID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	transport.JSON(w, http.StatusOK, "User orders retrieved", orders)
}

func (h *Handler) GetOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ParseStatus(r.PathValue("status"))
	if err != nil {
		transport.ErrorCode(w, http.StatusBadRequest, "UNKNOWN_STATUS", err.Error())
		return
	}

	orders, err := h.svc.FindOrdersByStatus(r.Context(), status)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	transport.JSON(w, http.StatusOK, "Orders by status retrieved", orders)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := ParseStatus(req.Status)
	if err != nil {
		transport.ErrorCode(w, http.StatusBadRequest, "UNKNOWN_STATUS", err.Error())
		return
	}

	o, err := h.svc.UpdateOrderStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	transport.JSON(w, http.StatusOK, "Order status updated", o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	o, err := h.svc.CancelOrder(r.Context(), r.PathValue("id"), userID, utils.IsStaff(r.Context()))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	transport.JSON(w, http.StatusOK, "Order cancelled successfully", o)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOrder(r.Context(), r.PathValue("id")); err != nil {
		writeOrderError(w, r, err)
		return
	}
	transport.JSON(w, http.StatusOK, "Order deleted successfully", nil)
}

// writeOrderError maps service errors to HTTP statuses and stable codes.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		transport.ErrorCode(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
	case errors.Is(err, ErrUnauthorized):
		transport.ErrorCode(w, http.StatusForbidden, "UNAUTHORIZED", "you do not have permission to modify this order")
	case errors.Is(err, stock.ErrInsufficientStock):
		transport.ErrorCode(w, http.StatusConflict, "STOCK_INSUFFICIENT", err.Error())
	case errors.Is(err, ErrInvalidStatusTransition), errors.Is(err, ErrStatusNoop):
		transport.ErrorCode(w, http.StatusConflict, "INVALID_STATUS_TRANSITION", err.Error())
	case errors.Is(err, ErrNotCancellable):
		transport.ErrorCode(w, http.StatusConflict, "ORDER_NOT_CANCELLABLE", err.Error())
	case errors.Is(err, ErrNotDeletable):
		transport.ErrorCode(w, http.StatusConflict, "ORDER_NOT_DELETABLE", err.Error())
	case errors.Is(err, ErrGatewayUnavailable):
		transport.ErrorCode(w, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "payment gateway unavailable, please retry")
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidQuantity), errors.Is(err, stock.ErrInvalidQuantity):
		transport.ErrorCode(w, http.StatusBadRequest, "INVALID_ORDER", err.Error())
	default:
		logger.FromCtx(r.Context()).Error("unhandled order error", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
