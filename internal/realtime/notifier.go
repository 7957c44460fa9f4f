package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NotificationMessage is the envelope delivered on notification channels.
type NotificationMessage struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Data          any    `json:"data,omitempty"`
	TargetRole    string `json:"targetRole,omitempty"`
	TargetChannel string `json:"targetChannel,omitempty"`
	Timestamp     string `json:"timestamp"`
	Priority      string `json:"priority,omitempty"`
}

// StockUpdateMessage is delivered on stock channels whenever inventory moves.
type StockUpdateMessage struct {
	ProductID     string `json:"productId"`
	PreviousStock int    `json:"previousStock"`
	CurrentStock  int    `json:"currentStock"`
	StockChange   int    `json:"stockChange"`
	ChangeType    string `json:"changeType"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Notifier pushes order and stock events to connected websocket clients.
// Delivery is best effort: failures are logged and never propagated to the
// caller, an order must not fail because a socket is gone.
type Notifier struct {
	hub *Hub
	log *zap.Logger
}

func NewNotifier(hub *Hub, log *zap.Logger) *Notifier {
	return &Notifier{hub: hub, log: log}
}

func (n *Notifier) NotifyOrderStatusChange(orderID, oldStatus, newStatus, userID string) {
	n.sendNotification(NotificationMessage{
		Type:          "ORDER_STATUS_UPDATE",
		Title:         "Order Status Updated",
		Message:       fmt.Sprintf("Your order #%s status changed from %s to %s", orderID, oldStatus, newStatus),
		TargetRole:    "CLIENT",
		TargetChannel: "order-updates",
		Priority:      "MEDIUM",
		Data: map[string]any{
			"orderId":   orderID,
			"oldStatus": oldStatus,
			"newStatus": newStatus,
			"userId":    userID,
		},
	})
}

func (n *Notifier) NotifyPaymentResult(orderID, userID, paymentStatus, title, message, amount string) {
	n.sendNotification(NotificationMessage{
		Type:          "PAYMENT_RESULT",
		Title:         title,
		Message:       message,
		TargetRole:    "CLIENT",
		TargetChannel: "payment-updates",
		Priority:      "HIGH",
		Data: map[string]any{
			"orderId":       orderID,
			"userId":        userID,
			"paymentStatus": paymentStatus,
			"amount":        amount,
		},
	})
}

func (n *Notifier) NotifyOrderCancelled(orderID, userID string) {
	n.sendNotification(NotificationMessage{
		Type:          "ORDER_CANCELLED",
		Title:         "Order Cancelled",
		Message:       fmt.Sprintf("Order #%s has been cancelled", orderID),
		TargetRole:    "CLIENT",
		TargetChannel: "order-updates",
		Priority:      "MEDIUM",
		Data: map[string]any{
			"orderId": orderID,
			"userId":  userID,
		},
	})
}

func (n *Notifier) NotifyStockChange(productID string, previous, current int, changeType string) {
	n.sendStockUpdate(StockUpdateMessage{
		ProductID:     productID,
		PreviousStock: previous,
		CurrentStock:  current,
		StockChange:   current - previous,
		ChangeType:    changeType,
		Reason:        "SALE",
	})
}

func (n *Notifier) NotifyOutOfStock(productID string) {
	n.sendNotification(NotificationMessage{
		Type:          "OUT_OF_STOCK",
		Title:         "Product Out of Stock",
		Message:       fmt.Sprintf("Product %s is now out of stock", productID),
		TargetRole:    "MANAGEMENT",
		TargetChannel: "inventory-alerts",
		Priority:      "HIGH",
		Data: map[string]any{
			"productId": productID,
			"action":    "restock_required",
		},
	})
}

// sendStockUpdate fans a stock movement out to the stock and notification
// connection types plus the stock channels management subscribes to.
func (n *Notifier) sendStockUpdate(update StockUpdateMessage) {
	update.Timestamp = time.Now().UnixMilli()

	payload, err := json.Marshal(update)
	if err != nil {
		n.log.Error("failed to encode stock update", zap.Error(err))
		return
	}

	n.hub.BroadcastToType(ConnTypeStock, payload)
	n.hub.BroadcastToType(ConnTypeNotifications, payload)
	n.hub.BroadcastToChannel("stock-updates", payload)
	n.hub.BroadcastToChannel("inventory-alerts", payload)

	n.log.Info("stock update sent",
		zap.String("product_id", update.ProductID),
		zap.Int("current_stock", update.CurrentStock),
		zap.String("change_type", update.ChangeType))
}

func (n *Notifier) sendNotification(msg NotificationMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("failed to encode notification", zap.Error(err))
		return
	}

	if msg.TargetRole == "ALL" {
		n.hub.BroadcastToType(ConnTypeNotifications, payload)
		n.hub.BroadcastToType(ConnTypeGeneral, payload)
	} else {
		n.hub.BroadcastToType(ConnTypeNotifications, payload)
	}
	if msg.TargetChannel != "" {
		n.hub.BroadcastToChannel(msg.TargetChannel, payload)
	}

	n.log.Info("notification sent",
		zap.String("type", msg.Type),
		zap.String("target_role", msg.TargetRole),
		zap.String("title", msg.Title))
}
