package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the buyer pays for the order.
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard      PaymentMethod = "DEBIT_CARD"
	PaymentCash           PaymentMethod = "CASH"
	PaymentBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentPaypal         PaymentMethod = "PAYPAL"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// RequiresCheckout reports whether the method needs an external checkout
// session before the order can be confirmed.
func (m PaymentMethod) RequiresCheckout() bool {
	return m == PaymentCreditCard || m == PaymentDebitCard
}

func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch strings.ToUpper(strings.ReplaceAll(value, " ", "_")) {
	case "CREDIT_CARD":
		return PaymentCreditCard, true
	case "DEBIT_CARD":
		return PaymentDebitCard, true
	case "CASH":
		return PaymentCash, true
	case "BANK_TRANSFER":
		return PaymentBankTransfer, true
	case "PAYPAL":
		return PaymentPaypal, true
	case "CASH_ON_DELIVERY":
		return PaymentCashOnDelivery, true
	}
	return "", false
}

// OrderProduct is a snapshot of a product line at purchase time. Name and
// unit price are copied, not referenced, so later catalog edits never
// change a past order.
type OrderProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is derived, never stored independently.
func (p OrderProduct) Subtotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Products         []OrderProduct  `json:"products"`
	Total            decimal.Decimal `json:"total"`
	Status           OrderStatus     `json:"status"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	OrderDate        time.Time       `json:"orderDate"`
	StatusUpdateDate time.Time       `json:"statusUpdateDate"`
	StockRestored    bool            `json:"-"`
	Deleted          bool            `json:"-"`
	DeletedAt        *time.Time      `json:"-"`
}

// CalculateTotal recomputes the order total from its product lines. It
// runs on every mutation so the stored total is never stale.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, p := range o.Products {
		total = total.Add(p.Subtotal())
	}
	o.Total = total
}

// ProductQuantities aggregates the ordered quantities per product id,
// summing duplicate lines for the same product.
func (o *Order) ProductQuantities() map[string]int {
	quantities := make(map[string]int, len(o.Products))
	for _, p := range o.Products {
		quantities[p.ProductID] += p.Quantity
	}
	return quantities
}
