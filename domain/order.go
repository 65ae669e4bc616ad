package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID              int64           `json:"id,omitempty"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// OrderCreate is the body of POST /orders.
type OrderCreate struct {
	CustomerEmail   string           `json:"customer_email"`
	CustomerName    string           `json:"customer_name"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	Status          string           `json:"status"`
	Items           []OrderItem      `json:"items"`
	StripePaymentID *string          `json:"stripe_payment_id,omitempty"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
}

// Order is owned by the backend; the client only references it.
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerName    string          `json:"customer_name"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	StripePaymentID *string         `json:"stripe_payment_id,omitempty"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

const OrderStatusPending = "pending"

type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
}

// Receipt is what the confirmation screen shows: the order plus the cart as it was purchased.
type Receipt struct {
	Order *Order     `json:"order"`
	Items []CartItem `json:"items"`
	Quote Quote      `json:"quote"`
}
