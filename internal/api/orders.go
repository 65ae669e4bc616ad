package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/tvdermeer/3dprint-website/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// CreateOrder posts an order. token may be empty for guest checkout. A non-empty
// idempotencyKey is sent so a resubmitted run cannot create a second order.
func (c *Client) CreateOrder(ctx context.Context, token, idempotencyKey string, order domain.OrderCreate) (*domain.Order, error) {
	r := request{
		op:     "create_order",
		method: http.MethodPost,
		path:   "/orders",
		token:  token,
		body:   order,
	}
	if idempotencyKey != "" {
		r.headers = map[string]string{IdempotencyKeyHeader: idempotencyKey}
	}

	var created domain.Order
	if err := c.do(ctx, r, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, request{
		op:     "get_order",
		method: http.MethodGet,
		path:   fmt.Sprintf("/orders/%d", id),
	}, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, request{
		op:     "get_order_by_number",
		method: http.MethodGet,
		path:   "/orders/number/" + url.PathEscape(number),
	}, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreatePaymentIntent asks the backend for a payment intent. amount is in major units (dollars)
// and is sent rounded to cents; currency defaults to "usd".
func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error) {
	if currency == "" {
		currency = "usd"
	}
	var intent domain.PaymentIntent
	err := c.do(ctx, request{
		op:     "create_payment_intent",
		method: http.MethodPost,
		path:   "/payments/create-intent",
		body: map[string]any{
			"amount":   amount.Round(2),
			"currency": currency,
		},
	}, &intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *Client) Health(ctx context.Context) (*domain.Health, error) {
	var h domain.Health
	err := c.do(ctx, request{
		op:     "health",
		method: http.MethodGet,
		path:   "/health",
	}, &h)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
