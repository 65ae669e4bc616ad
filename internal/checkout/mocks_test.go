package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tvdermeer/3dprint-website/domain"
)

type mockOrderAPI struct {
	mu sync.Mutex

	IntentErr     error
	IntentAmounts []decimal.Decimal

	OrderErr    error
	Orders      []domain.OrderCreate
	Keys        []string
	Tokens      []string
	OrderGate   chan struct{}
	nextOrderID int64
}

func (m *mockOrderAPI) CreatePaymentIntent(_ context.Context, amount decimal.Decimal, _ string) (*domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IntentAmounts = append(m.IntentAmounts, amount)
	if m.IntentErr != nil {
		return nil, m.IntentErr
	}
	return &domain.PaymentIntent{ClientSecret: "pi_123_secret_abc"}, nil
}

func (m *mockOrderAPI) CreateOrder(ctx context.Context, token, key string, order domain.OrderCreate) (*domain.Order, error) {
	if m.OrderGate != nil {
		select {
		case <-m.OrderGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, order)
	m.Keys = append(m.Keys, key)
	m.Tokens = append(m.Tokens, token)
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	m.nextOrderID++
	return &domain.Order{
		ID:              m.nextOrderID,
		OrderNumber:     fmt.Sprintf("ORD-%d", m.nextOrderID),
		Status:          order.Status,
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		TotalAmount:     order.TotalAmount,
		StripePaymentID: order.StripePaymentID,
		Items:           order.Items,
	}, nil
}

func (m *mockOrderAPI) setOrderErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderErr = err
}

func (m *mockOrderAPI) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

type staticSession string

func (s staticSession) Token() string { return string(s) }
