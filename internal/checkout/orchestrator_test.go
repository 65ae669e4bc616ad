package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/cart"
	"github.com/tvdermeer/3dprint-website/internal/events"
	"github.com/tvdermeer/3dprint-website/internal/store"
)

var (
	validShipping = ShippingDetails{
		Email:      "ann@example.com",
		Name:       "Ann Lee",
		Address:    "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
	}
	validPayment = PaymentDetails{
		CardNumber: "4242 4242 4242 4242",
		Expiry:     "12/30",
		CVV:        "123",
	}
)

func lampCart(t *testing.T) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c := cart.New(ctx, store.NewMemoryStore())
	require.NoError(t, c.AddItem(ctx, domain.CartItem{ID: "1", Name: "Lamp", UnitPrice: decimal.RequireFromString("39.99")}, 1))
	return c
}

func newOrchestrator(t *testing.T, c Cart, api OrderAPI, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(c, staticSession("tok"), api, append([]Option{WithClearDelay(20 * time.Millisecond)}, opts...)...)
	t.Cleanup(func() { o.Close(context.Background()) })
	return o
}

func TestProceedToPayment_Quote(t *testing.T) {
	o := newOrchestrator(t, lampCart(t), &mockOrderAPI{})

	quote, err := o.ProceedToPayment()

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStepPayment, o.Step())
	assert.True(t, quote.Shipping.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, quote.Tax.Equal(decimal.RequireFromString("3.1992")))
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("53.1792")))
	assert.Equal(t, "53.18", quote.Display().Total)
}

func TestProceedToPayment_EmptyCart(t *testing.T) {
	o := newOrchestrator(t, cart.New(context.Background(), store.NewMemoryStore()), &mockOrderAPI{})

	_, err := o.ProceedToPayment()

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.ErrorIs(t, o.LastError(), ErrEmptyCart)
	assert.Equal(t, domain.CheckoutStepCart, o.Step())
}

func TestQuoteFollowsLiveCart(t *testing.T) {
	ctx := context.Background()
	c := lampCart(t)
	o := newOrchestrator(t, c, &mockOrderAPI{})
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	require.NoError(t, c.SetQuantity(ctx, "1", 2))

	assert.True(t, o.Quote().Subtotal.Equal(decimal.RequireFromString("79.98")))
}

func TestBackToCart(t *testing.T) {
	o := newOrchestrator(t, lampCart(t), &mockOrderAPI{})
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	require.NoError(t, o.BackToCart())
	assert.Equal(t, domain.CheckoutStepCart, o.Step())

	assert.ErrorIs(t, o.BackToCart(), ErrIllegalTransition)
}

func TestPlaceOrder_SuccessConfirmsAndClearsCartLater(t *testing.T) {
	ctx := context.Background()
	c := lampCart(t)
	api := &mockOrderAPI{}
	bus := events.NewBus()
	var confirmed []string
	bus.Subscribe(func(e events.Event) {
		if e.Type == events.CheckoutConfirmed {
			confirmed = append(confirmed, e.Key)
		}
	})
	o := newOrchestrator(t, c, api, WithClearDelay(50*time.Millisecond), WithBus(bus))
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	receipt, err := o.PlaceOrder(ctx, validPayment, validShipping)

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStepConfirmed, o.Step())
	assert.Equal(t, "ORD-1", receipt.Order.OrderNumber)
	assert.Equal(t, []string{"ORD-1"}, confirmed)
	assert.False(t, c.IsEmpty(), "cart must survive until the confirmation has rendered")

	require.Eventually(t, c.IsEmpty, time.Second, 10*time.Millisecond)

	// the receipt still describes what was bought
	after := o.Receipt()
	require.NotNil(t, after)
	require.Len(t, after.Items, 1)
	assert.Equal(t, "Lamp", after.Items[0].Name)
	assert.True(t, after.Quote.Total.Equal(decimal.RequireFromString("53.1792")))

	require.Equal(t, 1, api.orderCount())
	sent := api.Orders[0]
	assert.Equal(t, "ann@example.com", sent.CustomerEmail)
	assert.Equal(t, "Ann Lee", sent.CustomerName)
	assert.Equal(t, domain.OrderStatusPending, sent.Status)
	assert.True(t, sent.TotalAmount.Equal(decimal.RequireFromString("53.18")))
	require.Len(t, sent.Items, 1)
	assert.Equal(t, int64(1), sent.Items[0].ProductID)
	assert.True(t, sent.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("39.99")))
	require.NotNil(t, sent.StripePaymentID)
	assert.Equal(t, "pi_123", *sent.StripePaymentID)
	assert.Equal(t, "12345", sent.ShippingAddress.PostalCode)
	assert.Equal(t, "tok", api.Tokens[0])
	assert.NotEmpty(t, api.Keys[0])
}

func TestPlaceOrder_BackendRejectionKeepsPaymentAndCart(t *testing.T) {
	ctx := context.Background()
	c := lampCart(t)
	api := &mockOrderAPI{OrderErr: &apierr.BackendError{Status: http.StatusBadRequest, Message: "Insufficient stock for product 1"}}
	o := newOrchestrator(t, c, api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	receipt, err := o.PlaceOrder(ctx, validPayment, validShipping)

	assert.Nil(t, receipt)
	assert.EqualError(t, err, "Insufficient stock for product 1")
	assert.Equal(t, err, o.LastError())
	assert.Equal(t, domain.CheckoutStepPayment, o.Step())
	assert.Nil(t, o.Receipt())

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, c.Items(), 1)
}

func TestPlaceOrder_PaymentIntentFailure(t *testing.T) {
	c := lampCart(t)
	api := &mockOrderAPI{IntentErr: &apierr.RequestError{Op: "create_payment_intent", Err: errors.New("connection reset")}}
	o := newOrchestrator(t, c, api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	_, err = o.PlaceOrder(context.Background(), validPayment, validShipping)

	assert.True(t, apierr.IsRequest(err))
	assert.Equal(t, 0, api.orderCount())
	assert.Equal(t, domain.CheckoutStepPayment, o.Step())
	assert.False(t, c.IsEmpty())
}

func TestPlaceOrder_ConfirmerDecline(t *testing.T) {
	api := &mockOrderAPI{}
	declined := PaymentConfirmerFunc(func(context.Context, *domain.PaymentIntent, PaymentDetails) (string, error) {
		return "", &apierr.BackendError{Status: http.StatusPaymentRequired, Message: "Your card was declined."}
	})
	o := newOrchestrator(t, lampCart(t), api, WithConfirmer(declined))
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	_, err = o.PlaceOrder(context.Background(), validPayment, validShipping)

	assert.EqualError(t, err, "Your card was declined.")
	assert.Equal(t, 0, api.orderCount())
	assert.Equal(t, domain.CheckoutStepPayment, o.Step())
}

func TestPlaceOrder_RetryReusesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	api := &mockOrderAPI{OrderErr: &apierr.RequestError{Op: "create_order", Err: errors.New("timeout")}}
	o := newOrchestrator(t, lampCart(t), api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	_, err = o.PlaceOrder(ctx, validPayment, validShipping)
	require.Error(t, err)

	api.setOrderErr(nil)
	_, err = o.PlaceOrder(ctx, validPayment, validShipping)
	require.NoError(t, err)

	require.Len(t, api.Keys, 2)
	assert.Equal(t, api.Keys[0], api.Keys[1])
}

func TestPlaceOrder_NewRunGetsNewKey(t *testing.T) {
	ctx := context.Background()
	api := &mockOrderAPI{OrderErr: &apierr.RequestError{Op: "create_order", Err: errors.New("timeout")}}
	o := newOrchestrator(t, lampCart(t), api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)
	_, err = o.PlaceOrder(ctx, validPayment, validShipping)
	require.Error(t, err)

	require.NoError(t, o.BackToCart())
	_, err = o.ProceedToPayment()
	require.NoError(t, err)
	_, err = o.PlaceOrder(ctx, validPayment, validShipping)
	require.Error(t, err)

	require.Len(t, api.Keys, 2)
	assert.NotEqual(t, api.Keys[0], api.Keys[1])
}

func TestPlaceOrder_ValidationReportsFields(t *testing.T) {
	api := &mockOrderAPI{}
	o := newOrchestrator(t, lampCart(t), api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	_, err = o.PlaceOrder(context.Background(),
		PaymentDetails{CardNumber: "4242424242424242", Expiry: "12/30", CVV: "12a"},
		ShippingDetails{Email: "not-an-email", Name: "Ann", City: "Springfield"},
	)

	require.True(t, apierr.IsValidation(err))
	fields := apierr.FieldErrors(err)
	assert.Equal(t, "Please enter a valid email address", fields["email"])
	assert.Equal(t, "Address is required", fields["address"])
	assert.Equal(t, "Postal code is required", fields["zipCode"])
	assert.Equal(t, "CVV is invalid", fields["cvv"])
	assert.NotContains(t, fields, "name")
	assert.NotContains(t, fields, "cardNumber")
	assert.Len(t, api.IntentAmounts, 0)
	assert.Equal(t, domain.CheckoutStepPayment, o.Step())
}

func TestPlaceOrder_PaymentFieldsOptional(t *testing.T) {
	o := newOrchestrator(t, lampCart(t), &mockOrderAPI{}, WithPaymentFields(false))
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	_, err = o.PlaceOrder(context.Background(), PaymentDetails{}, validShipping)

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStepConfirmed, o.Step())
}

func TestPlaceOrder_OutsidePaymentStep(t *testing.T) {
	o := newOrchestrator(t, lampCart(t), &mockOrderAPI{})

	_, err := o.PlaceOrder(context.Background(), validPayment, validShipping)

	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPlaceOrder_CartEmptiedDuringPayment(t *testing.T) {
	ctx := context.Background()
	c := lampCart(t)
	api := &mockOrderAPI{}
	o := newOrchestrator(t, c, api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)
	require.NoError(t, c.Clear(ctx))

	_, err = o.PlaceOrder(ctx, validPayment, validShipping)

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Len(t, api.IntentAmounts, 0)
}

func TestPlaceOrder_NonNumericProductID(t *testing.T) {
	ctx := context.Background()
	c := cart.New(ctx, store.NewMemoryStore())
	require.NoError(t, c.AddItem(ctx, domain.CartItem{ID: "gift-card", Name: "Gift card", UnitPrice: decimal.NewFromInt(10)}, 1))
	o := newOrchestrator(t, c, &mockOrderAPI{})
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	_, err = o.PlaceOrder(ctx, validPayment, validShipping)

	assert.Contains(t, apierr.FieldErrors(err), "items")
}

func TestPlaceOrder_RejectsConcurrentSubmission(t *testing.T) {
	ctx := context.Background()
	api := &mockOrderAPI{OrderGate: make(chan struct{})}
	o := newOrchestrator(t, lampCart(t), api)
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.PlaceOrder(ctx, validPayment, validShipping)
		done <- err
	}()
	require.Eventually(t, o.Submitting, time.Second, 5*time.Millisecond)

	_, err = o.PlaceOrder(ctx, validPayment, validShipping)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.ErrorIs(t, o.BackToCart(), ErrSubmissionInFlight)

	close(api.OrderGate)
	require.NoError(t, <-done)
	assert.Equal(t, domain.CheckoutStepConfirmed, o.Step())
}

func TestConfirmedIsTerminal(t *testing.T) {
	o := newOrchestrator(t, lampCart(t), &mockOrderAPI{})
	_, err := o.ProceedToPayment()
	require.NoError(t, err)
	_, err = o.PlaceOrder(context.Background(), validPayment, validShipping)
	require.NoError(t, err)

	assert.ErrorIs(t, o.BackToCart(), ErrIllegalTransition)
	_, err = o.ProceedToPayment()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReset(t *testing.T) {
	c := lampCart(t)
	o := newOrchestrator(t, c, &mockOrderAPI{}, WithClearDelay(time.Hour))
	_, err := o.ProceedToPayment()
	require.NoError(t, err)
	_, err = o.PlaceOrder(context.Background(), validPayment, validShipping)
	require.NoError(t, err)

	o.Reset()

	assert.Equal(t, domain.CheckoutStepCart, o.Step())
	assert.Nil(t, o.Receipt())
	assert.False(t, c.IsEmpty())

	o.Close(context.Background())
	assert.True(t, c.IsEmpty(), "close runs the pending clear")
}

func TestClearKeepsItemsAddedAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	c := lampCart(t)
	o := newOrchestrator(t, c, &mockOrderAPI{}, WithClearDelay(50*time.Millisecond))
	_, err := o.ProceedToPayment()
	require.NoError(t, err)
	_, err = o.PlaceOrder(ctx, validPayment, validShipping)
	require.NoError(t, err)

	o.Reset()
	require.NoError(t, c.AddItem(ctx, domain.CartItem{ID: "7", Name: "Vase", UnitPrice: decimal.RequireFromString("19.50")}, 1))
	require.NoError(t, c.AddItem(ctx, domain.CartItem{ID: "1", Name: "Lamp", UnitPrice: decimal.RequireFromString("39.99")}, 2))

	require.Eventually(t, func() bool { return len(c.Items()) == 2 && c.Items()[0].Quantity == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, 2, items[0].Quantity, "only the purchased lamp is taken off")
	assert.Equal(t, "7", items[1].ID)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestReset_DuringPaymentKeepsCart(t *testing.T) {
	c := lampCart(t)
	o := newOrchestrator(t, c, &mockOrderAPI{})
	_, err := o.ProceedToPayment()
	require.NoError(t, err)

	o.Reset()

	assert.Equal(t, domain.CheckoutStepCart, o.Step())
	assert.Len(t, c.Items(), 1)
}

func TestIntentID(t *testing.T) {
	assert.Equal(t, "pi_123", intentID("pi_123_secret_abc"))
	assert.Equal(t, "opaque", intentID("opaque"))
}
