// Package checkout drives the cart through cart review, payment and confirmation. It holds only
// the transient step machine; the cart and session are reached through their public operations.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/events"
	"github.com/tvdermeer/3dprint-website/internal/metrics"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

// DefaultClearDelay is how long purchased lines stay in the cart after confirmation.
const DefaultClearDelay = 3 * time.Second

// Cart is the part of the cart aggregate checkout reads and, once an order is placed, trims.
type Cart interface {
	Items() []domain.CartItem
	Totals() domain.Totals
	IsEmpty() bool
	Subtract(ctx context.Context, lines []domain.CartItem) error
}

// Session supplies the bearer token for the order; an empty token is a guest checkout.
type Session interface {
	Token() string
}

// OrderAPI is the slice of the backend client that takes payment and records the order.
type OrderAPI interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error)
	CreateOrder(ctx context.Context, token, idempotencyKey string, order domain.OrderCreate) (*domain.Order, error)
}

// Orchestrator is the checkout step machine. It is safe for concurrent use.
type Orchestrator struct {
	mu       sync.Mutex
	step     domain.CheckoutStep
	runKey   string // idempotency key of the current run, reused on resubmit
	inFlight bool
	receipt  *domain.Receipt
	lastErr  error

	pendingClear *time.Timer
	purchased    []domain.CartItem // lines to take off the cart when pendingClear fires
	clears       sync.WaitGroup

	cart      Cart
	session   Session
	api       OrderAPI
	confirmer PaymentConfirmer

	clearDelay     time.Duration
	requirePayment bool
	currency       string

	log     *logger.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfirmer replaces the payment step; the default trusts the intent's client secret.
func WithConfirmer(c PaymentConfirmer) Option { return func(o *Orchestrator) { o.confirmer = c } }

// WithClearDelay sets how long the cart survives a confirmed order so the confirmation can render.
func WithClearDelay(d time.Duration) Option { return func(o *Orchestrator) { o.clearDelay = d } }

// WithPaymentFields makes card number, expiry and CVV required form fields.
func WithPaymentFields(required bool) Option {
	return func(o *Orchestrator) { o.requirePayment = required }
}

// WithCurrency sets the ISO currency code sent with the payment intent.
func WithCurrency(c string) Option { return func(o *Orchestrator) { o.currency = c } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *logger.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// WithBus publishes step changes and confirmed orders.
func WithBus(b *events.Bus) Option { return func(o *Orchestrator) { o.bus = b } }

// WithMetrics counts checkout outcomes by result.
func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// New starts at cart review with DefaultClearDelay and payment fields required.
func New(cart Cart, session Session, api OrderAPI, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		step:           domain.CheckoutStepCart,
		cart:           cart,
		session:        session,
		api:            api,
		confirmer:      IntentConfirmer{},
		clearDelay:     DefaultClearDelay,
		requirePayment: true,
		currency:       "usd",
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log)
	return o
}

// Quote prices the live cart. It is recomputed on every call.
func (o *Orchestrator) Quote() domain.Quote {
	return domain.PriceSubtotal(o.cart.Totals().Subtotal)
}

// ProceedToPayment moves from cart review to payment and opens a checkout run.
func (o *Orchestrator) ProceedToPayment() (domain.Quote, error) {
	o.mu.Lock()
	if !domain.CanTransitionTo(o.step, domain.CheckoutStepPayment) {
		err := fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.step, domain.CheckoutStepPayment)
		o.lastErr = err
		o.mu.Unlock()
		return domain.Quote{}, err
	}
	if o.cart.IsEmpty() {
		o.lastErr = ErrEmptyCart
		o.mu.Unlock()
		return domain.Quote{}, ErrEmptyCart
	}

	o.step = domain.CheckoutStepPayment
	o.runKey = uuid.NewString()
	o.receipt = nil
	o.lastErr = nil
	o.mu.Unlock()

	o.publishStep(domain.CheckoutStepPayment)
	return o.Quote(), nil
}

// BackToCart returns from payment to cart review. The run is abandoned: a later submission gets a
// fresh idempotency key because the cart may change.
func (o *Orchestrator) BackToCart() error {
	o.mu.Lock()
	if !domain.CanTransitionTo(o.step, domain.CheckoutStepCart) || o.inFlight {
		err := fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.step, domain.CheckoutStepCart)
		if o.inFlight {
			err = ErrSubmissionInFlight
		}
		o.lastErr = err
		o.mu.Unlock()
		return err
	}
	o.step = domain.CheckoutStepCart
	o.runKey = ""
	o.lastErr = nil
	o.mu.Unlock()

	o.publishStep(domain.CheckoutStepCart)
	return nil
}

// PlaceOrder validates the form, prices the live cart, runs the payment step and posts the order.
// Only an order the backend accepted moves the checkout to confirmed; every failure keeps it in
// payment with the cart untouched, and a resubmission reuses the run's idempotency key.
func (o *Orchestrator) PlaceOrder(ctx context.Context, payment PaymentDetails, shipping ShippingDetails) (*domain.Receipt, error) {
	o.mu.Lock()
	if o.step != domain.CheckoutStepPayment {
		err := fmt.Errorf("%w: order can only be placed from %s, not %s", ErrIllegalTransition, domain.CheckoutStepPayment, o.step)
		o.lastErr = err
		o.mu.Unlock()
		return nil, err
	}
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	o.inFlight = true
	key := o.runKey
	o.mu.Unlock()

	receipt, err := o.submit(ctx, key, payment, shipping)

	o.mu.Lock()
	o.inFlight = false
	if err != nil {
		o.lastErr = err
		o.mu.Unlock()
		o.metrics.CheckoutResult(resultLabel(err))
		o.log.WithContext(ctx).Warn("order placement failed", "error", err)
		return nil, err
	}

	confirmed := o.step == domain.CheckoutStepPayment && o.runKey == key
	if confirmed {
		o.step = domain.CheckoutStepConfirmed
		o.receipt = receipt
		o.runKey = ""
	} else {
		// The run was reset mid-flight. The backend accepted the order anyway, so the purchased
		// cart is still cleared.
		o.log.Warn("order accepted after checkout was reset", "order_number", receipt.Order.OrderNumber)
	}
	o.lastErr = nil
	o.scheduleClearLocked(receipt.Items)
	o.mu.Unlock()

	o.metrics.CheckoutResult("confirmed")
	o.log.WithContext(ctx).Info("order placed",
		"order_number", receipt.Order.OrderNumber,
		"total", receipt.Quote.Total.StringFixed(2),
	)
	if confirmed {
		o.publishStep(domain.CheckoutStepConfirmed)
	}
	o.bus.Publish(events.Event{
		Type: events.CheckoutConfirmed,
		Key:  receipt.Order.OrderNumber,
		Payload: map[string]any{
			"order_id":     receipt.Order.ID,
			"order_number": receipt.Order.OrderNumber,
			"total":        receipt.Quote.Total.StringFixed(2),
			"items":        len(receipt.Items),
		},
	})
	return cloneReceipt(receipt), nil
}

func (o *Orchestrator) submit(ctx context.Context, key string, payment PaymentDetails, shipping ShippingDetails) (*domain.Receipt, error) {
	if err := validateForm(shipping, payment, o.requirePayment); err != nil {
		return nil, err
	}

	items := o.cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	quote := domain.PriceSubtotal(domain.ComputeTotals(items).Subtotal)

	orderItems, err := toOrderItems(items)
	if err != nil {
		return nil, err
	}

	intent, err := o.api.CreatePaymentIntent(ctx, quote.Total, o.currency)
	if err != nil {
		return nil, err
	}
	paymentID, err := o.confirmer.Confirm(ctx, intent, payment)
	if err != nil {
		return nil, err
	}

	order := domain.OrderCreate{
		CustomerEmail: shipping.Email,
		CustomerName:  shipping.Name,
		TotalAmount:   quote.Total.Round(2),
		Status:        domain.OrderStatusPending,
		Items:         orderItems,
		ShippingAddress: &domain.ShippingAddress{
			Address:    shipping.Address,
			City:       shipping.City,
			PostalCode: shipping.PostalCode,
		},
	}
	if paymentID != "" {
		order.StripePaymentID = &paymentID
	}

	token := ""
	if o.session != nil {
		token = o.session.Token()
	}
	created, err := o.api.CreateOrder(ctx, token, key, order)
	if err != nil {
		return nil, err
	}

	return &domain.Receipt{Order: created, Items: items, Quote: quote}, nil
}

func toOrderItems(items []domain.CartItem) ([]domain.OrderItem, error) {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		productID, err := strconv.ParseInt(item.ID, 10, 64)
		if err != nil {
			return nil, apierr.InvalidField("items", fmt.Sprintf("Item %q cannot be ordered", item.Name))
		}
		out = append(out, domain.OrderItem{
			ProductID:       productID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.UnitPrice,
		})
	}
	return out, nil
}

func resultLabel(err error) string {
	switch {
	case apierr.IsValidation(err):
		return "invalid"
	case apierr.IsRequest(err):
		return "unreachable"
	case apierr.IsDecode(err):
		return "unconfirmed"
	case errors.Is(err, ErrEmptyCart):
		return "empty"
	default:
		return "rejected"
	}
}

// scheduleClearLocked takes lines off the cart after the clear delay, once the confirmation had
// time to read the receipt. Only what was purchased is removed; later additions stay.
func (o *Orchestrator) scheduleClearLocked(lines []domain.CartItem) {
	o.purchased = append(o.purchased, lines...)
	if o.pendingClear != nil {
		return
	}
	o.clears.Add(1)
	o.pendingClear = time.AfterFunc(o.clearDelay, func() {
		defer o.clears.Done()
		o.mu.Lock()
		o.pendingClear = nil
		lines := o.takePurchasedLocked()
		o.mu.Unlock()
		o.clearCart(context.Background(), lines)
	})
}

func (o *Orchestrator) takePurchasedLocked() []domain.CartItem {
	lines := o.purchased
	o.purchased = nil
	return lines
}

func (o *Orchestrator) clearCart(ctx context.Context, lines []domain.CartItem) {
	if err := o.cart.Subtract(ctx, lines); err != nil {
		o.log.Error("failed to clear cart after order", "error", err)
		o.mu.Lock()
		o.lastErr = err
		o.mu.Unlock()
	}
}

// Reset abandons the checkout as a page reload would: back to cart review with no run or receipt.
// A pending removal of purchased lines still happens.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	changed := o.step != domain.CheckoutStepCart
	o.step = domain.CheckoutStepCart
	o.runKey = ""
	o.receipt = nil
	o.lastErr = nil
	o.mu.Unlock()

	if changed {
		o.publishStep(domain.CheckoutStepCart)
	}
}

// Close removes pending purchased lines immediately and waits for a removal already running.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	timer := o.pendingClear
	o.pendingClear = nil
	var lines []domain.CartItem
	if timer != nil && timer.Stop() {
		lines = o.takePurchasedLocked()
	} else {
		timer = nil
	}
	o.mu.Unlock()

	if timer != nil {
		o.clearCart(ctx, lines)
		o.clears.Done()
	}
	o.clears.Wait()
}

func (o *Orchestrator) Step() domain.CheckoutStep {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Receipt is what the last confirmed order purchased. It does not change when the cart is cleared.
func (o *Orchestrator) Receipt() *domain.Receipt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneReceipt(o.receipt)
}

func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Submitting reports whether an order submission is in flight.
func (o *Orchestrator) Submitting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

func (o *Orchestrator) publishStep(step domain.CheckoutStep) {
	o.bus.Publish(events.Event{
		Type:    events.CheckoutStep,
		Key:     "checkout",
		Payload: map[string]string{"step": step.String()},
	})
}

func cloneReceipt(r *domain.Receipt) *domain.Receipt {
	if r == nil {
		return nil
	}
	out := *r
	out.Items = append([]domain.CartItem(nil), r.Items...)
	if r.Order != nil {
		order := *r.Order
		out.Order = &order
	}
	return &out
}
