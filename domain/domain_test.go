package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(CheckoutStepCart, CheckoutStepPayment))
	assert.True(t, CanTransitionTo(CheckoutStepPayment, CheckoutStepCart))
	assert.True(t, CanTransitionTo(CheckoutStepPayment, CheckoutStepConfirmed))

	assert.False(t, CanTransitionTo(CheckoutStepCart, CheckoutStepConfirmed))
	assert.False(t, CanTransitionTo(CheckoutStepConfirmed, CheckoutStepCart))
	assert.False(t, CanTransitionTo(CheckoutStepConfirmed, CheckoutStepPayment))
	assert.True(t, CheckoutStepConfirmed.IsTerminal())
}

func TestPriceSubtotal(t *testing.T) {
	q := PriceSubtotal(decimal.RequireFromString("39.99"))

	assert.True(t, q.Shipping.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, q.Tax.Equal(decimal.RequireFromString("3.1992")), q.Tax.String())
	assert.True(t, q.Total.Equal(decimal.RequireFromString("53.1792")), q.Total.String())
	assert.Equal(t, "53.18", q.Display().Total)
	assert.Equal(t, "3.20", q.Display().Tax)
}

func TestPriceSubtotal_EmptyCartHasNoShipping(t *testing.T) {
	q := PriceSubtotal(decimal.Zero)

	assert.True(t, q.Shipping.IsZero())
	assert.True(t, q.Total.IsZero())
}

func TestComputeTotals(t *testing.T) {
	items := []CartItem{
		{ID: "1", UnitPrice: decimal.RequireFromString("39.99"), Quantity: 2},
		{ID: "2", UnitPrice: decimal.RequireFromString("5.50"), Quantity: 1},
	}

	totals := ComputeTotals(items)

	assert.Equal(t, 3, totals.TotalItems)
	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("85.48")), totals.Subtotal.String())
}

func TestProductAsCartItem(t *testing.T) {
	p := Product{ID: 7, Name: "Print", Price: decimal.RequireFromString("12.00"), ImageURL: "/img.png"}

	item := p.AsCartItem(2)

	assert.Equal(t, "7", item.ID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "/img.png", item.ImageRef)
}
