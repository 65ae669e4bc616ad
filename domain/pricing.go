package domain

import "github.com/shopspring/decimal"

var (
	// FlatShipping applies to any order with a positive subtotal.
	FlatShipping = decimal.RequireFromString("9.99")
	TaxRate      = decimal.RequireFromString("0.08")
)

// Quote is the price breakdown shown at checkout. Amounts are exact; use Display for rounding.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// PriceSubtotal applies shipping and tax to a cart subtotal.
func PriceSubtotal(subtotal decimal.Decimal) Quote {
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = FlatShipping
	}
	tax := subtotal.Mul(TaxRate)
	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// QuoteDisplay holds the quote rounded to cents, as shown to the customer.
type QuoteDisplay struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

func (q Quote) Display() QuoteDisplay {
	return QuoteDisplay{
		Subtotal: q.Subtotal.StringFixed(2),
		Shipping: q.Shipping.StringFixed(2),
		Tax:      q.Tax.StringFixed(2),
		Total:    q.Total.StringFixed(2),
	}
}
