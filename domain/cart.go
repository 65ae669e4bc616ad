package domain

import "github.com/shopspring/decimal"

// CartItem is one line of the cart. ID is the product identifier and is unique within a cart.
type CartItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image,omitempty"`
}

// LineTotal is UnitPrice × Quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Totals struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// ComputeTotals sums quantities and line totals. Never cached by callers.
func ComputeTotals(items []CartItem) Totals {
	t := Totals{Subtotal: decimal.Zero}
	for _, item := range items {
		t.TotalItems += item.Quantity
		t.Subtotal = t.Subtotal.Add(item.LineTotal())
	}
	return t
}
