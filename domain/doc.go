// Package domain holds the value types shared by the cart, session, checkout and routing packages.
package domain

import "github.com/shopspring/decimal"

func init() {
	// Prices travel as JSON numbers, both to the backend and in persisted snapshots.
	decimal.MarshalJSONWithoutQuotes = true
}
