package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	SKU         string          `json:"sku"`
	ImageURL    string          `json:"image_url,omitempty"`
	IsActive    bool            `json:"is_active"`
}

// AsCartItem turns a product into a cart line with the given quantity.
func (p Product) AsCartItem(quantity int) CartItem {
	return CartItem{
		ID:        strconv.FormatInt(p.ID, 10),
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
		ImageRef:  p.ImageURL,
	}
}

type StockCheck struct {
	ProductID          int64 `json:"product_id"`
	RequestedQuantity  int   `json:"requested_quantity"`
	AvailableStock     int   `json:"available_stock"`
	HasSufficientStock bool  `json:"has_sufficient_stock"`
}

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
}
