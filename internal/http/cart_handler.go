package http

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/cart"
	"github.com/tvdermeer/3dprint-website/internal/catalog"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type CartHandler struct {
	cart    *cart.Cart
	catalog *catalog.Catalog
	log     *logger.Logger
}

func NewCartHandler(c *cart.Cart, cat *catalog.Catalog, log *logger.Logger) *CartHandler {
	return &CartHandler{cart: c, catalog: cat, log: log}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, http.StatusOK)
}

// AddItem looks the product up in the catalog so the cart line carries the backend's name and price.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.FetchProduct(r.Context(), req.ProductID)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	if err := h.cart.AddItem(r.Context(), product.AsCartItem(0), req.Quantity); err != nil {
		handleCoreError(w, err)
		return
	}

	h.respondCart(w, http.StatusCreated)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	if err := h.cart.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		handleCoreError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if err := h.cart.RemoveItem(r.Context(), productID); err != nil {
		handleCoreError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context()); err != nil {
		handleCoreError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, status int) {
	totals := h.cart.Totals()
	items := h.cart.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	respondJSON(w, status, CartResponse{
		Items:      items,
		TotalItems: totals.TotalItems,
		Subtotal:   totals.Subtotal,
	})
}

// productIDParam reads {product_id} from the path. Cart lines are keyed by the id's decimal form.
func productIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(productID, 10), true
}
