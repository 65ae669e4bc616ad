package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/catalog"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
	log     *logger.Logger
}

func NewCatalogHandler(c *catalog.Catalog, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, log: log}
}

type CheckStockRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.FetchProducts(r.Context())
	if err != nil {
		handleCoreError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// Featured returns the featured product of the last listing, loading the listing if needed.
func (h *CatalogHandler) Featured(w http.ResponseWriter, r *http.Request) {
	if len(h.catalog.Products()) == 0 {
		if _, err := h.catalog.FetchProducts(r.Context()); err != nil {
			handleCoreError(w, err)
			return
		}
	}
	featured := h.catalog.Featured()
	if featured == nil {
		respondError(w, http.StatusNotFound, "not_found", "no products available")
		return
	}
	respondJSON(w, http.StatusOK, featured)
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.FetchProduct(r.Context(), id)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}
	var req CheckStockRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	check, err := h.catalog.CheckStock(r.Context(), id, req.Quantity)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return id, true
}
