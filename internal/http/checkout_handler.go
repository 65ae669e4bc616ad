package http

import (
	"net/http"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/checkout"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type CheckoutHandler struct {
	checkout *checkout.Orchestrator
	log      *logger.Logger
}

func NewCheckoutHandler(o *checkout.Orchestrator, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: o, log: log}
}

// PlaceOrderRequestDTO uses the checkout form's field names.
type PlaceOrderRequestDTO struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	ZipCode    string `json:"zipCode"`
	CardNumber string `json:"cardNumber"`
	ExpiryDate string `json:"expiryDate"`
	CVV        string `json:"cvv"`
}

type CheckoutResponse struct {
	Step       string              `json:"step"`
	Quote      domain.Quote        `json:"quote"`
	Display    domain.QuoteDisplay `json:"display"`
	Submitting bool                `json:"submitting"`
	Receipt    *domain.Receipt     `json:"receipt,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.state())
}

func (h *CheckoutHandler) ProceedToPayment(w http.ResponseWriter, r *http.Request) {
	if _, err := h.checkout.ProceedToPayment(); err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state())
}

func (h *CheckoutHandler) BackToCart(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.BackToCart(); err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state())
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	receipt, err := h.checkout.PlaceOrder(r.Context(),
		checkout.PaymentDetails{CardNumber: req.CardNumber, Expiry: req.ExpiryDate, CVV: req.CVV},
		checkout.ShippingDetails{Email: req.Email, Name: req.Name, Address: req.Address, City: req.City, PostalCode: req.ZipCode},
	)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

func (h *CheckoutHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	receipt := h.checkout.Receipt()
	if receipt == nil {
		respondError(w, http.StatusNotFound, "not_found", "no confirmed order")
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.checkout.Reset()
	respondJSON(w, http.StatusOK, h.state())
}

func (h *CheckoutHandler) state() CheckoutResponse {
	quote := h.checkout.Quote()
	resp := CheckoutResponse{
		Step:       h.checkout.Step().String(),
		Quote:      quote,
		Display:    quote.Display(),
		Submitting: h.checkout.Submitting(),
		Receipt:    h.checkout.Receipt(),
	}
	if err := h.checkout.LastError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}
