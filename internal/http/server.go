// Package http exposes the storefront core to a UI process over a local JSON API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/cart"
	"github.com/tvdermeer/3dprint-website/internal/catalog"
	"github.com/tvdermeer/3dprint-website/internal/checkout"
	"github.com/tvdermeer/3dprint-website/internal/guard"
	"github.com/tvdermeer/3dprint-website/internal/metrics"
	"github.com/tvdermeer/3dprint-website/internal/session"
	"github.com/tvdermeer/3dprint-website/internal/store"
	"github.com/tvdermeer/3dprint-website/internal/theme"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps are the core components served by the router.
type Deps struct {
	Cart     *cart.Cart
	Session  *session.Manager
	Checkout *checkout.Orchestrator
	Guard    *guard.Guard
	Catalog  *catalog.Catalog
	Theme    *theme.Preference
	Health   HealthChecker
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NewRouter builds the chi router with every route mounted under /api/v1.
func NewRouter(d Deps) http.Handler {
	log := logger.OrNop(d.Logger)

	cartHandler := NewCartHandler(d.Cart, d.Catalog, log)
	catalogHandler := NewCatalogHandler(d.Catalog, log)
	sessionHandler := NewSessionHandler(d.Session, log)
	checkoutHandler := NewCheckoutHandler(d.Checkout, log)
	navHandler := NewNavigationHandler(d.Guard, d.Theme, log)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(log))
	r.Use(middleware.Compress(5))
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", healthHandler(d.Health))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogHandler.List)
			r.Get("/featured", catalogHandler.Featured)
			r.Get("/{product_id}", catalogHandler.Get)
			r.Post("/{product_id}/check-stock", catalogHandler.CheckStock)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.State)
			r.Post("/login", sessionHandler.Login)
			r.Post("/signup", sessionHandler.Signup)
			r.Post("/logout", sessionHandler.Logout)
			r.Post("/recover-password", sessionHandler.RecoverPassword)
			r.Post("/reset-password", sessionHandler.ResetPassword)
			r.Get("/me", sessionHandler.Me)
			r.Put("/me", sessionHandler.UpdateMe)
			r.Get("/orders", sessionHandler.Orders)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.State)
			r.Post("/payment", checkoutHandler.ProceedToPayment)
			r.Post("/back", checkoutHandler.BackToCart)
			r.Post("/order", checkoutHandler.PlaceOrder)
			r.Get("/receipt", checkoutHandler.Receipt)
			r.Post("/reset", checkoutHandler.Reset)
		})
		r.Get("/navigate", navHandler.Navigate)
		r.Get("/theme", navHandler.GetTheme)
		r.Put("/theme", navHandler.SetTheme)
		r.Post("/theme/toggle", navHandler.ToggleTheme)
	})

	return otelhttp.NewHandler(r, "storefront")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleCoreError converts a core error to an HTTP status and error code.
func handleCoreError(w http.ResponseWriter, err error) {
	var (
		validation *apierr.ValidationError
		backend    *apierr.BackendError
		load       *catalog.LoadError
	)

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  validation.Error(),
			Code:   "invalid_argument",
			Fields: validation.Fields,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, session.ErrSessionChanged):
		respondError(w, http.StatusConflict, "session_changed", err.Error())
	case errors.Is(err, theme.ErrUnknownTheme):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.As(err, &load):
		respondJSON(w, loadStatus(load), ErrorResponse{Error: load.Message, Code: "load_failed", Details: load.Err.Error()})
	case errors.As(err, &backend):
		respondError(w, backendStatus(backend.Status), backendCode(backend.Status), backend.Error())
	case apierr.IsRequest(err):
		respondError(w, http.StatusBadGateway, "service_unavailable", err.Error())
	case apierr.IsDecode(err):
		respondError(w, http.StatusBadGateway, "bad_gateway", err.Error())
	case errors.Is(err, store.ErrMalformed):
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func loadStatus(load *catalog.LoadError) int {
	var backend *apierr.BackendError
	if errors.As(load.Err, &backend) {
		return backendStatus(backend.Status)
	}
	return http.StatusBadGateway
}

// backendStatus passes client errors through; backend server errors become 502.
func backendStatus(status int) int {
	if status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

func backendCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "already_exists"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	default:
		return "backend_error"
	}
}
