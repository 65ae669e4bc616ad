package http

import (
	"net/http"

	"github.com/tvdermeer/3dprint-website/internal/guard"
	"github.com/tvdermeer/3dprint-website/internal/theme"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type NavigationHandler struct {
	guard *guard.Guard
	theme *theme.Preference
	log   *logger.Logger
}

func NewNavigationHandler(g *guard.Guard, t *theme.Preference, log *logger.Logger) *NavigationHandler {
	return &NavigationHandler{guard: g, theme: t, log: log}
}

type ThemeDTO struct {
	Theme string `json:"theme"`
}

// Navigate decides whether the UI may show ?target=; the answer is always 200 with the decision.
func (h *NavigationHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		respondError(w, http.StatusBadRequest, "invalid_argument", "target is required")
		return
	}
	respondJSON(w, http.StatusOK, h.guard.Check(r.Context(), target))
}

func (h *NavigationHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ThemeDTO{Theme: string(h.theme.Get())})
}

func (h *NavigationHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.theme.Set(r.Context(), theme.Theme(req.Theme)); err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ThemeDTO{Theme: string(h.theme.Get())})
}

func (h *NavigationHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	t, err := h.theme.Toggle(r.Context())
	if err != nil {
		h.log.WithContext(r.Context()).Warn("theme not persisted", "error", err)
	}
	respondJSON(w, http.StatusOK, ThemeDTO{Theme: string(t)})
}
