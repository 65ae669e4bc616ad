package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/guard"
	"github.com/tvdermeer/3dprint-website/internal/session"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type SessionHandler struct {
	session *session.Manager
	log     *logger.Logger
}

func NewSessionHandler(s *session.Manager, log *logger.Logger) *SessionHandler {
	return &SessionHandler{session: s, log: log}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect,omitempty"`
}

type RecoverPasswordRequestDTO struct {
	Email string `json:"email"`
}

type ResetPasswordRequestDTO struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type SessionResponse struct {
	Status          string       `json:"status"`
	IsAuthenticated bool         `json:"is_authenticated"`
	User            *domain.User `json:"user,omitempty"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	// Next is where the UI should navigate after a successful login.
	Next string `json:"next,omitempty"`
}

func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.state(""))
}

// Login signs in and tells the UI where to resume: the redirect target when it is a local
// path, otherwise the dashboard.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.session.Login(r.Context(), req.Email, req.Password); err != nil {
		if loginRejected(err) {
			handleCoreError(w, err)
			return
		}
		// the token is held in memory; only the store write failed
		h.log.WithContext(r.Context()).Warn("signed in but session was not persisted", "error", err)
	}
	respondJSON(w, http.StatusOK, h.state(guard.SafeRedirect(req.Redirect, guard.LandingPath)))
}

func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.session.Signup(r.Context(), req)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.log.WithContext(r.Context()).Warn("logout did not clear storage", "error", err)
	}
	respondJSON(w, http.StatusOK, h.state(""))
}

func (h *SessionHandler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req RecoverPasswordRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.session.RecoverPassword(r.Context(), req.Email)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *SessionHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.session.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !h.session.IsAuthenticated() {
		handleCoreError(w, session.ErrNotAuthenticated)
		return
	}
	user, err := h.session.FetchUser(r.Context())
	if err != nil {
		handleCoreError(w, err)
		return
	}
	if user == nil {
		// signed out while the request was in flight
		handleCoreError(w, session.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *SessionHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProfileUpdate
	if !decodeJSON(w, r, &patch) {
		return
	}
	user, err := h.session.UpdateProfile(r.Context(), patch)
	if err != nil {
		handleCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *SessionHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.session.Orders(r.Context())
	if err != nil {
		handleCoreError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func loginRejected(err error) bool {
	var backend *apierr.BackendError
	return apierr.IsValidation(err) || apierr.IsRequest(err) || apierr.IsDecode(err) || errors.As(err, &backend)
}

func (h *SessionHandler) state(next string) SessionResponse {
	resp := SessionResponse{
		Status:          h.session.Status().String(),
		IsAuthenticated: h.session.IsAuthenticated(),
		User:            h.session.User(),
		Next:            next,
	}
	if exp, ok := h.session.ExpiresAt(); ok {
		resp.ExpiresAt = &exp
	}
	return resp
}
