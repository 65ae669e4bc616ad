// Package session owns the bearer token and the cached user profile. The token is authoritative:
// the session is authenticated exactly when a token is present, whether or not the profile has
// been fetched yet.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/events"
	"github.com/tvdermeer/3dprint-website/internal/metrics"
	"github.com/tvdermeer/3dprint-website/internal/store"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

// AuthAPI is the slice of the backend client the session needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*domain.TokenResponse, error)
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error)
	RecoverPassword(ctx context.Context, email string) (*domain.Message, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) (*domain.Message, error)
	Me(ctx context.Context, token string) (*domain.User, error)
	UpdateMe(ctx context.Context, token string, patch domain.ProfileUpdate) (*domain.User, error)
	MyOrders(ctx context.Context, token string) ([]domain.Order, error)
}

type Manager struct {
	mu      sync.Mutex
	api     AuthAPI
	store   store.Store
	token   string
	user    *domain.User
	status  Status
	lastErr error

	sfg singleflight.Group // one profile request per token

	// background hydration after login
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	now     func() time.Time
	log     *logger.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
}

type Option func(*Manager)

func WithLogger(l *logger.Logger) Option { return func(m *Manager) { m.log = l } }

func WithBus(b *events.Bus) Option { return func(m *Manager) { m.bus = b } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager restores the token and profile from the store. A malformed profile is treated as
// absent; a token whose exp claim has passed is discarded.
func NewManager(ctx context.Context, api AuthAPI, s store.Store, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		store:  s,
		status: StatusAnonymous,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrNop(m.log)
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())

	m.mu.Lock()
	m.restoreLocked(ctx)
	m.mu.Unlock()
	return m
}

func (m *Manager) restoreLocked(ctx context.Context) {
	raw, err := m.store.Get(ctx, store.KeyToken)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		m.log.Error("failed to restore token", "error", err)
		m.lastErr = err
	default:
		m.token = strings.TrimSpace(string(raw))
	}

	var user domain.User
	found, err := store.GetJSON(ctx, m.store, store.KeyUser, &user)
	switch {
	case errors.Is(err, store.ErrMalformed):
		m.log.Warn("discarding malformed stored profile", "error", err)
	case err != nil:
		m.log.Error("failed to restore profile", "error", err)
		m.lastErr = err
	case found:
		m.user = &user
	}

	if m.token == "" {
		m.user = nil
		m.status = StatusAnonymous
		return
	}
	if exp, ok := tokenExpiry(m.token); ok && !exp.After(m.now()) {
		m.log.Info("stored token has expired, signing out", "expired_at", exp)
		m.status = StatusInvalid
		if err := m.clearLocked(ctx); err != nil {
			m.lastErr = err
		}
		return
	}
	m.status = StatusAuthenticated
}

// Login exchanges credentials for a token. On success the session is authenticated at once and
// the profile is fetched in the background; a failed fetch does not undo the login. On failure
// the backend message is returned unchanged and the prior status is restored.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		m.setErr(err)
		return err
	}

	m.mu.Lock()
	m.lastErr = nil
	m.setStatusLocked(StatusAuthenticating)
	m.mu.Unlock()
	m.publish()

	tok, err := m.api.Login(ctx, email, password)
	if err == nil && (tok == nil || strings.TrimSpace(tok.AccessToken) == "") {
		// a success without a token cannot authenticate anything
		err = &apierr.BackendError{Op: "login", Status: http.StatusOK}
	}

	m.mu.Lock()
	if err != nil {
		m.lastErr = err
		m.setStatusLocked(m.derivedStatusLocked())
		m.mu.Unlock()
		m.publish()
		m.log.WithContext(ctx).Info("login failed", "error", err)
		return err
	}

	m.token = tok.AccessToken
	m.setStatusLocked(StatusAuthenticated)
	persistErr := m.persistTokenLocked(ctx)
	// A profile cached for an earlier token belongs to someone else.
	if m.user != nil {
		m.user = nil
		if err := m.store.Remove(ctx, store.KeyUser); err != nil {
			m.log.Error("failed to drop stale profile", "error", err)
			persistErr = errors.Join(persistErr, err)
			m.lastErr = persistErr
		}
	}
	token := m.token
	m.mu.Unlock()
	m.publish()

	m.hydrate(token)
	return persistErr
}

func validateCredentials(email, password string) error {
	fields := map[string]string{}
	if strings.TrimSpace(email) == "" {
		fields["email"] = "Email is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return &apierr.ValidationError{Fields: fields}
	}
	return nil
}

// hydrate fetches the profile for token in the background.
func (m *Manager) hydrate(token string) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if _, err := m.fetchUser(m.bgCtx, token); err != nil && !errors.Is(err, ErrSessionChanged) {
			m.log.Warn("profile hydration failed", "error", err)
		}
	}()
}

// Signup registers an account after validating email and password locally. It never signs in.
func (m *Manager) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	if err := validateSignup(req); err != nil {
		m.setErr(err)
		return nil, err
	}

	user, err := m.api.Signup(ctx, req)
	m.setErr(err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func validateSignup(req domain.SignupRequest) error {
	fields := map[string]string{}
	if err := ValidateEmail(req.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := ValidatePassword(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		for field, msg := range fields {
			return apierr.InvalidField(field, msg)
		}
	}
	return &apierr.ValidationError{Fields: fields}
}

// FetchUser loads the profile for the current token. Without a token it returns (nil, nil).
// A 401 signs the session out; any other failure leaves the session as it was.
func (m *Manager) FetchUser(ctx context.Context) (*domain.User, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token == "" {
		return nil, nil
	}
	return m.fetchUser(ctx, token)
}

func (m *Manager) fetchUser(ctx context.Context, token string) (*domain.User, error) {
	v, err, _ := m.sfg.Do(token, func() (interface{}, error) {
		return m.api.Me(ctx, token)
	})

	m.mu.Lock()
	if m.token != token {
		m.mu.Unlock()
		return nil, ErrSessionChanged
	}

	if err != nil {
		m.lastErr = err
		if !apierr.IsUnauthorized(err) {
			m.mu.Unlock()
			return nil, err
		}
		m.log.WithContext(ctx).Info("token rejected by backend, signing out")
		m.setStatusLocked(StatusInvalid)
		if clearErr := m.clearLocked(ctx); clearErr != nil {
			m.log.Error("failed to clear rejected session", "error", clearErr)
		}
		m.mu.Unlock()
		m.publish()
		return nil, err
	}

	user := *v.(*domain.User)
	m.user = &user
	m.lastErr = m.persistUserLocked(ctx)
	persistErr := m.lastErr
	m.mu.Unlock()
	m.publish()

	out := user
	return &out, persistErr
}

// UpdateProfile sends patch and replaces the cached profile with the backend's answer.
// On failure the cached profile is left alone.
func (m *Manager) UpdateProfile(ctx context.Context, patch domain.ProfileUpdate) (*domain.User, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	if token == "" {
		m.setErr(ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}

	if err := validateProfileUpdate(patch); err != nil {
		m.setErr(err)
		return nil, err
	}

	updated, err := m.api.UpdateMe(ctx, token, patch)
	if err != nil {
		m.setErr(err)
		return nil, err
	}

	m.mu.Lock()
	if m.token != token {
		m.mu.Unlock()
		return nil, ErrSessionChanged
	}
	m.user = updated
	m.lastErr = m.persistUserLocked(ctx)
	persistErr := m.lastErr
	m.mu.Unlock()
	m.publish()

	out := *updated
	return &out, persistErr
}

func validateProfileUpdate(patch domain.ProfileUpdate) error {
	if patch.Email != nil {
		if err := ValidateEmail(*patch.Email); err != nil {
			return err
		}
	}
	if patch.Password != nil {
		if err := ValidatePassword(*patch.Password); err != nil {
			return err
		}
	}
	return nil
}

// RecoverPassword asks the backend to send a reset link. It never changes the session.
func (m *Manager) RecoverPassword(ctx context.Context, email string) (*domain.Message, error) {
	if err := ValidateEmail(email); err != nil {
		m.setErr(err)
		return nil, err
	}
	msg, err := m.api.RecoverPassword(ctx, email)
	m.setErr(err)
	return msg, err
}

// ResetPassword sets a new password with a reset token. The caller must log in afterwards.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) (*domain.Message, error) {
	if strings.TrimSpace(resetToken) == "" {
		err := apierr.InvalidField("token", "Reset token is missing")
		m.setErr(err)
		return nil, err
	}
	if err := ValidatePassword(newPassword); err != nil {
		m.setErr(err)
		return nil, err
	}
	msg, err := m.api.ResetPassword(ctx, resetToken, newPassword)
	m.setErr(err)
	return msg, err
}

// Orders lists the signed-in user's order history.
func (m *Manager) Orders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	if token == "" {
		m.setErr(ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}

	orders, err := m.api.MyOrders(ctx, token)
	m.setErr(err)
	return orders, err
}

// Logout clears token and profile in memory and in the store. Safe to call when signed out.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	wasSignedIn := m.token != "" || m.user != nil
	err := m.clearLocked(ctx)
	m.lastErr = err
	m.mu.Unlock()

	if wasSignedIn {
		m.publish()
	}
	return err
}

// clearLocked drops the session. Both keys are removed even if the first removal fails.
func (m *Manager) clearLocked(ctx context.Context) error {
	m.token = ""
	m.user = nil
	m.setStatusLocked(StatusAnonymous)

	errToken := m.store.Remove(ctx, store.KeyToken)
	errUser := m.store.Remove(ctx, store.KeyUser)
	if err := errors.Join(errToken, errUser); err != nil {
		m.log.Error("failed to clear stored session", "error", err)
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (m *Manager) persistTokenLocked(ctx context.Context) error {
	if err := m.store.Set(ctx, store.KeyToken, []byte(m.token)); err != nil {
		m.log.Error("failed to persist token", "error", err)
		m.lastErr = err
		return err
	}
	return nil
}

func (m *Manager) persistUserLocked(ctx context.Context) error {
	if err := store.SetJSON(ctx, m.store, store.KeyUser, m.user); err != nil {
		m.log.Error("failed to persist profile", "error", err)
		return err
	}
	return nil
}

func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	m.metrics.SessionTransition(s.String())
}

func (m *Manager) derivedStatusLocked() Status {
	if m.token != "" {
		return StatusAuthenticated
	}
	return StatusAnonymous
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) publish() {
	m.mu.Lock()
	payload := map[string]any{
		"status":        m.status.String(),
		"authenticated": m.token != "",
		"has_profile":   m.user != nil,
	}
	m.mu.Unlock()

	m.bus.Publish(events.Event{
		Type:    events.SessionChanged,
		Key:     "session",
		Payload: payload,
	})
}

// IsAuthenticated reports whether a token is present. It does not wait for the profile.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// User returns a copy of the cached profile, or nil when it has not been fetched.
func (m *Manager) User() *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// ExpiresAt reads the exp claim of the current token without verifying it.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	return tokenExpiry(token)
}

// Close stops background profile hydration and waits for it to finish.
func (m *Manager) Close() {
	m.bgCancel()
	m.bg.Wait()
}

func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
