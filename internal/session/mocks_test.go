package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tvdermeer/3dprint-website/domain"
)

// mockAuthAPI answers from fields; MeGate, when set, blocks Me until it is closed.
type mockAuthAPI struct {
	mu sync.Mutex

	LoginToken string
	LoginErr   error
	LoginCalls int

	SignupUser  *domain.User
	SignupErr   error
	SignupCalls int

	RecoverErr error
	ResetErr   error
	ResetCalls int

	MeUser  *domain.User
	MeErr   error
	MeGate  chan struct{}
	meCalls atomic.Int32

	UpdateUser *domain.User
	UpdateErr  error

	Orders    []domain.Order
	OrdersErr error
}

func (m *mockAuthAPI) Login(_ context.Context, _, _ string) (*domain.TokenResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoginCalls++
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	return &domain.TokenResponse{AccessToken: m.LoginToken, TokenType: "bearer"}, nil
}

func (m *mockAuthAPI) Signup(_ context.Context, req domain.SignupRequest) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignupCalls++
	if m.SignupErr != nil {
		return nil, m.SignupErr
	}
	if m.SignupUser != nil {
		return m.SignupUser, nil
	}
	return &domain.User{ID: 1, Email: req.Email, FullName: req.FullName, IsActive: true}, nil
}

func (m *mockAuthAPI) RecoverPassword(context.Context, string) (*domain.Message, error) {
	if m.RecoverErr != nil {
		return nil, m.RecoverErr
	}
	return &domain.Message{Msg: "Password recovery email sent"}, nil
}

func (m *mockAuthAPI) ResetPassword(context.Context, string, string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalls++
	if m.ResetErr != nil {
		return nil, m.ResetErr
	}
	return &domain.Message{Msg: "Password updated successfully"}, nil
}

func (m *mockAuthAPI) Me(ctx context.Context, _ string) (*domain.User, error) {
	m.meCalls.Add(1)
	m.mu.Lock()
	gate := m.MeGate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MeErr != nil {
		return nil, m.MeErr
	}
	u := *m.MeUser
	return &u, nil
}

func (m *mockAuthAPI) UpdateMe(context.Context, string, domain.ProfileUpdate) (*domain.User, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	u := *m.UpdateUser
	return &u, nil
}

func (m *mockAuthAPI) MyOrders(context.Context, string) ([]domain.Order, error) {
	return m.Orders, m.OrdersErr
}

func (m *mockAuthAPI) setMe(user *domain.User, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MeUser = user
	m.MeErr = err
}
