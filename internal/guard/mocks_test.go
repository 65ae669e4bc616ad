package guard

import (
	"context"
	"sync"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
)

// mockSession behaves like the session manager: a 401 from FetchUser drops the token.
type mockSession struct {
	mu       sync.Mutex
	token    string
	user     *domain.User
	FetchErr error
	Fetched  *domain.User
	fetches  int
}

func (m *mockSession) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

func (m *mockSession) User() *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

func (m *mockSession) FetchUser(context.Context) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.FetchErr != nil {
		if apierr.IsUnauthorized(m.FetchErr) {
			m.token = ""
			m.user = nil
		}
		return nil, m.FetchErr
	}
	m.user = m.Fetched
	return m.user, nil
}

func (m *mockSession) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}
