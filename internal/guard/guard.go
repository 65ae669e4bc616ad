// Package guard decides whether a navigation may proceed given the session state.
package guard

import (
	"context"
	"net/url"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type Session interface {
	IsAuthenticated() bool
	User() *domain.User
	FetchUser(ctx context.Context) (*domain.User, error)
}

type Guard struct {
	session Session
	table   *Table
	log     *logger.Logger
}

type Option func(*Guard)

func WithTable(t *Table) Option { return func(g *Guard) { g.table = t } }

func WithLogger(l *logger.Logger) Option { return func(g *Guard) { g.log = l } }

func New(s Session, opts ...Option) *Guard {
	g := &Guard{session: s, table: DefaultTable()}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logger.OrNop(g.log)
	return g
}

// Check looks target up in the route table and decides it.
func (g *Guard) Check(ctx context.Context, target string) domain.Decision {
	return g.Decide(ctx, g.table.Lookup(target), target)
}

// Decide admits or redirects a navigation to target under route's access requirement.
//
// When a token is held but no profile is cached yet, the profile is fetched first so a token the
// backend no longer accepts is caught here: a 401 signs the session out and the navigation is
// decided as anonymous. Any other fetch failure keeps the token-based decision.
func (g *Guard) Decide(ctx context.Context, route domain.Route, target string) domain.Decision {
	if route.Access == domain.AccessPublic {
		return domain.Decision{Admit: true}
	}

	if g.session.IsAuthenticated() && g.session.User() == nil {
		if _, err := g.session.FetchUser(ctx); err != nil && !apierr.IsUnauthorized(err) {
			g.log.WithContext(ctx).Warn("profile fetch failed during navigation", "path", route.Path, "error", err)
		}
	}
	authenticated := g.session.IsAuthenticated()

	switch route.Access {
	case domain.AccessAuthRequired:
		if authenticated {
			return domain.Decision{Admit: true}
		}
		return domain.Decision{Redirect: LoginRedirect(target)}
	case domain.AccessGuestOnly:
		if !authenticated {
			return domain.Decision{Admit: true}
		}
		return domain.Decision{Redirect: LandingPath}
	default:
		return domain.Decision{Admit: true}
	}
}

// LoginRedirect is the login URL that resumes at target after sign-in.
func LoginRedirect(target string) string {
	target = SafeRedirect(target, "/")
	return LoginPath + "?redirect=" + url.QueryEscape(target)
}
