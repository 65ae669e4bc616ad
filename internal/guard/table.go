package guard

import (
	"net/url"
	"path"
	"strings"

	"github.com/tvdermeer/3dprint-website/domain"
)

const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

// Table maps route paths to their access requirements. A route also covers every path below it,
// so "/product" matches "/product/42".
type Table struct {
	routes map[string]domain.Route
}

func NewTable(routes ...domain.Route) *Table {
	t := &Table{routes: make(map[string]domain.Route, len(routes))}
	for _, r := range routes {
		t.Add(r)
	}
	return t
}

// DefaultTable holds the storefront's routes.
func DefaultTable() *Table {
	return NewTable(
		domain.Route{Path: "/", Access: domain.AccessPublic},
		domain.Route{Path: "/product", Access: domain.AccessPublic},
		domain.Route{Path: "/checkout", Access: domain.AccessPublic},
		domain.Route{Path: "/login", Access: domain.AccessGuestOnly},
		domain.Route{Path: "/forgot-password", Access: domain.AccessGuestOnly},
		domain.Route{Path: "/reset-password", Access: domain.AccessGuestOnly},
		domain.Route{Path: "/dashboard", Access: domain.AccessAuthRequired},
		domain.Route{Path: "/account", Access: domain.AccessAuthRequired},
	)
}

func (t *Table) Add(r domain.Route) {
	r.Path = cleanPath(r.Path)
	t.routes[r.Path] = r
}

// Lookup returns the route for target, which may carry a query string. The most specific
// registered prefix wins; unknown paths are public.
func (t *Table) Lookup(target string) domain.Route {
	p := cleanPath(target)
	for candidate := p; ; candidate = path.Dir(candidate) {
		if r, ok := t.routes[candidate]; ok && (candidate != "/" || p == "/") {
			return domain.Route{Path: p, Access: r.Access}
		}
		if candidate == "/" {
			break
		}
	}
	return domain.Route{Path: p, Access: domain.AccessPublic}
}

func cleanPath(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return path.Clean(target)
}

// SafeRedirect returns raw when it is a local path, and fallback otherwise. Absolute URLs,
// protocol-relative URLs and backslash tricks are rejected so a redirect parameter cannot send
// the visitor off-site.
func SafeRedirect(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return raw
}
