// Package guard decides which client destinations need a signed-in session.
package guard

import (
	"net/url"
	"strings"

	"secondhand/internal/client/session"
)

const AuthPath = "/auth"

// Public and protected destinations. Anything not listed is public.
var (
	Public    = []string{"/", "/product/:id", AuthPath}
	Protected = []string{"/upload", "/my-products", "/orders", "/purchases", "/profile", "/payment/:orderId"}
)

type Decision struct {
	Allowed bool
	// Redirect is where to go instead when not allowed.
	Redirect string
	// From is the destination to resume after signing in.
	From string
}

type Guard struct {
	store     session.Store
	protected [][]string
}

func New(store session.Store) *Guard {
	g := &Guard{store: store}
	for _, p := range Protected {
		g.protected = append(g.protected, segments(p))
	}
	return g
}

// Store is the session the guard checks.
func (g *Guard) Store() session.Store { return g.store }

// Check only looks at token presence. The server remains the authority on
// whether the token is still good.
func (g *Guard) Check(dest string) Decision {
	if !g.Protects(dest) {
		return Decision{Allowed: true}
	}
	if _, ok := g.store.Token(); ok {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: AuthRedirect(dest), From: dest}
}

// Protects reports whether dest needs a session.
func (g *Guard) Protects(dest string) bool {
	path := dest
	if u, err := url.Parse(dest); err == nil {
		path = u.Path
	}
	segs := segments(path)
	for _, p := range g.protected {
		if match(p, segs) {
			return true
		}
	}
	return false
}

// AuthRedirect is the auth entry carrying from as the resume target.
func AuthRedirect(from string) string {
	if from == "" || from == "/" || strings.HasPrefix(from, AuthPath) {
		return AuthPath
	}
	return AuthPath + "?from=" + url.QueryEscape(from)
}

// FromRedirect extracts the resume target from an auth redirect. Only local
// absolute paths are returned.
func FromRedirect(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Path != AuthPath {
		return ""
	}
	from := u.Query().Get("from")
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return ""
	}
	return from
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func match(pattern, segs []string) bool {
	if len(pattern) != len(segs) {
		return false
	}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if p != segs[i] {
			return false
		}
	}
	return true
}
