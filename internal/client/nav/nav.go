// Package nav owns the client's current location.
//
// All redirects go through a Navigator: guarded destinations, the auth
// entry after a revoked session, and the resume after signing in.
package nav

import (
	"strings"
	"sync"

	"secondhand/internal/client/api"
	"secondhand/internal/client/guard"
	"secondhand/internal/client/session"
	applog "secondhand/internal/log"
)

type Navigator struct {
	guard *guard.Guard

	mu       sync.Mutex
	location string
	resume   string
	history  []string
	stops    []func()
}

// New starts at "/". A cleared session evicts the navigator from protected
// pages. When client is non-nil it also follows session revocations to the
// auth entry.
func New(g *guard.Guard, client *api.Client) *Navigator {
	n := &Navigator{guard: g, location: "/", history: []string{"/"}}
	n.stops = append(n.stops, g.Store().Subscribe(n.sessionChanged))
	if client != nil {
		n.stops = append(n.stops, client.OnRevoked(func(r api.Revoked) {
			applog.Event("nav.revoked", map[string]any{"path": r.Path})
			n.ToAuth()
		}))
	}
	return n
}

func (n *Navigator) sessionChanged(c session.Change) {
	if !c.Cleared {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.guard.Protects(n.location) {
		applog.Debug("nav.session.cleared", map[string]any{"location": n.location})
		n.toAuthLocked()
	}
}

// Go moves to dest, or to the auth entry when the guard refuses it.
func (n *Navigator) Go(dest string) guard.Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.goLocked(dest)
}

func (n *Navigator) goLocked(dest string) guard.Decision {
	d := n.guard.Check(dest)
	if d.Allowed {
		n.move(dest)
		return d
	}
	n.resume = d.From
	n.move(d.Redirect)
	return d
}

func (n *Navigator) move(to string) {
	if to == n.location {
		return
	}
	n.location = to
	n.history = append(n.history, to)
}

// ToAuth sends the user to the auth entry, remembering where they were.
func (n *Navigator) ToAuth() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toAuthLocked()
}

func (n *Navigator) toAuthLocked() {
	switch from := guard.FromRedirect(n.location); {
	case from != "":
		n.resume = from
	case !isAuth(n.location):
		n.resume = n.location
	}
	n.move(guard.AuthRedirect(n.resume))
}

// SignedOut goes to the bare auth entry and forgets any resume target.
func (n *Navigator) SignedOut() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resume = ""
	n.move(guard.AuthPath)
}

// Resume goes to the remembered destination, or "/" when there is none.
func (n *Navigator) Resume() {
	n.mu.Lock()
	defer n.mu.Unlock()
	dest := n.resume
	if dest == "" {
		dest = guard.FromRedirect(n.location)
	}
	if dest == "" {
		dest = "/"
	}
	n.resume = ""
	n.goLocked(dest)
}

func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// History returns every location visited, oldest first.
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Close stops following the session and revocations.
func (n *Navigator) Close() {
	for _, stop := range n.stops {
		stop()
	}
}

func isAuth(loc string) bool {
	return loc == guard.AuthPath || strings.HasPrefix(loc, guard.AuthPath+"?")
}
