// Package auth keeps the client's token and user in step.
//
// The controller is the only writer of the session pair: it stores both with
// one SetSession and removes both with one Clear, so readers see either a
// full session or none.
package auth

import (
	"context"
	"time"

	"secondhand/internal/client/api"
	"secondhand/internal/client/session"
	"secondhand/internal/domain"
	applog "secondhand/internal/log"
)

const logoutTimeout = 5 * time.Second

// Navigator is what the controller needs from whoever owns navigation.
type Navigator interface {
	ToAuth()
	SignedOut()
	Resume()
}

type noNav struct{}

func (noNav) ToAuth()    {}
func (noNav) SignedOut() {}
func (noNav) Resume()    {}

type Controller struct {
	client *api.Client
	store  session.Store
	nav    Navigator
}

// NewController repairs a half-present session before returning.
func NewController(client *api.Client, store session.Store, nav Navigator) *Controller {
	if nav == nil {
		nav = noNav{}
	}
	c := &Controller{client: client, store: store, nav: nav}
	c.repair()
	return c
}

func (c *Controller) repair() {
	_, hasTok := c.store.Token()
	_, hasUser := c.store.User()
	if hasTok == hasUser {
		return
	}
	applog.Event("auth.session.repair", map[string]any{"token": hasTok, "user": hasUser})
	c.clear()
}

func (c *Controller) clear() {
	if err := c.store.Clear(); err != nil {
		applog.Fail("auth.session.clear", err, nil)
	}
}

func (c *Controller) establish(s api.Session, msg string) bool {
	if s.Token == "" || s.User.ID == 0 {
		applog.Event("auth.session.incomplete", nil)
		c.client.Notifier().Error(api.MsgFailed)
		return false
	}
	if err := c.store.SetSession(s.Token, s.User); err != nil {
		applog.Fail("auth.session.save", err, nil)
		c.client.Notifier().Error(api.MsgFailed)
		return false
	}
	c.client.Notifier().Success(msg)
	c.nav.Resume()
	return true
}

// Login stores the new session and resumes the remembered destination.
// On failure the current session is left as it was.
func (c *Controller) Login(ctx context.Context, in api.LoginRequest) bool {
	s, err := c.client.Login(ctx, in)
	if err != nil {
		return false
	}
	return c.establish(s, "welcome back, "+s.User.Username)
}

func (c *Controller) Register(ctx context.Context, in api.RegisterRequest) bool {
	s, err := c.client.Register(ctx, in)
	if err != nil {
		return false
	}
	return c.establish(s, "account created")
}

// ChangePassword ends the session on success; the old token is dead anyway.
func (c *Controller) ChangePassword(ctx context.Context, oldPassword, newPassword string) bool {
	err := c.client.ChangePassword(ctx, api.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword})
	if err != nil {
		return false
	}
	c.clear()
	c.client.Notifier().Success("password changed, please log in again")
	c.nav.ToAuth()
	return true
}

// Logout tells the server (best effort) and always drops the local session.
func (c *Controller) Logout(ctx context.Context) {
	if _, ok := c.store.Token(); ok {
		lctx, cancel := context.WithTimeout(ctx, logoutTimeout)
		if err := c.client.Logout(lctx, api.Silent()); err != nil {
			applog.Debug("auth.logout.remote", map[string]any{"err": err.Error()})
		}
		cancel()
	}
	c.nav.SignedOut()
	c.clear()
	c.client.Notifier().Success("logged out")
}

// Refresh re-reads the signed-in user from the server without notifying.
func (c *Controller) Refresh(ctx context.Context) bool {
	tok, ok := c.store.Token()
	if !ok {
		return false
	}
	u, err := c.client.Me(ctx, api.Silent())
	if err != nil {
		return false
	}
	// a logout or a newer login may have replaced tok while Me was in flight
	ok, err = c.store.ReplaceUser(tok, u)
	if err != nil {
		applog.Fail("auth.session.save", err, nil)
		return false
	}
	if !ok {
		applog.Debug("auth.refresh.stale", nil)
	}
	return ok
}

func (c *Controller) CurrentUser() *domain.User {
	if !c.IsAuthenticated() {
		return nil
	}
	u, _ := c.store.User()
	return u
}

// IsAuthenticated needs both halves of the pair.
func (c *Controller) IsAuthenticated() bool {
	_, hasTok := c.store.Token()
	_, hasUser := c.store.User()
	return hasTok && hasUser
}
