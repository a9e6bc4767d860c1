package handlers

import (
	"secondhand/internal/domain"
	"secondhand/internal/log"
	"secondhand/internal/metrics"
	"secondhand/internal/services"
	"secondhand/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	username, okName := validate.Username(in.Username)
	if !okName || !validate.Password(in.Password) {
		metrics.LoginAttempts.WithLabelValues("fail").Inc()
		log.Security(c, "auth.login.fail", map[string]any{"username": in.Username, "reason": "bad_format"})
		return fail(c, fiber.StatusUnauthorized, services.ErrBadCreds.Message)
	}
	tok, u, err := h.Auth.Login(username, in.Password)
	if err != nil {
		if _, isBiz := services.AsBusiness(err); isBiz {
			metrics.LoginAttempts.WithLabelValues("fail").Inc()
			log.Security(c, "auth.login.fail", map[string]any{"username": username})
		}
		return respond(c, "auth.login", err)
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	c.Locals("uid", u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"username": username})
	return ok(c, session{Token: tok, User: u})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	username, okName := validate.Username(in.Username)
	if !okName {
		return fail(c, fiber.StatusBadRequest, "username must be 3-64 letters, digits, dot, dash or underscore")
	}
	if !validate.Password(in.Password) {
		return fail(c, fiber.StatusBadRequest, "password must be 6-128 characters")
	}
	email, okEmail := validate.Email(in.Email)
	if !okEmail {
		return fail(c, fiber.StatusBadRequest, "invalid email address")
	}
	phone, okPhone := validate.Phone(in.Phone)
	if !okPhone {
		return fail(c, fiber.StatusBadRequest, "invalid phone number")
	}
	tok, u, err := h.Auth.Register(username, in.Password, email, phone)
	if err != nil {
		return respond(c, "auth.register", err)
	}
	c.Locals("uid", u.ID)
	log.Audit(c, "auth.register", map[string]any{"username": username})
	return ok(c, session{Token: tok, User: u})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Auth.Me(uid(c))
	if err != nil {
		return respond(c, "auth.me", err)
	}
	return ok(c, u)
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var in struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	if in.OldPassword == "" || !validate.Password(in.NewPassword) {
		return fail(c, fiber.StatusBadRequest, "new password must be 6-128 characters")
	}
	if err := h.Auth.ChangePassword(uid(c), in.OldPassword, in.NewPassword); err != nil {
		return respond(c, "auth.password", err)
	}
	log.Audit(c, "auth.password.changed", nil)
	return ok(c, nil)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*services.Claims)
	if err := h.Auth.Logout(claims); err != nil {
		return respond(c, "auth.logout", err)
	}
	log.Audit(c, "auth.logout", nil)
	return ok(c, nil)
}
