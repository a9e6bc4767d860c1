package handlers

import (
	"strings"

	applog "secondhand/internal/log"
	"secondhand/internal/services"

	"github.com/gofiber/fiber/v2"
)

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireUser admits requests carrying a valid bearer token and stores the
// caller in Locals ("uid", "user", "claims"). Anything else gets a 401 envelope.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearer(c)
		if tok == "" {
			return fail(c, fiber.StatusUnauthorized, "login required")
		}
		u, claims, err := auth.Authenticate(tok)
		if err != nil {
			if _, isBiz := services.AsBusiness(err); !isBiz {
				return respond(c, "auth.token", err)
			}
			applog.Security(c, "auth.token.reject", nil)
			return fail(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals("uid", u.ID)
		c.Locals("user", u)
		c.Locals("claims", claims)
		return c.Next()
	}
}
