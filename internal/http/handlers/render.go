package handlers

import (
	"secondhand/internal/domain"

	"github.com/gofiber/fiber/v2"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if u, isUser := c.Locals("user").(domain.User); isUser {
		data["User"] = u
	}
	return c.Render(tmpl, data)
}
