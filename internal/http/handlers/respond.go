package handlers

import (
	"errors"

	applog "secondhand/internal/log"
	"secondhand/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ok writes the success envelope.
func ok(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"code": fiber.StatusOK, "message": "success", "data": data})
}

// fail writes an error envelope whose HTTP status equals its code.
func fail(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"code": code, "message": msg, "data": nil})
}

// respond maps a service error onto the envelope. Anything that is not a
// business error is logged and hidden behind a generic 500.
func respond(c *fiber.Ctx, action string, err error) error {
	if be, isBiz := services.AsBusiness(err); isBiz {
		if be.Code == fiber.StatusForbidden {
			applog.Security(c, action+".denied", map[string]any{"reason": be.Message})
		}
		return fail(c, be.Code, be.Message)
	}
	applog.Error(c, action+".error", err, nil)
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler answers errors that escape a handler (unknown routes, oversized
// bodies, panics turned into errors) with the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= 500 {
			applog.Error(c, "server.error", err, nil)
		}
		return fail(c, fe.Code, fe.Message)
	}
	applog.Error(c, "server.error", err, nil)
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

func uid(c *fiber.Ctx) int64 {
	id, _ := c.Locals("uid").(int64)
	return id
}
