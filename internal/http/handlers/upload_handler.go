package handlers

import (
	"secondhand/internal/log"
	"secondhand/internal/services"

	"github.com/gofiber/fiber/v2"
)

type UploadHandler struct {
	Uploads *services.UploadService
}

func (h *UploadHandler) Image(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return respond(c, "upload.image", err)
	}
	defer f.Close()

	url, err := h.Uploads.Image(c.UserContext(), fh.Size, f)
	if err != nil {
		return respond(c, "upload.image", err)
	}
	log.Audit(c, "upload.image", map[string]any{"url": url, "size": fh.Size})
	return ok(c, fiber.Map{"url": url})
}
