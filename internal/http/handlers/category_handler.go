package handlers

import (
	"secondhand/internal/services"

	"github.com/gofiber/fiber/v2"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	return ok(c, h.Catalog.Categories())
}

// Home renders the landing page with the newest listings.
func (h *CategoryHandler) Home(c *fiber.Ctx) error {
	latest, err := h.Catalog.List(services.ListQuery{Page: 1, PageSize: 12})
	if err != nil {
		return err
	}
	return render(c, "home", fiber.Map{
		"Categories": h.Catalog.Categories(),
		"Products":   latest.List,
	})
}
