package handlers

import (
	"strings"

	"secondhand/internal/domain"
	"secondhand/internal/log"
	"secondhand/internal/services"
	"secondhand/internal/validate"

	"github.com/gofiber/fiber/v2"
)

const maxImages = 9

type ProductHandler struct {
	Catalog *services.CatalogService
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	page, size := validate.Paging(c.Query("page"), c.Query("pageSize"), 12)
	q := services.ListQuery{Page: page, PageSize: size}

	kw, okKw := validate.Keyword(c.Query("keyword"))
	if !okKw {
		log.Security(c, "validation.fail", map[string]any{"field": "keyword"})
		return fail(c, fiber.StatusBadRequest, "keyword contains unsupported characters")
	}
	q.Keyword = kw
	if raw := c.Query("category"); raw != "" {
		cat, okCat := validate.Category(raw)
		if !okCat {
			return fail(c, fiber.StatusBadRequest, "unknown category")
		}
		q.Category = cat
	}
	if raw := c.Query("sellerId"); raw != "" {
		id, okID := validate.ID(raw)
		if !okID {
			return fail(c, fiber.StatusBadRequest, "invalid seller id")
		}
		q.SellerID = id
	}

	res, err := h.Catalog.List(q)
	if err != nil {
		return respond(c, "product.list", err)
	}
	return ok(c, res)
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	p, err := h.Catalog.Get(id)
	if err != nil {
		return respond(c, "product.get", err)
	}
	return ok(c, p)
}

func (h *ProductHandler) Mine(c *fiber.Ctx) error {
	page, size := validate.Paging(c.Query("page"), c.Query("pageSize"), 12)
	res, err := h.Catalog.Mine(uid(c), page, size)
	if err != nil {
		return respond(c, "product.mine", err)
	}
	return ok(c, res)
}

type productBody struct {
	Name        *string   `json:"name"`
	Category    *string   `json:"category"`
	Price       *float64  `json:"price"`
	Stock       *int      `json:"stock"`
	Description *string   `json:"description"`
	Images      *[]string `json:"images"`
	Status      *string   `json:"status"`
}

// patch validates whatever fields are present.
func (b productBody) patch() (services.ProductPatch, string) {
	var p services.ProductPatch
	if b.Name != nil {
		name, okName := validate.ProductName(*b.Name)
		if !okName {
			return p, "name must be 1-128 characters"
		}
		p.Name = &name
	}
	if b.Category != nil {
		cat, okCat := validate.Category(*b.Category)
		if !okCat {
			return p, "unknown category"
		}
		p.Category = &cat
	}
	if b.Price != nil {
		if !validate.Price(*b.Price) {
			return p, "price must be positive with at most two decimals"
		}
		p.Price = b.Price
	}
	if b.Stock != nil {
		if !validate.Stock(*b.Stock) {
			return p, "stock must not be negative"
		}
		p.Stock = b.Stock
	}
	if b.Description != nil {
		d := strings.TrimSpace(*b.Description)
		if len([]rune(d)) > 2000 {
			return p, "description is too long"
		}
		p.Description = &d
	}
	if b.Images != nil {
		imgs := make([]string, 0, len(*b.Images))
		for _, u := range *b.Images {
			u = strings.TrimSpace(u)
			if u == "" || len(u) > 512 {
				return p, "invalid image url"
			}
			imgs = append(imgs, u)
		}
		if len(imgs) > maxImages {
			return p, "at most 9 images"
		}
		p.Images = &imgs
	}
	if b.Status != nil {
		st := domain.ProductStatus(strings.ToLower(strings.TrimSpace(*b.Status)))
		if st != domain.ProductOnSale && st != domain.ProductOffSale {
			return p, "status must be on_sale or off_sale"
		}
		p.Status = &st
	}
	return p, ""
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var b productBody
	if err := c.BodyParser(&b); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	if b.Name == nil || b.Category == nil || b.Price == nil || b.Stock == nil {
		return fail(c, fiber.StatusBadRequest, "name, category, price and stock are required")
	}
	p, msg := b.patch()
	if msg != "" {
		log.Security(c, "validation.fail", map[string]any{"op": "product.create", "reason": msg})
		return fail(c, fiber.StatusBadRequest, msg)
	}
	in := services.ProductInput{Name: *p.Name, Category: *p.Category, Price: *p.Price, Stock: *p.Stock}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Images != nil {
		in.Images = *p.Images
	}
	prod, err := h.Catalog.Create(uid(c), in)
	if err != nil {
		return respond(c, "product.create", err)
	}
	log.Audit(c, "product.create", map[string]any{"product_id": prod.ID})
	return ok(c, prod)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	var b productBody
	if err := c.BodyParser(&b); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	p, msg := b.patch()
	if msg != "" {
		log.Security(c, "validation.fail", map[string]any{"op": "product.update", "reason": msg})
		return fail(c, fiber.StatusBadRequest, msg)
	}
	prod, err := h.Catalog.Update(uid(c), id, p)
	if err != nil {
		return respond(c, "product.update", err)
	}
	log.Audit(c, "product.update", map[string]any{"product_id": id})
	return ok(c, prod)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	removed, err := h.Catalog.Delete(uid(c), id)
	if err != nil {
		return respond(c, "product.delete", err)
	}
	log.Audit(c, "product.delete", map[string]any{"product_id": id, "removed": removed})
	return ok(c, nil)
}
