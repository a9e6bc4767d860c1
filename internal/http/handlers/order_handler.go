package handlers

import (
	"strings"

	"secondhand/internal/domain"
	"secondhand/internal/log"
	"secondhand/internal/services"
	"secondhand/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in struct {
		ProductID int64  `json:"productId"`
		Quantity  int    `json:"quantity"`
		Remark    string `json:"remark"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	if in.ProductID < 1 {
		return fail(c, fiber.StatusBadRequest, "productId is required")
	}
	if !validate.Quantity(in.Quantity) {
		return fail(c, fiber.StatusBadRequest, "quantity must be between 1 and 999")
	}
	remark := strings.TrimSpace(in.Remark)
	if len([]rune(remark)) > 200 {
		return fail(c, fiber.StatusBadRequest, "remark is too long")
	}
	o, err := h.Orders.Create(uid(c), in.ProductID, in.Quantity, remark)
	if err != nil {
		return respond(c, "order.create", err)
	}
	log.Audit(c, "order.create", map[string]any{"order_id": o.ID, "order_no": o.OrderNo, "total": o.TotalAmount})
	return ok(c, o)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return fail(c, fiber.StatusNotFound, "order not found")
	}
	o, err := h.Orders.Get(uid(c), id)
	if err != nil {
		return respond(c, "order.get", err)
	}
	return ok(c, o)
}

func listParams(c *fiber.Ctx) (domain.OrderStatus, int, int, bool) {
	st, okSt := validate.OrderStatus(c.Query("status"))
	page, size := validate.Paging(c.Query("page"), c.Query("pageSize"), 10)
	return st, page, size, okSt
}

func (h *OrderHandler) Mine(c *fiber.Ctx) error {
	st, page, size, okSt := listParams(c)
	if !okSt {
		return fail(c, fiber.StatusBadRequest, "unknown order status")
	}
	res, err := h.Orders.Purchases(uid(c), st, page, size)
	if err != nil {
		return respond(c, "order.mine", err)
	}
	return ok(c, res)
}

func (h *OrderHandler) Sales(c *fiber.Ctx) error {
	st, page, size, okSt := listParams(c)
	if !okSt {
		return fail(c, fiber.StatusBadRequest, "unknown order status")
	}
	res, err := h.Orders.Sales(uid(c), st, page, size)
	if err != nil {
		return respond(c, "order.sales", err)
	}
	return ok(c, res)
}

func (h *OrderHandler) Pay(c *fiber.Ctx) error {
	var in struct {
		OrderID       int64  `json:"orderId"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	if in.OrderID < 1 {
		return fail(c, fiber.StatusBadRequest, "orderId is required")
	}
	method, okM := validate.PaymentMethod(in.PaymentMethod)
	if !okM {
		return fail(c, fiber.StatusBadRequest, "unsupported payment method")
	}
	o, err := h.Orders.Pay(uid(c), in.OrderID, method)
	return h.transitioned(c, domain.ActionPay, in.OrderID, o, err)
}

// act serves the /orders/:id/<action> routes.
func (h *OrderHandler) act(a domain.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, okID := validate.ID(c.Params("id"))
		if !okID {
			return fail(c, fiber.StatusNotFound, "order not found")
		}
		o, err := h.Orders.Apply(uid(c), id, a, "")
		return h.transitioned(c, a, id, o, err)
	}
}

func (h *OrderHandler) Ship() fiber.Handler     { return h.act(domain.ActionShip) }
func (h *OrderHandler) Complete() fiber.Handler { return h.act(domain.ActionComplete) }
func (h *OrderHandler) Cancel() fiber.Handler   { return h.act(domain.ActionCancel) }

func (h *OrderHandler) transitioned(c *fiber.Ctx, a domain.Action, id int64, o domain.Order, err error) error {
	if err != nil {
		return respond(c, "order."+string(a), err)
	}
	log.Audit(c, "order."+string(a), map[string]any{"order_id": id, "status": o.Status})
	return ok(c, o)
}
