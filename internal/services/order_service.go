package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"secondhand/internal/domain"
	"secondhand/internal/metrics"
	"secondhand/internal/repos"

	"github.com/google/uuid"
)

type OrderService struct {
	Orders *repos.OrderRepo
	Prods  *repos.ProductRepo
	Now    func() time.Time
}

func NewOrderService(orders *repos.OrderRepo, prods *repos.ProductRepo) *OrderService {
	return &OrderService{Orders: orders, Prods: prods, Now: time.Now}
}

// OrderNo formats an order number: ORD, a second-resolution timestamp and 8 random hex digits.
func OrderNo(t time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("ORD%s%x", t.Format("20060102150405"), u[:4])
}

// Total is price times quantity rounded to cents.
func Total(price float64, qty int) float64 {
	return math.Round(price*float64(qty)*100) / 100
}

func (s *OrderService) Create(buyerID, productID int64, qty int, remark string) (domain.Order, error) {
	p, err := s.Prods.Get(productID)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.Order{}, NotFound("product not found")
	}
	if err != nil {
		return domain.Order{}, err
	}
	if p.SellerID == buyerID {
		return domain.Order{}, BadRequest("you cannot buy your own product")
	}
	if p.Status != domain.ProductOnSale {
		return domain.Order{}, BadRequest("product is not on sale")
	}
	if p.Stock < qty {
		return domain.Order{}, BadRequest(fmt.Sprintf("insufficient stock (have %d)", p.Stock))
	}

	o := domain.Order{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    qty,
		TotalAmount: Total(p.Price, qty),
		Status:      domain.OrderPending,
		BuyerID:     buyerID,
		SellerID:    p.SellerID,
		Remark:      remark,
	}
	if len(p.Images) > 0 {
		o.ProductImage = p.Images[0]
	}

	for attempt := 0; ; attempt++ {
		o.OrderNo = OrderNo(s.Now())
		err = s.Orders.Create(&o)
		if !errors.Is(err, repos.ErrDuplicate) || attempt == 2 {
			break
		}
	}
	switch {
	case errors.Is(err, repos.ErrInsufficientStock):
		return domain.Order{}, BadRequest("product is no longer available in that quantity")
	case err != nil:
		return domain.Order{}, err
	}
	metrics.OrdersCreated.Inc()
	return s.Orders.Get(o.ID)
}

// Get returns an order to its buyer or seller only.
func (s *OrderService) Get(uid, id int64) (domain.Order, error) {
	o, err := s.Orders.Get(id)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.Order{}, NotFound("order not found")
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.ActorOf(uid) == domain.ActorNone {
		return domain.Order{}, Forbidden("you are not a party to this order")
	}
	return o, nil
}

func (s *OrderService) list(f repos.OrderFilter, page, size int) (domain.Page[domain.Order], error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	list, total, err := s.Orders.List(f, size, offset(page, size))
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.Page[domain.Order]{List: list, Total: total, Page: page, PageSize: size}, nil
}

// Purchases lists orders placed by the buyer.
func (s *OrderService) Purchases(buyerID int64, status domain.OrderStatus, page, size int) (domain.Page[domain.Order], error) {
	return s.list(repos.OrderFilter{BuyerID: buyerID, Status: status}, page, size)
}

// Sales lists orders for the seller's products.
func (s *OrderService) Sales(sellerID int64, status domain.OrderStatus, page, size int) (domain.Page[domain.Order], error) {
	return s.list(repos.OrderFilter{SellerID: sellerID, Status: status}, page, size)
}

// Apply performs action on behalf of uid. The state machine decides legality;
// the repo update is conditional on the status we checked against.
func (s *OrderService) Apply(uid, id int64, action domain.Action, paymentMethod string) (o domain.Order, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "rejected"
		}
		metrics.OrderTransitions.WithLabelValues(string(action), result).Inc()
	}()

	cur, err := s.Get(uid, id)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := domain.Next(cur.Status, action, cur.ActorOf(uid)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotPermitted):
			return domain.Order{}, Forbidden(fmt.Sprintf("only the %s can %s this order", roleFor(action), action))
		case errors.Is(err, domain.ErrUnknownAction):
			return domain.Order{}, BadRequest("unknown order action")
		default:
			return domain.Order{}, BadRequest(fmt.Sprintf("cannot %s an order that is %s", action, cur.Status))
		}
	}
	t, _ := domain.TransitionFor(action)
	if action != domain.ActionPay {
		paymentMethod = ""
	}
	o, err = s.Orders.Transition(id, t, paymentMethod)
	if errors.Is(err, repos.ErrStatusConflict) {
		return domain.Order{}, Conflict("order status changed, refresh and try again")
	}
	return o, err
}

func roleFor(a domain.Action) domain.Actor {
	t, _ := domain.TransitionFor(a)
	return t.Actor
}

func (s *OrderService) Pay(uid, id int64, method string) (domain.Order, error) {
	return s.Apply(uid, id, domain.ActionPay, method)
}

func (s *OrderService) Ship(uid, id int64) (domain.Order, error) {
	return s.Apply(uid, id, domain.ActionShip, "")
}

func (s *OrderService) Complete(uid, id int64) (domain.Order, error) {
	return s.Apply(uid, id, domain.ActionComplete, "")
}

func (s *OrderService) Cancel(uid, id int64) (domain.Order, error) {
	return s.Apply(uid, id, domain.ActionCancel, "")
}
