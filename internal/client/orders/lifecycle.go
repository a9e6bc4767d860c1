// Package orders drives order actions from the client side.
//
// Local checks only decide whether a call is worth making. The order the
// server returns always replaces whatever the client held.
package orders

import (
	"context"
	"errors"
	"math"

	"secondhand/internal/client/api"
	"secondhand/internal/client/session"
	"secondhand/internal/domain"
	"secondhand/internal/validate"
)

var (
	ErrNotSignedIn        = errors.New("sign in first")
	ErrNotOnSale          = errors.New("product is not on sale")
	ErrInsufficientStock  = errors.New("not enough stock")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 999")
	ErrOwnProduct         = errors.New("cannot buy your own product")
	ErrUnsupportedPayment = errors.New("unsupported payment method")
)

// Quote is a display-only total; the created order carries the real one.
type Quote struct {
	Total    float64
	Advisory bool
}

type Lifecycle struct {
	client *api.Client
	store  session.Store
}

func NewLifecycle(client *api.Client) *Lifecycle {
	return &Lifecycle{client: client, store: client.Store()}
}

func (l *Lifecycle) Quote(p domain.Product, qty int) Quote {
	return Quote{Total: math.Round(p.Price*float64(qty)*100) / 100, Advisory: true}
}

func (l *Lifecycle) me() (*domain.User, error) {
	u, ok := l.store.User()
	if !ok {
		return nil, ErrNotSignedIn
	}
	return u, nil
}

// Create checks what the client can see, then asks the server once.
func (l *Lifecycle) Create(ctx context.Context, p domain.Product, qty int, remark string) (domain.Order, error) {
	u, err := l.me()
	if err != nil {
		return domain.Order{}, err
	}
	switch {
	case !validate.Quantity(qty):
		return domain.Order{}, ErrInvalidQuantity
	case p.SellerID == u.ID:
		return domain.Order{}, ErrOwnProduct
	case p.Status != domain.ProductOnSale:
		return domain.Order{}, ErrNotOnSale
	case p.Stock < qty:
		return domain.Order{}, ErrInsufficientStock
	}
	return l.client.CreateOrder(ctx, api.CreateOrderRequest{ProductID: p.ID, Quantity: qty, Remark: remark})
}

func (l *Lifecycle) Get(ctx context.Context, id int64) (domain.Order, error) {
	return l.client.Order(ctx, id)
}

func (l *Lifecycle) Pay(ctx context.Context, o domain.Order, method string) (domain.Order, error) {
	m, ok := validate.PaymentMethod(method)
	if !ok {
		return o, ErrUnsupportedPayment
	}
	return l.Apply(ctx, o, domain.ActionPay, m)
}

func (l *Lifecycle) Ship(ctx context.Context, o domain.Order) (domain.Order, error) {
	return l.Apply(ctx, o, domain.ActionShip, "")
}

func (l *Lifecycle) Complete(ctx context.Context, o domain.Order) (domain.Order, error) {
	return l.Apply(ctx, o, domain.ActionComplete, "")
}

func (l *Lifecycle) Cancel(ctx context.Context, o domain.Order) (domain.Order, error) {
	return l.Apply(ctx, o, domain.ActionCancel, "")
}

// Allowed reports whether the signed-in user may perform a on o right now.
func (l *Lifecycle) Allowed(o domain.Order, a domain.Action) error {
	u, err := l.me()
	if err != nil {
		return err
	}
	_, err = domain.Next(o.Status, a, o.ActorOf(u.ID))
	return err
}

// Apply runs a on o. An action the local state machine rejects returns a
// *domain.TransitionError without calling the server; on failure o is
// returned unchanged.
func (l *Lifecycle) Apply(ctx context.Context, o domain.Order, a domain.Action, method string) (domain.Order, error) {
	if err := l.Allowed(o, a); err != nil {
		return o, err
	}
	updated, err := l.client.Transition(ctx, o.ID, a, method)
	if err != nil {
		return o, err
	}
	return updated, nil
}
