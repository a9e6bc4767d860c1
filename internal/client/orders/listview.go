package orders

import (
	"context"
	"errors"
	"sync"

	"secondhand/internal/client/api"
	"secondhand/internal/domain"
)

type Role int

const (
	// Purchases lists the user's orders as buyer.
	Purchases Role = iota
	// Sales lists the user's orders as seller.
	Sales
)

func (r Role) actor() domain.Actor {
	if r == Sales {
		return domain.ActorSeller
	}
	return domain.ActorBuyer
}

var (
	ErrViewClosed = errors.New("order view is closed")
	ErrNoSuchRow  = errors.New("order is not in this view")
)

type Row struct {
	Order domain.Order
	// Provisional is set while an action on the row is in flight.
	Provisional bool
}

// ListView is one page of orders in a role. Results that arrive after
// Close, or after a newer Refresh started, are dropped.
type ListView struct {
	lc   *Lifecycle
	role Role

	mu     sync.Mutex
	query  api.OrderQuery
	rows   []Row
	total  int64
	gen    uint64
	closed bool
}

func NewListView(lc *Lifecycle, role Role, q api.OrderQuery) *ListView {
	return &ListView{lc: lc, role: role, query: q}
}

// SetQuery changes the filter or page; call Refresh to load it.
func (v *ListView) SetQuery(q api.OrderQuery) {
	v.mu.Lock()
	v.query = q
	v.mu.Unlock()
}

func (v *ListView) fetch(ctx context.Context, q api.OrderQuery) (domain.Page[domain.Order], error) {
	if v.role == Sales {
		return v.lc.client.Sales(ctx, q)
	}
	return v.lc.client.Purchases(ctx, q)
}

func (v *ListView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	v.gen++
	gen, q := v.gen, v.query
	v.mu.Unlock()

	page, err := v.fetch(ctx, q)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.gen {
		return nil
	}
	if err != nil {
		return err
	}
	v.rows = make([]Row, len(page.List))
	for i, o := range page.List {
		v.rows[i] = Row{Order: o}
	}
	v.total = page.Total
	return nil
}

func (v *ListView) find(id int64) int {
	for i := range v.rows {
		if v.rows[i].Order.ID == id {
			return i
		}
	}
	return -1
}

// Apply runs action a on the listed order id. Actions this view's role owns
// reconcile the row from the server's record; any other action reloads the
// whole page. On failure the row keeps what the server last reported.
func (v *ListView) Apply(ctx context.Context, id int64, a domain.Action, method string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	i := v.find(id)
	if i < 0 {
		v.mu.Unlock()
		return ErrNoSuchRow
	}
	v.rows[i].Provisional = true
	current := v.rows[i].Order
	v.mu.Unlock()

	var (
		updated domain.Order
		err     error
	)
	if a == domain.ActionPay {
		updated, err = v.lc.Pay(ctx, current, method)
	} else {
		updated, err = v.lc.Apply(ctx, current, a, "")
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return err
	}
	i = v.find(id)
	if err != nil {
		if i >= 0 {
			v.rows[i].Provisional = false
		}
		v.mu.Unlock()
		return err
	}
	if t, ok := domain.TransitionFor(a); ok && t.Actor == v.role.actor() && i >= 0 {
		if v.query.Status != "" && updated.Status != v.query.Status {
			v.rows = append(v.rows[:i], v.rows[i+1:]...)
			v.total--
		} else {
			v.rows[i] = Row{Order: updated}
		}
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()
	return v.Refresh(ctx)
}

// Close stops the view; later results are discarded.
func (v *ListView) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

// Snapshot copies the rows for rendering.
func (v *ListView) Snapshot() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Row(nil), v.rows...)
}

func (v *ListView) Total() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total
}
