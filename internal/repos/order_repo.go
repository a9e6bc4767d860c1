package repos

import (
	"database/sql"
	"errors"

	"secondhand/internal/domain"

	"github.com/jmoiron/sqlx"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = `id, order_no, product_id, product_name, product_image, price, quantity, total_amount,
  status, buyer_id, seller_id, remark, payment_method, created_at,
  paid_at, shipped_at, completed_at, cancelled_at`

// stamp names the timestamp column written when an order enters a status.
var stamp = map[domain.OrderStatus]string{
	domain.OrderPaid:      "paid_at",
	domain.OrderShipped:   "shipped_at",
	domain.OrderCompleted: "completed_at",
	domain.OrderCancelled: "cancelled_at",
}

// Create reserves stock and inserts the order in one transaction.
// o.ID and o.CreatedAt are filled in on success.
func (r *OrderRepo) Create(o *domain.Order) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := Now()
	if err := reserve(tx, o.ProductID, o.Quantity, now); err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if err := tx.Get(&o.ID, tx.Rebind(`
		INSERT INTO orders
		  (order_no, product_id, product_name, product_image, price, quantity, total_amount,
		   status, buyer_id, seller_id, remark, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		RETURNING id
	`), o.OrderNo, o.ProductID, o.ProductName, o.ProductImage, o.Price, o.Quantity, o.TotalAmount,
		string(o.Status), o.BuyerID, o.SellerID, o.Remark, now, now); err != nil {
		if isUnique(err) {
			return ErrDuplicate
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	o.CreatedAt = now
	return nil
}

func (r *OrderRepo) Get(id int64) (domain.Order, error) {
	var o domain.Order
	err := r.db.Get(&o, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	return o, err
}

// OrderFilter selects orders by party and, optionally, status.
type OrderFilter struct {
	BuyerID  int64
	SellerID int64
	Status   domain.OrderStatus
}

func (r *OrderRepo) List(f OrderFilter, limit, offset int) ([]domain.Order, int64, error) {
	where := `1=1`
	args := []any{}
	if f.BuyerID != 0 {
		where += ` AND buyer_id = ?`
		args = append(args, f.BuyerID)
	}
	if f.SellerID != 0 {
		where += ` AND seller_id = ?`
		args = append(args, f.SellerID)
	}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}

	var total int64
	if err := r.db.Get(&total, r.db.Rebind(`SELECT COUNT(*) FROM orders WHERE `+where), args...); err != nil {
		return nil, 0, err
	}
	out := []domain.Order{}
	err := r.db.Select(&out, r.db.Rebind(`
		SELECT `+orderCols+`
		FROM orders
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), append(args, limit, offset)...)
	return out, total, err
}

// Transition moves an order along t only if it is still in t.From.
// Cancelling returns the reserved quantity to stock in the same transaction.
// paymentMethod is recorded when non-empty.
func (r *OrderRepo) Transition(id int64, t domain.Transition, paymentMethod string) (domain.Order, error) {
	col, ok := stamp[t.To]
	if !ok {
		return domain.Order{}, domain.ErrIllegalTransition
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := Now()
	q := `UPDATE orders SET status = ?, ` + col + ` = ?, updated_at = ?`
	args := []any{string(t.To), now, now}
	if paymentMethod != "" {
		q += `, payment_method = ?`
		args = append(args, paymentMethod)
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(t.From))

	res, err := tx.Exec(tx.Rebind(q), args...)
	if err != nil {
		return domain.Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Order{}, ErrStatusConflict
	}

	var o domain.Order
	if err := tx.Get(&o, tx.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id); err != nil {
		return domain.Order{}, err
	}
	if t.To == domain.OrderCancelled {
		if err := release(tx, o.ProductID, o.Quantity, now); err != nil {
			return domain.Order{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
