package repos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"secondhand/internal/domain"

	"github.com/jmoiron/sqlx"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// ProductFilter narrows a listing. Empty fields do not filter.
type ProductFilter struct {
	Keyword  string
	Category domain.Category
	SellerID int64
	Statuses []domain.ProductStatus
}

const productCols = `
    p.id, p.name, p.category, p.price, p.stock, p.description, p.images_json,
    p.seller_id, u.username AS seller_name, p.status, p.created_at, p.updated_at`

func (f ProductFilter) where() (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	if q := strings.ToLower(strings.TrimSpace(f.Keyword)); q != "" {
		where = append(where, `(LOWER(p.name) LIKE ? OR LOWER(p.description) LIKE ?)`)
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	if f.Category != "" {
		where = append(where, `p.category = ?`)
		args = append(args, string(f.Category))
	}
	if f.SellerID != 0 {
		where = append(where, `p.seller_id = ?`)
		args = append(args, f.SellerID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, `p.status IN (`+strings.Join(marks, ",")+`)`)
	}
	return strings.Join(where, " AND "), args
}

// List returns one page of products, newest first, plus the total match count.
func (r *ProductRepo) List(f ProductFilter, limit, offset int) ([]domain.Product, int64, error) {
	where, args := f.where()

	var total int64
	if err := r.db.Get(&total, r.db.Rebind(`SELECT COUNT(*) FROM products p WHERE `+where), args...); err != nil {
		return nil, 0, err
	}

	out := []domain.Product{}
	q := `SELECT ` + productCols + `
  FROM products p
  JOIN users u ON u.id = p.seller_id
  WHERE ` + where + `
  ORDER BY p.created_at DESC, p.id DESC
  LIMIT ? OFFSET ?`
	if err := r.db.Select(&out, r.db.Rebind(q), append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].DecodeImages()
	}
	return out, total, nil
}

func (r *ProductRepo) Get(id int64) (domain.Product, error) {
	return getProduct(r.db, id)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.Queryer
	Rebind(string) string
}

func getProduct(q queryer, id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.Get(q, &p, q.Rebind(`SELECT `+productCols+`
  FROM products p
  JOIN users u ON u.id = p.seller_id
  WHERE p.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	p.DecodeImages()
	return p, nil
}

func encodeImages(images []string) string {
	if images == nil {
		images = []string{}
	}
	b, _ := json.Marshal(images)
	return string(b)
}

// Create inserts p and fills in its id and timestamps.
func (r *ProductRepo) Create(p *domain.Product) error {
	now := Now()
	err := r.db.Get(&p.ID, r.db.Rebind(`
		INSERT INTO products(seller_id,name,category,price,stock,description,images_json,status,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		RETURNING id
	`), p.SellerID, p.Name, string(p.Category), p.Price, p.Stock, p.Description, encodeImages(p.Images), string(p.Status), now, now)
	if err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Update rewrites the editable fields of a product owned by p.SellerID.
func (r *ProductRepo) Update(p *domain.Product) error {
	now := Now()
	res, err := r.db.Exec(r.db.Rebind(`
		UPDATE products
		SET name = ?, category = ?, price = ?, stock = ?, description = ?, images_json = ?, status = ?, updated_at = ?
		WHERE id = ? AND seller_id = ?
	`), p.Name, string(p.Category), p.Price, p.Stock, p.Description, encodeImages(p.Images), string(p.Status), now, p.ID, p.SellerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// HasOrders reports whether any order references the product.
func (r *ProductRepo) HasOrders(id int64) (bool, error) {
	var n int
	err := r.db.Get(&n, r.db.Rebind(`SELECT COUNT(*) FROM orders WHERE product_id = ?`), id)
	return n > 0, err
}

func (r *ProductRepo) Delete(id, sellerID int64) error {
	res, err := r.db.Exec(r.db.Rebind(`DELETE FROM products WHERE id = ? AND seller_id = ?`), id, sellerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// reserve takes qty units from stock inside tx; the product must be on sale
// with enough stock. Reaching zero marks it sold out.
func reserve(tx *sqlx.Tx, productID int64, qty int, now string) error {
	res, err := tx.Exec(tx.Rebind(`
		UPDATE products
		SET stock = stock - ?,
		    status = CASE WHEN stock - ? = 0 THEN 'sold_out' ELSE status END,
		    updated_at = ?
		WHERE id = ? AND status = 'on_sale' AND stock >= ?
	`), qty, qty, now, productID, qty)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// release returns qty units to stock; a sold-out product goes back on sale.
func release(tx *sqlx.Tx, productID int64, qty int, now string) error {
	_, err := tx.Exec(tx.Rebind(`
		UPDATE products
		SET stock = stock + ?,
		    status = CASE WHEN status = 'sold_out' THEN 'on_sale' ELSE status END,
		    updated_at = ?
		WHERE id = ?
	`), qty, now, productID)
	return err
}
