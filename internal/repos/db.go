package repos

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "secondhand/internal/log"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStatusConflict    = errors.New("status changed concurrently")
	ErrDuplicate         = errors.New("duplicate value")
)

// Driver picks the database/sql driver for a DSN: postgres URLs go to lib/pq,
// everything else is treated as a SQLite path.
func Driver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func OpenDB(dsn string) (*sqlx.DB, error) {
	return open(dsn, true)
}

// OpenDBNoSeed opens and migrates without demo data.
func OpenDBNoSeed(dsn string) (*sqlx.DB, error) {
	return open(dsn, false)
}

func open(dsn string, seed bool) (*sqlx.DB, error) {
	driver := Driver(dsn)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one writer; also keeps ":memory:" on a single shared connection
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
			return nil, err
		}
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if seed {
		if err := seedUsers(db); err != nil {
			return nil, err
		}
		if err := seedIfEmpty(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == "postgres" {
		schema = postgresSchema
	}
	_, err := db.Exec(schema)
	return err
}

const sqliteSchema = `
-- Users
CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  phone TEXT UNIQUE,
  avatar TEXT,
  password_hash TEXT NOT NULL,
  token_version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT
);

-- Products
CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  seller_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  category TEXT NOT NULL CHECK (category IN ('clothing','electronics','shoes','study','daily','sports','books','other')),
  price REAL NOT NULL CHECK (price > 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  description TEXT NOT NULL DEFAULT '',
  images_json TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL DEFAULT 'on_sale' CHECK (status IN ('on_sale','off_sale','sold_out')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_seller     ON products(seller_id);
CREATE INDEX IF NOT EXISTS idx_products_category   ON products(category);
CREATE INDEX IF NOT EXISTS idx_products_status     ON products(status);
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_no TEXT NOT NULL UNIQUE,
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  product_name TEXT NOT NULL,
  product_image TEXT NOT NULL DEFAULT '',
  price REAL NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  total_amount REAL NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','paid','shipped','completed','cancelled')),
  buyer_id INTEGER NOT NULL REFERENCES users(id),
  seller_id INTEGER NOT NULL REFERENCES users(id),
  remark TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  paid_at TEXT NOT NULL DEFAULT '',
  shipped_at TEXT NOT NULL DEFAULT '',
  completed_at TEXT NOT NULL DEFAULT '',
  cancelled_at TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_buyer      ON orders(buyer_id);
CREATE INDEX IF NOT EXISTS idx_orders_seller     ON orders(seller_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

-- Revoked bearer tokens (logout)
CREATE TABLE IF NOT EXISTS revoked_tokens(
  jti TEXT PRIMARY KEY,
  expires_at TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users(
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  phone TEXT UNIQUE,
  avatar TEXT,
  password_hash TEXT NOT NULL,
  token_version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS products(
  id BIGSERIAL PRIMARY KEY,
  seller_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  category TEXT NOT NULL CHECK (category IN ('clothing','electronics','shoes','study','daily','sports','books','other')),
  price NUMERIC(12,2) NOT NULL CHECK (price > 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  description TEXT NOT NULL DEFAULT '',
  images_json TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL DEFAULT 'on_sale' CHECK (status IN ('on_sale','off_sale','sold_out')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_seller     ON products(seller_id);
CREATE INDEX IF NOT EXISTS idx_products_category   ON products(category);
CREATE INDEX IF NOT EXISTS idx_products_status     ON products(status);
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at);

CREATE TABLE IF NOT EXISTS orders(
  id BIGSERIAL PRIMARY KEY,
  order_no TEXT NOT NULL UNIQUE,
  product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  product_name TEXT NOT NULL,
  product_image TEXT NOT NULL DEFAULT '',
  price NUMERIC(12,2) NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  total_amount NUMERIC(14,2) NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','paid','shipped','completed','cancelled')),
  buyer_id BIGINT NOT NULL REFERENCES users(id),
  seller_id BIGINT NOT NULL REFERENCES users(id),
  remark TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  paid_at TEXT NOT NULL DEFAULT '',
  shipped_at TEXT NOT NULL DEFAULT '',
  completed_at TEXT NOT NULL DEFAULT '',
  cancelled_at TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_buyer      ON orders(buyer_id);
CREATE INDEX IF NOT EXISTS idx_orders_seller     ON orders(seller_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS revoked_tokens(
  jti TEXT PRIMARY KEY,
  expires_at TEXT NOT NULL
);
`

// Now is the timestamp format stored in every *_at column.
func Now() string { return time.Now().UTC().Format(time.RFC3339) }

// DemoPassword is the password of every seeded account.
const DemoPassword = "Passw0rd!"

// seedUsers ensures the demo accounts exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct{ Username, Email, Phone string }
	users := []u{
		{"alice", "alice@secondhand.test", ""},
		{"bob", "bob@secondhand.test", "+1 555 0100"},
		{"carol", "carol@secondhand.test", ""},
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO users(username,email,phone,password_hash,created_at)
			VALUES(?,?,?,?,?)
			ON CONFLICT(username) DO NOTHING
		`), x.Username, x.Email, nullString(x.Phone), string(h), Now()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var bobID int64
	if err := db.Get(&bobID, db.Rebind(`SELECT id FROM users WHERE username = ?`), "bob"); err != nil {
		return err
	}

	applog.Event("seed.products", map[string]any{"seller": "bob"})

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := Now()
	demo := []struct {
		Name, Category, Desc, Images string
		Price                        float64
		Stock                        int
	}{
		{"Film camera", "electronics", "35mm rangefinder, light seals replaced", `["/media/demo/camera.jpg"]`, 50.00, 3},
		{"Calculus textbook", "books", "8th edition, some highlighting", `["/media/demo/calculus.jpg"]`, 12.50, 1},
		{"Running shoes", "shoes", "Size 42, worn twice", `[]`, 30.00, 1},
		{"Desk lamp", "daily", "LED, three brightness levels", `[]`, 8.00, 5},
	}
	for _, p := range demo {
		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO products(seller_id,name,category,price,stock,description,images_json,status,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,'on_sale',?,?)
		`), bobID, p.Name, p.Category, p.Price, p.Stock, p.Desc, p.Images, now, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUnique reports a unique-constraint violation from either driver.
func isUnique(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
