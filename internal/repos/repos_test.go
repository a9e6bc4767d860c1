package repos_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"secondhand/internal/domain"
	"secondhand/internal/repos"
)

func openTest(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func userID(t *testing.T, db *sqlx.DB, name string) int64 {
	t.Helper()
	a, err := repos.NewUserRepo(db).ByUsername(name)
	if err != nil {
		t.Fatal(err)
	}
	return a.ID
}

func TestSeedIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")
	count := func() int64 {
		db, err := repos.OpenDB(path)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		_, n, err := repos.NewProductRepo(db).List(repos.ProductFilter{}, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		return n
	}
	first := count()
	if first == 0 {
		t.Fatal("expected seeded products")
	}
	if again := count(); again != first {
		t.Fatalf("reopening re-seeded: %d -> %d", first, again)
	}
}

func TestProductFilters(t *testing.T) {
	db := openTest(t)
	p := repos.NewProductRepo(db)

	list, total, err := p.List(repos.ProductFilter{Keyword: "CAMERA"}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(list) != 1 || list[0].Name != "Film camera" {
		t.Fatalf("keyword filter: total=%d list=%+v", total, list)
	}
	if list[0].SellerName != "bob" || len(list[0].Images) != 1 {
		t.Fatalf("join/images not populated: %+v", list[0])
	}

	_, total, err = p.List(repos.ProductFilter{Category: domain.CategoryBooks}, 10, 0)
	if err != nil || total != 1 {
		t.Fatalf("category filter: total=%d err=%v", total, err)
	}

	page, total, err := p.List(repos.ProductFilter{}, 2, 2)
	if err != nil || len(page) != 2 || total != 4 {
		t.Fatalf("paging: len=%d total=%d err=%v", len(page), total, err)
	}
}

func TestProductCRUDOwnership(t *testing.T) {
	db := openTest(t)
	p := repos.NewProductRepo(db)
	alice := userID(t, db, "alice")
	bob := userID(t, db, "bob")

	prod := domain.Product{
		Name: "Bike", Category: domain.CategorySports, Price: 80, Stock: 1,
		SellerID: alice, Status: domain.ProductOnSale, Images: []string{"/media/a.jpg"},
	}
	if err := p.Create(&prod); err != nil {
		t.Fatal(err)
	}
	got, err := p.Get(prod.ID)
	if err != nil || got.Name != "Bike" || got.Images[0] != "/media/a.jpg" {
		t.Fatalf("get: %+v %v", got, err)
	}

	prod.SellerID = bob
	prod.Price = 70
	if err := p.Update(&prod); !errors.Is(err, repos.ErrNotFound) {
		t.Fatalf("update by non-owner: want ErrNotFound, got %v", err)
	}
	if err := p.Delete(prod.ID, bob); !errors.Is(err, repos.ErrNotFound) {
		t.Fatalf("delete by non-owner: want ErrNotFound, got %v", err)
	}
	if err := p.Delete(prod.ID, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(prod.ID); !errors.Is(err, repos.ErrNotFound) {
		t.Fatalf("deleted product still readable: %v", err)
	}
}

func newOrder(t *testing.T, db *sqlx.DB, productID, buyer int64, qty int, no string) domain.Order {
	t.Helper()
	prod, err := repos.NewProductRepo(db).Get(productID)
	if err != nil {
		t.Fatal(err)
	}
	return domain.Order{
		OrderNo: no, ProductID: prod.ID, ProductName: prod.Name, Price: prod.Price,
		Quantity: qty, TotalAmount: prod.Price * float64(qty), BuyerID: buyer, SellerID: prod.SellerID,
	}
}

func TestOrderReservesAndReleasesStock(t *testing.T) {
	db := openTest(t)
	orders := repos.NewOrderRepo(db)
	products := repos.NewProductRepo(db)
	alice := userID(t, db, "alice")

	// product 1 is the seeded camera with stock 3
	o := newOrder(t, db, 1, alice, 3, "ORD1")
	if err := orders.Create(&o); err != nil {
		t.Fatal(err)
	}
	p, _ := products.Get(1)
	if p.Stock != 0 || p.Status != domain.ProductSoldOut {
		t.Fatalf("after reserving all stock: stock=%d status=%s", p.Stock, p.Status)
	}

	o2 := newOrder(t, db, 1, alice, 1, "ORD2")
	if err := orders.Create(&o2); !errors.Is(err, repos.ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}

	cancel, _ := domain.TransitionFor(domain.ActionCancel)
	got, err := orders.Transition(o.ID, cancel, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OrderCancelled || got.CancelledAt == "" {
		t.Fatalf("cancel: %+v", got)
	}
	p, _ = products.Get(1)
	if p.Stock != 3 || p.Status != domain.ProductOnSale {
		t.Fatalf("after cancel: stock=%d status=%s", p.Stock, p.Status)
	}
}

func TestOrderTransitionConflict(t *testing.T) {
	db := openTest(t)
	orders := repos.NewOrderRepo(db)
	alice := userID(t, db, "alice")

	o := newOrder(t, db, 4, alice, 1, "ORD3")
	if err := orders.Create(&o); err != nil {
		t.Fatal(err)
	}
	pay, _ := domain.TransitionFor(domain.ActionPay)
	got, err := orders.Transition(o.ID, pay, "alipay")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OrderPaid || got.PaymentMethod != "alipay" || got.PaidAt == "" {
		t.Fatalf("pay: %+v", got)
	}
	if _, err := orders.Transition(o.ID, pay, "alipay"); !errors.Is(err, repos.ErrStatusConflict) {
		t.Fatalf("second pay: want ErrStatusConflict, got %v", err)
	}

	buys, total, err := orders.List(repos.OrderFilter{BuyerID: alice}, 10, 0)
	if err != nil || total != 1 || buys[0].ID != o.ID {
		t.Fatalf("buyer list: %+v total=%d err=%v", buys, total, err)
	}
	sales, total, err := orders.List(repos.OrderFilter{SellerID: o.SellerID, Status: domain.OrderPending}, 10, 0)
	if err != nil || total != 0 || len(sales) != 0 {
		t.Fatalf("seller pending list should be empty: %+v", sales)
	}
}

func TestUserPasswordBumpsTokenVersion(t *testing.T) {
	db := openTest(t)
	users := repos.NewUserRepo(db)

	a, err := users.Create("dave", "dave@x.test", "", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := users.Create("DAVE2", "dave@x.test", "", "hash"); !errors.Is(err, repos.ErrDuplicate) {
		t.Fatalf("duplicate email: want ErrDuplicate, got %v", err)
	}
	if which, _ := users.Taken("Dave", "other@x.test", ""); which != "username" {
		t.Fatalf("Taken = %q", which)
	}
	v, err := users.SetPassword(a.ID, "hash2")
	if err != nil || v != 1 {
		t.Fatalf("SetPassword v=%d err=%v", v, err)
	}
	got, _ := users.ByID(a.ID)
	if got.Hash != "hash2" || got.TokenVersion != 1 {
		t.Fatalf("account after change: %+v", got)
	}
}

func TestTokenRevocation(t *testing.T) {
	db := openTest(t)
	tokens := repos.NewTokenRepo(db)
	if err := tokens.Revoke("j1", "2000-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := tokens.Revoke("j1", "2000-01-01T00:00:00Z"); err != nil {
		t.Fatalf("revoking twice should be a no-op: %v", err)
	}
	if ok, _ := tokens.Revoked("j1"); !ok {
		t.Fatal("j1 should be revoked")
	}
	n, err := tokens.Purge(repos.Now())
	if err != nil || n != 1 {
		t.Fatalf("purge n=%d err=%v", n, err)
	}
}

func TestTransitionPostgresConflict(t *testing.T) {
	mdb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer mdb.Close()
	db := sqlx.NewDb(mdb, "postgres")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status = \$1, paid_at = \$2, updated_at = \$3, payment_method = \$4 WHERE id = \$5 AND status = \$6`).
		WithArgs("paid", sqlmock.AnyArg(), sqlmock.AnyArg(), "wechat", int64(7), "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	pay, _ := domain.TransitionFor(domain.ActionPay)
	if _, err := repos.NewOrderRepo(db).Transition(7, pay, "wechat"); !errors.Is(err, repos.ErrStatusConflict) {
		t.Fatalf("want ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDriverSelection(t *testing.T) {
	if repos.Driver("postgres://u:p@db/secondhand") != "postgres" {
		t.Fatal("postgres DSN should select lib/pq")
	}
	if repos.Driver("secondhand.db") != "sqlite" || repos.Driver(":memory:") != "sqlite" {
		t.Fatal("paths should select sqlite")
	}
}
