package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"secondhand/internal/domain"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// Session is what login and register return.
type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (c *Client) Login(ctx context.Context, in LoginRequest, opts ...CallOption) (Session, error) {
	return call[Session](ctx, c, request{method: http.MethodPost, path: "/auth/login", body: in}, opts)
}

func (c *Client) Register(ctx context.Context, in RegisterRequest, opts ...CallOption) (Session, error) {
	return call[Session](ctx, c, request{method: http.MethodPost, path: "/auth/register", body: in}, opts)
}

func (c *Client) Me(ctx context.Context, opts ...CallOption) (domain.User, error) {
	return call[domain.User](ctx, c, request{method: http.MethodGet, path: "/auth/me"}, opts)
}

func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordRequest, opts ...CallOption) error {
	_, err := call[struct{}](ctx, c, request{method: http.MethodPost, path: "/auth/change-password", body: in}, opts)
	return err
}

func (c *Client) Logout(ctx context.Context, opts ...CallOption) error {
	_, err := call[struct{}](ctx, c, request{method: http.MethodPost, path: "/auth/logout"}, opts)
	return err
}

func (c *Client) Categories(ctx context.Context, opts ...CallOption) ([]domain.CategoryInfo, error) {
	return call[[]domain.CategoryInfo](ctx, c, request{method: http.MethodGet, path: "/categories"}, opts)
}

type ProductQuery struct {
	Keyword  string
	Category domain.Category
	SellerID int64
	Page     int
	PageSize int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.Category != "" {
		v.Set("category", string(q.Category))
	}
	if q.SellerID > 0 {
		v.Set("sellerId", strconv.FormatInt(q.SellerID, 10))
	}
	paging(v, q.Page, q.PageSize)
	return v
}

func paging(v url.Values, page, size int) {
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		v.Set("pageSize", strconv.Itoa(size))
	}
}

func (c *Client) Products(ctx context.Context, q ProductQuery, opts ...CallOption) (domain.Page[domain.Product], error) {
	return call[domain.Page[domain.Product]](ctx, c, request{method: http.MethodGet, path: "/products", query: q.values()}, opts)
}

func (c *Client) Product(ctx context.Context, id int64, opts ...CallOption) (domain.Product, error) {
	return call[domain.Product](ctx, c, request{method: http.MethodGet, path: "/products/" + strconv.FormatInt(id, 10)}, opts)
}

func (c *Client) MyProducts(ctx context.Context, page, pageSize int, opts ...CallOption) (domain.Page[domain.Product], error) {
	v := url.Values{}
	paging(v, page, pageSize)
	return call[domain.Page[domain.Product]](ctx, c, request{method: http.MethodGet, path: "/products/my", query: v}, opts)
}

// ProductInput is the body of create and update. Nil fields are left
// unchanged on update.
type ProductInput struct {
	Name        *string   `json:"name,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Stock       *int      `json:"stock,omitempty"`
	Description *string   `json:"description,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	Status      *string   `json:"status,omitempty"`
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput, opts ...CallOption) (domain.Product, error) {
	return call[domain.Product](ctx, c, request{method: http.MethodPost, path: "/products", body: in}, opts)
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput, opts ...CallOption) (domain.Product, error) {
	return call[domain.Product](ctx, c, request{method: http.MethodPut, path: "/products/" + strconv.FormatInt(id, 10), body: in}, opts)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64, opts ...CallOption) error {
	_, err := call[struct{}](ctx, c, request{method: http.MethodDelete, path: "/products/" + strconv.FormatInt(id, 10)}, opts)
	return err
}

// UploadImage sends r as the multipart field "file" and returns the public URL.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader, opts ...CallOption) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err == nil {
		_, err = io.Copy(part, r)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return "", c.failed(ctx, collect(opts), &Error{Kind: KindConfig, Message: MsgConfig, Path: "/upload/image", Err: err})
	}
	out, err := call[struct {
		URL string `json:"url"`
	}](ctx, c, request{method: http.MethodPost, path: "/upload/image", raw: &buf, contentType: mw.FormDataContentType()}, opts)
	return out.URL, err
}

type CreateOrderRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Remark    string `json:"remark,omitempty"`
}

type OrderQuery struct {
	Status   domain.OrderStatus
	Page     int
	PageSize int
}

func (q OrderQuery) values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	paging(v, q.Page, q.PageSize)
	return v
}

func (c *Client) CreateOrder(ctx context.Context, in CreateOrderRequest, opts ...CallOption) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodPost, path: "/orders", body: in}, opts)
}

func (c *Client) Order(ctx context.Context, id int64, opts ...CallOption) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodGet, path: orderPath(id, "")}, opts)
}

// Purchases lists the caller's orders as buyer.
func (c *Client) Purchases(ctx context.Context, q OrderQuery, opts ...CallOption) (domain.Page[domain.Order], error) {
	return call[domain.Page[domain.Order]](ctx, c, request{method: http.MethodGet, path: "/orders/my", query: q.values()}, opts)
}

// Sales lists the caller's orders as seller.
func (c *Client) Sales(ctx context.Context, q OrderQuery, opts ...CallOption) (domain.Page[domain.Order], error) {
	return call[domain.Page[domain.Order]](ctx, c, request{method: http.MethodGet, path: "/orders/sales", query: q.values()}, opts)
}

func (c *Client) PayOrder(ctx context.Context, id int64, method string, opts ...CallOption) (domain.Order, error) {
	body := struct {
		OrderID       int64  `json:"orderId"`
		PaymentMethod string `json:"paymentMethod"`
	}{id, method}
	return call[domain.Order](ctx, c, request{method: http.MethodPost, path: "/orders/pay", body: body}, opts)
}

func (c *Client) ShipOrder(ctx context.Context, id int64, opts ...CallOption) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodPost, path: orderPath(id, "ship")}, opts)
}

func (c *Client) CompleteOrder(ctx context.Context, id int64, opts ...CallOption) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodPost, path: orderPath(id, "complete")}, opts)
}

func (c *Client) CancelOrder(ctx context.Context, id int64, opts ...CallOption) (domain.Order, error) {
	return call[domain.Order](ctx, c, request{method: http.MethodPost, path: orderPath(id, "cancel")}, opts)
}

// Transition runs the backend call for a; pay needs a payment method.
func (c *Client) Transition(ctx context.Context, id int64, a domain.Action, method string, opts ...CallOption) (domain.Order, error) {
	switch a {
	case domain.ActionPay:
		return c.PayOrder(ctx, id, method, opts...)
	case domain.ActionShip:
		return c.ShipOrder(ctx, id, opts...)
	case domain.ActionComplete:
		return c.CompleteOrder(ctx, id, opts...)
	case domain.ActionCancel:
		return c.CancelOrder(ctx, id, opts...)
	}
	return domain.Order{}, fmt.Errorf("transition %q: %w", a, domain.ErrUnknownAction)
}

func orderPath(id int64, action string) string {
	p := "/orders/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}
