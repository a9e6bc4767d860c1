package domain

import "encoding/json"

type Category string

const (
	CategoryClothing    Category = "clothing"
	CategoryElectronics Category = "electronics"
	CategoryShoes       Category = "shoes"
	CategoryStudy       Category = "study"
	CategoryDaily       Category = "daily"
	CategorySports      Category = "sports"
	CategoryBooks       Category = "books"
	CategoryOther       Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryClothing, CategoryElectronics, CategoryShoes, CategoryStudy,
	CategoryDaily, CategorySports, CategoryBooks, CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryClothing:    "Clothing",
	CategoryElectronics: "Electronics",
	CategoryShoes:       "Shoes",
	CategoryStudy:       "Study supplies",
	CategoryDaily:       "Daily goods",
	CategorySports:      "Sports equipment",
	CategoryBooks:       "Books",
	CategoryOther:       "Other",
}

func (c Category) Label() string { return categoryLabels[c] }

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

type CategoryInfo struct {
	Key   Category `json:"key"`
	Label string   `json:"label"`
}

type ProductStatus string

const (
	ProductOnSale  ProductStatus = "on_sale"
	ProductOffSale ProductStatus = "off_sale"
	ProductSoldOut ProductStatus = "sold_out"
)

type Product struct {
	ID          int64         `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Category    Category      `db:"category" json:"category"`
	Price       float64       `db:"price" json:"price"`
	Stock       int           `db:"stock" json:"stock"`
	Description string        `db:"description" json:"description"`
	Images      []string      `db:"-" json:"images"`
	ImagesJSON  string        `db:"images_json" json:"-"`
	SellerID    int64         `db:"seller_id" json:"sellerId"`
	SellerName  string        `db:"seller_name" json:"sellerName"`
	Status      ProductStatus `db:"status" json:"status"`
	CreatedAt   string        `db:"created_at" json:"createdAt"`
	UpdatedAt   string        `db:"updated_at" json:"updatedAt"`
}

// Available reports whether the product can be bought right now.
// Zero stock means unavailable whatever the status says.
func (p Product) Available() bool {
	return p.Stock > 0 && p.Status == ProductOnSale
}

// DecodeImages fills Images from the stored JSON column.
func (p *Product) DecodeImages() {
	p.Images = []string{}
	if p.ImagesJSON == "" {
		return
	}
	_ = json.Unmarshal([]byte(p.ImagesJSON), &p.Images)
}

type Order struct {
	ID            int64       `db:"id" json:"id"`
	OrderNo       string      `db:"order_no" json:"orderNo"`
	ProductID     int64       `db:"product_id" json:"productId"`
	ProductName   string      `db:"product_name" json:"productName"`
	ProductImage  string      `db:"product_image" json:"productImage"`
	Price         float64     `db:"price" json:"price"`
	Quantity      int         `db:"quantity" json:"quantity"`
	TotalAmount   float64     `db:"total_amount" json:"totalAmount"`
	Status        OrderStatus `db:"status" json:"status"`
	BuyerID       int64       `db:"buyer_id" json:"buyerId"`
	SellerID      int64       `db:"seller_id" json:"sellerId"`
	Remark        string      `db:"remark" json:"remark,omitempty"`
	PaymentMethod string      `db:"payment_method" json:"paymentMethod,omitempty"`
	CreatedAt     string      `db:"created_at" json:"createdAt"`
	PaidAt        string      `db:"paid_at" json:"paidAt,omitempty"`
	ShippedAt     string      `db:"shipped_at" json:"shippedAt,omitempty"`
	CompletedAt   string      `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt   string      `db:"cancelled_at" json:"cancelledAt,omitempty"`
}

// Page is the paged list shape shared by product and order listings.
type Page[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// Envelope wraps every API response body.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

const (
	CodeOK      = 0
	CodeSuccess = 200
)
