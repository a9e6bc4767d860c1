package services

import (
	"errors"

	"secondhand/internal/domain"
	"secondhand/internal/repos"
)

type CatalogService struct {
	Prods *repos.ProductRepo
}

func NewCatalogService(prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Prods: prods}
}

func (s *CatalogService) Categories() []domain.CategoryInfo {
	out := make([]domain.CategoryInfo, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		out = append(out, domain.CategoryInfo{Key: c, Label: c.Label()})
	}
	return out
}

// ListQuery is a public catalogue search.
type ListQuery struct {
	Keyword  string
	Category domain.Category
	SellerID int64
	Page     int
	PageSize int
}

func offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

// List shows products currently on sale, newest first.
func (s *CatalogService) List(q ListQuery) (domain.Page[domain.Product], error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 12
	}
	list, total, err := s.Prods.List(repos.ProductFilter{
		Keyword:  q.Keyword,
		Category: q.Category,
		SellerID: q.SellerID,
		Statuses: []domain.ProductStatus{domain.ProductOnSale},
	}, q.PageSize, offset(q.Page, q.PageSize))
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.Page[domain.Product]{List: list, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Mine lists every product the seller owns, whatever its status.
func (s *CatalogService) Mine(sellerID int64, page, size int) (domain.Page[domain.Product], error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 12
	}
	list, total, err := s.Prods.List(repos.ProductFilter{SellerID: sellerID}, size, offset(page, size))
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.Page[domain.Product]{List: list, Total: total, Page: page, PageSize: size}, nil
}

func (s *CatalogService) Get(id int64) (domain.Product, error) {
	p, err := s.Prods.Get(id)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.Product{}, NotFound("product not found")
	}
	return p, err
}

// ProductInput is a validated listing.
type ProductInput struct {
	Name        string
	Category    domain.Category
	Price       float64
	Stock       int
	Description string
	Images      []string
}

func (s *CatalogService) Create(sellerID int64, in ProductInput) (domain.Product, error) {
	p := domain.Product{
		Name:        in.Name,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		Description: in.Description,
		Images:      in.Images,
		SellerID:    sellerID,
		Status:      domain.ProductOnSale,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Stock == 0 {
		p.Status = domain.ProductSoldOut
	}
	if err := s.Prods.Create(&p); err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(p.ID)
}

// ProductPatch holds the fields a seller sent; nil means unchanged.
type ProductPatch struct {
	Name        *string
	Category    *domain.Category
	Price       *float64
	Stock       *int
	Description *string
	Images      *[]string
	Status      *domain.ProductStatus
}

func (s *CatalogService) owned(sellerID, id int64) (domain.Product, error) {
	p, err := s.Get(id)
	if err != nil {
		return domain.Product{}, err
	}
	if p.SellerID != sellerID {
		return domain.Product{}, Forbidden("only the seller can modify this product")
	}
	return p, nil
}

func (s *CatalogService) Update(sellerID, id int64, in ProductPatch) (domain.Product, error) {
	p, err := s.owned(sellerID, id)
	if err != nil {
		return domain.Product{}, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Images != nil {
		p.Images = *in.Images
	}
	if in.Status != nil {
		if *in.Status == domain.ProductSoldOut {
			return domain.Product{}, BadRequest("sold_out is set automatically")
		}
		p.Status = *in.Status
	}
	// stock and status stay consistent: no stock is sold out, restocking puts it back on sale
	switch {
	case p.Stock == 0 && p.Status == domain.ProductOnSale:
		p.Status = domain.ProductSoldOut
	case p.Stock > 0 && p.Status == domain.ProductSoldOut:
		p.Status = domain.ProductOnSale
	}
	if err := s.Prods.Update(&p); err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(id)
}

// Delete removes a listing. One that already has orders is taken off sale
// instead so the orders keep their product.
func (s *CatalogService) Delete(sellerID, id int64) (removed bool, err error) {
	p, err := s.owned(sellerID, id)
	if err != nil {
		return false, err
	}
	has, err := s.Prods.HasOrders(id)
	if err != nil {
		return false, err
	}
	if has {
		p.Status = domain.ProductOffSale
		return false, s.Prods.Update(&p)
	}
	return true, s.Prods.Delete(id, sellerID)
}
