package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID                 int             `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Category           string          `json:"category"` // Category slug
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage float64         `json:"discountPercentage,omitempty"`
	Rating             float64         `json:"rating"`
	Stock              int             `json:"stock"`
	Brand              string          `json:"brand,omitempty"`
	Thumbnail          string          `json:"thumbnail"`
	Images             []string        `json:"images,omitempty"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductPage is the envelope returned by every product list endpoint
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"` // Total products matching the request
	Skip     int       `json:"skip"`  // Offset of the first product
	Limit    int       `json:"limit"` // Products per page
}
