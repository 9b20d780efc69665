package domain

import "time"

type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusActive, ProductStatusArchived:
		return true
	}
	return false
}

type Product struct {
	ID          string        `json:"id"`
	SellerID    string        `json:"seller_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	PriceCents  int64         `json:"price_cents"`
	Stock       int           `json:"stock"`
	Status      ProductStatus `json:"status"`
	Version     int           `json:"version"` // optimistic locking
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Orderable reports whether buyers may order or negotiate on the product.
func (p Product) Orderable() bool {
	return p.Status == ProductStatusActive
}

type ProductFilter struct {
	SellerID string
	Category string
	Status   ProductStatus
	Query    string
	Limit    int
	Offset   int
}
