package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// Variant is a purchasable SKU joined with the product fields the cart and
// checkout read. The core never creates or deletes variants.
type Variant struct {
	ID                string           `json:"id"`
	ProductID         string           `json:"productId"`
	ProductTitle      string           `json:"productTitle"`
	ProductSlug       string           `json:"productSlug"`
	ProductStatus     ProductStatus    `json:"productStatus"`
	ProductDeleted    bool             `json:"-"`
	Title             string           `json:"title"`
	SKU               string           `json:"sku"`
	Price             decimal.Decimal  `json:"price"`
	CompareAtPrice    *decimal.Decimal `json:"compareAtPrice,omitempty"`
	InventoryQuantity int              `json:"inventoryQuantity"`
	ImageURL          string           `json:"imageUrl,omitempty"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Live reports whether the variant can be put in a cart or ordered.
func (v Variant) Live() bool {
	return v.ProductStatus == ProductStatusActive && !v.ProductDeleted
}
