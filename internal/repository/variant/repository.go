package variant

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// UpsertInput describes a product + variant pair keyed by slug and SKU.
type UpsertInput struct {
	ProductTitle      string
	ProductSlug       string
	ProductStatus     domain.ProductStatus
	Title             string
	SKU               string
	Price             decimal.Decimal
	CompareAtPrice    *decimal.Decimal
	InventoryQuantity int
	ImageURL          string
}

type Repository interface {
	Get(ctx context.Context, id string) (*domain.Variant, error)
	GetMany(ctx context.Context, ids []string) (map[string]domain.Variant, error)
	Upsert(ctx context.Context, in UpsertInput) (*domain.Variant, error)
}
