package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// UpsertInput creates or replaces a discount code keyed by its canonical code.
type UpsertInput struct {
	Code           string
	Type           domain.DiscountType
	Value          decimal.Decimal
	MinOrderAmount *decimal.Decimal
	StartsAt       *time.Time
	EndsAt         *time.Time
	MaxUses        *int
	Active         bool
}

type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error)
	GetByID(ctx context.Context, id string) (*domain.DiscountCode, error)
	Upsert(ctx context.Context, in UpsertInput) (*domain.DiscountCode, error)
}
