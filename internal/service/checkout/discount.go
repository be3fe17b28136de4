package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/pricing"
)

// AppliedDiscount is a validated code with its monetary effect on a subtotal.
type AppliedDiscount struct {
	Code         domain.DiscountCode `json:"code"`
	Amount       decimal.Decimal     `json:"amount"`
	FreeShipping bool                `json:"freeShipping"`
}

// ApplyDiscount validates code against subtotal and prices it. It never
// consumes a use; usage is only incremented by a committed checkout.
func (s *Service) ApplyDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (*AppliedDiscount, error) {
	canonical := domain.CanonicalCode(code)
	if canonical == "" {
		return nil, domain.ErrInvalidCode
	}
	d, err := s.discounts.GetByCode(ctx, canonical)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}
	if err := validateDiscount(*d, subtotal, s.now()); err != nil {
		return nil, err
	}
	return &AppliedDiscount{
		Code:         *d,
		Amount:       pricing.DiscountAmount(*d, subtotal),
		FreeShipping: d.Type == domain.DiscountFreeShipping,
	}, nil
}

// validateDiscount applies the checks in order; the first failure wins.
func validateDiscount(d domain.DiscountCode, subtotal decimal.Decimal, now time.Time) error {
	if !d.Active {
		return domain.ErrCodeInactive
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return domain.ErrNotYetActive
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return domain.ErrExpired
	}
	if d.MaxUses != nil && d.UsedCount >= *d.MaxUses {
		return domain.ErrUsageLimitReached
	}
	if d.MinOrderAmount != nil && subtotal.LessThan(*d.MinOrderAmount) {
		return domain.Invalid(domain.ErrMinimumNotMet,
			"order subtotal must be at least "+d.MinOrderAmount.StringFixed(2))
	}
	return nil
}
