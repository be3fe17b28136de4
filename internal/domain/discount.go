package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixedAmount  DiscountType = "FIXED_AMOUNT"
	DiscountFreeShipping DiscountType = "FREE_SHIPPING"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeShipping:
		return true
	}
	return false
}

type DiscountCode struct {
	ID             string           `json:"id"`
	Code           string           `json:"code"`
	Type           DiscountType     `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount,omitempty"`
	StartsAt       *time.Time       `json:"startsAt,omitempty"`
	EndsAt         *time.Time       `json:"endsAt,omitempty"`
	MaxUses        *int             `json:"maxUses,omitempty"`
	UsedCount      int              `json:"usedCount"`
	Active         bool             `json:"isActive"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// CanonicalCode normalizes a user-entered discount code for lookup.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
