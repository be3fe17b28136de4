package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	discountrepo "storefront/internal/repository/discount"
	variantrepo "storefront/internal/repository/variant"
)

type settingsWriter interface {
	Save(ctx context.Context, s domain.StoreSettings) error
}

type variantWriter interface {
	Upsert(ctx context.Context, in variantrepo.UpsertInput) (*domain.Variant, error)
}

type discountWriter interface {
	Upsert(ctx context.Context, in discountrepo.UpsertInput) (*domain.DiscountCode, error)
}

// Stores groups the writers seed data goes through.
type Stores struct {
	Settings  settingsWriter
	Variants  variantWriter
	Discounts discountWriter
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

// Variants is the demo catalog.
var Variants = []variantrepo.UpsertInput{
	{ProductTitle: "Classic Tee", ProductSlug: "classic-tee", Title: "Small", SKU: "TEE-CLASSIC-S", Price: money("24.99"), InventoryQuantity: 25},
	{ProductTitle: "Classic Tee", ProductSlug: "classic-tee", Title: "Medium", SKU: "TEE-CLASSIC-M", Price: money("24.99"), InventoryQuantity: 40},
	{ProductTitle: "Classic Tee", ProductSlug: "classic-tee", Title: "Large", SKU: "TEE-CLASSIC-L", Price: money("24.99"), CompareAtPrice: moneyPtr("29.99"), InventoryQuantity: 3},
	{ProductTitle: "Canvas Tote", ProductSlug: "canvas-tote", Title: "Natural", SKU: "TOTE-NATURAL", Price: money("49.99"), InventoryQuantity: 12},
	{ProductTitle: "Ceramic Mug", ProductSlug: "ceramic-mug", Title: "Default", SKU: "MUG-WHITE", Price: money("12.50"), InventoryQuantity: 60},
	{ProductTitle: "Limited Print", ProductSlug: "limited-print", Title: "A3", SKU: "PRINT-A3", Price: money("80.00"), InventoryQuantity: 1},
	{ProductTitle: "Winter Hoodie", ProductSlug: "winter-hoodie", Title: "One size", SKU: "HOODIE-OS", Price: money("59.00"), InventoryQuantity: 8, ProductStatus: domain.ProductStatusDraft},
}

// Discounts are the demo codes.
var Discounts = []discountrepo.UpsertInput{
	{Code: "WELCOME10", Type: domain.DiscountPercentage, Value: money("10"), Active: true},
	{Code: "SAVE5", Type: domain.DiscountFixedAmount, Value: money("5.00"), MinOrderAmount: moneyPtr("25.00"), Active: true},
	{Code: "FREESHIP", Type: domain.DiscountFreeShipping, Value: decimal.Zero, Active: true},
}

// Apply inserts demo data for manual testing. It is idempotent: every
// write is an upsert keyed by a natural key.
func Apply(ctx context.Context, stores Stores, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	if err := stores.Settings.Save(ctx, domain.DefaultStoreSettings()); err != nil {
		return fmt.Errorf("save store settings: %w", err)
	}

	for _, v := range Variants {
		if v.ProductStatus == "" {
			v.ProductStatus = domain.ProductStatusActive
		}
		if _, err := stores.Variants.Upsert(ctx, v); err != nil {
			return fmt.Errorf("upsert variant %s: %w", v.SKU, err)
		}
	}

	for _, d := range Discounts {
		if _, err := stores.Discounts.Upsert(ctx, d); err != nil {
			return fmt.Errorf("upsert discount %s: %w", d.Code, err)
		}
	}

	logger.Info("seed applied", zap.Int("variants", len(Variants)), zap.Int("discounts", len(Discounts)))
	return nil
}
