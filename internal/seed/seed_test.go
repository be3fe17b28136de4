package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	discountrepo "storefront/internal/repository/discount"
	variantrepo "storefront/internal/repository/variant"
)

type recorder struct {
	settings  []domain.StoreSettings
	variants  []variantrepo.UpsertInput
	discounts []discountrepo.UpsertInput
	err       error
}

func (r *recorder) Save(_ context.Context, s domain.StoreSettings) error {
	r.settings = append(r.settings, s)
	return nil
}

type variantRecorder struct{ *recorder }

func (r variantRecorder) Upsert(_ context.Context, in variantrepo.UpsertInput) (*domain.Variant, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.variants = append(r.variants, in)
	return &domain.Variant{SKU: in.SKU}, nil
}

type discountRecorder struct{ *recorder }

func (r discountRecorder) Upsert(_ context.Context, in discountrepo.UpsertInput) (*domain.DiscountCode, error) {
	r.discounts = append(r.discounts, in)
	return &domain.DiscountCode{Code: in.Code}, nil
}

func TestApply(t *testing.T) {
	rec := &recorder{}
	err := Apply(context.Background(), Stores{Settings: rec, Variants: variantRecorder{rec}, Discounts: discountRecorder{rec}}, nil)
	require.NoError(t, err)

	require.Len(t, rec.settings, 1)
	assert.Equal(t, "9.99", rec.settings[0].FlatShippingRate.StringFixed(2))
	assert.Equal(t, "75.00", rec.settings[0].FreeShippingThreshold.StringFixed(2))

	require.Len(t, rec.variants, len(Variants))
	for _, v := range rec.variants {
		assert.NotEmpty(t, v.ProductStatus, v.SKU)
	}

	codes := make([]string, 0, len(rec.discounts))
	for _, d := range rec.discounts {
		codes = append(codes, d.Code)
	}
	assert.ElementsMatch(t, []string{"WELCOME10", "SAVE5", "FREESHIP"}, codes)
}

func TestApply_StopsOnVariantError(t *testing.T) {
	rec := &recorder{err: errors.New("db down")}
	err := Apply(context.Background(), Stores{Settings: rec, Variants: variantRecorder{rec}, Discounts: discountRecorder{rec}}, nil)
	require.Error(t, err)
	assert.Empty(t, rec.discounts)
}
