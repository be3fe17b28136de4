package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

const settingsID = "default"

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context) (domain.StoreSettings, error) {
	var s domain.StoreSettings
	err := r.pool.QueryRow(ctx, `
SELECT store_name, currency, flat_shipping_rate, free_shipping_threshold, tax_rate
FROM store_settings
WHERE id = $1
`, settingsID).Scan(&s.StoreName, &s.Currency, &s.FlatShippingRate, &s.FreeShippingThreshold, &s.TaxRatePercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultStoreSettings(), nil
		}
		return domain.StoreSettings{}, fmt.Errorf("read store settings: %w", err)
	}
	return s, nil
}

func (r *postgresRepo) Save(ctx context.Context, s domain.StoreSettings) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO store_settings (id, store_name, currency, flat_shipping_rate, free_shipping_threshold, tax_rate)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    store_name = EXCLUDED.store_name,
    currency = EXCLUDED.currency,
    flat_shipping_rate = EXCLUDED.flat_shipping_rate,
    free_shipping_threshold = EXCLUDED.free_shipping_threshold,
    tax_rate = EXCLUDED.tax_rate
`, settingsID, s.StoreName, s.Currency, s.FlatShippingRate, s.FreeShippingThreshold, s.TaxRatePercent)
	if err != nil {
		return fmt.Errorf("save store settings: %w", err)
	}
	return nil
}
