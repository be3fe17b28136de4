package settings

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// Get returns the stored settings, or domain.DefaultStoreSettings when
	// none have been saved.
	Get(ctx context.Context) (domain.StoreSettings, error)
	Save(ctx context.Context, s domain.StoreSettings) error
}
