package cart

import (
	"context"

	"storefront/internal/domain"
)

// MergeLine is a queued quantity for one variant in the target cart.
type MergeLine struct {
	VariantID string
	Quantity  int
}

// MergePlan is applied atomically: updates and inserts land in the target
// cart and the source cart is deleted.
type MergePlan struct {
	TargetCartID string
	SourceCartID string
	Updates      []MergeLine
	Inserts      []MergeLine
}

type Repository interface {
	// GetOrCreate resolves the cart for owner, creating it on first access.
	GetOrCreate(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	// FindByOwner returns domain.ErrNotFound when owner has no live cart.
	FindByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	// LinesForVariants returns the target cart's lines keyed by variant id,
	// restricted to variantIDs.
	LinesForVariants(ctx context.Context, cartID string, variantIDs []string) (map[string]domain.CartLine, error)
	AddItem(ctx context.Context, cartID, variantID string, quantity int) error
	SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
	Clear(ctx context.Context, cartID string) error
	ApplyMerge(ctx context.Context, plan MergePlan) error
	DeleteExpired(ctx context.Context) (int64, error)
}
