package cart

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	cartrepo "storefront/internal/repository/cart"
)

type Service struct {
	repo     cartRepo
	variants variantLookup
	logger   *zap.Logger
}

type cartRepo interface {
	GetOrCreate(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	FindByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	LinesForVariants(ctx context.Context, cartID string, variantIDs []string) (map[string]domain.CartLine, error)
	AddItem(ctx context.Context, cartID, variantID string, quantity int) error
	SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
	Clear(ctx context.Context, cartID string) error
	ApplyMerge(ctx context.Context, plan cartrepo.MergePlan) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type variantLookup interface {
	Get(ctx context.Context, id string) (*domain.Variant, error)
	GetMany(ctx context.Context, ids []string) (map[string]domain.Variant, error)
}

func New(repo cartRepo, variants variantLookup, logger *zap.Logger) *Service {
	return &Service{repo: repo, variants: variants, logger: logging.OrNop(logger)}
}

// GetOrCreate resolves the cart of owner, creating it lazily.
func (s *Service) GetOrCreate(ctx context.Context, owner domain.CartOwner) (*View, error) {
	if !owner.Valid() {
		return nil, domain.ErrInvalidIdentity
	}
	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	v := NewView(*c)
	return &v, nil
}

// View returns the materialized cart.
func (s *Service) View(ctx context.Context, cartID string) (*View, error) {
	c, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	v := NewView(*c)
	return &v, nil
}

// AddItem adds quantity units of a live variant, merging into an existing
// line. The new line total is checked against inventory atomically.
func (s *Service) AddItem(ctx context.Context, cartID, variantID string, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, domain.ErrUnavailableVariant
	}
	v, err := s.variants.Get(ctx, variantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnavailableVariant
		}
		return nil, err
	}
	if !v.Live() {
		return nil, domain.ErrUnavailableVariant
	}
	if err := s.repo.AddItem(ctx, cartID, variantID, quantity); err != nil {
		return nil, err
	}
	return s.View(ctx, cartID)
}

// UpdateItemQuantity sets a line's quantity; zero removes it.
func (s *Service) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, domain.ErrCartItemNotFound
	}
	if err := s.repo.SetItemQuantity(ctx, cartID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.View(ctx, cartID)
}

// RemoveItem deletes a line; a missing item is a no-op.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) (*View, error) {
	if err := s.repo.RemoveItem(ctx, cartID, itemID); err != nil {
		return nil, err
	}
	return s.View(ctx, cartID)
}

func (s *Service) Clear(ctx context.Context, cartID string) (*View, error) {
	if err := s.repo.Clear(ctx, cartID); err != nil {
		return nil, err
	}
	return s.View(ctx, cartID)
}

// Merge folds the guest cart of sessionID into the customer's cart and
// deletes the guest cart. Re-running it after the guest cart is gone is a
// no-op that returns the customer cart.
func (s *Service) Merge(ctx context.Context, sessionID, customerID string) (*View, error) {
	customer := domain.CustomerOwner(customerID)
	if strings.TrimSpace(sessionID) == "" {
		return s.GetOrCreate(ctx, customer)
	}

	guest, err := s.repo.FindByOwner(ctx, domain.SessionOwner(sessionID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if guest == nil || guest.Empty() {
		return s.GetOrCreate(ctx, customer)
	}

	target, err := s.repo.GetOrCreate(ctx, customer)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(guest.Lines))
	for _, l := range guest.Lines {
		ids = append(ids, l.VariantID)
	}
	existing, err := s.repo.LinesForVariants(ctx, target.ID, ids)
	if err != nil {
		return nil, err
	}
	variants, err := s.variants.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	plan := planMerge(guest, target.ID, existing, variants)
	if err := s.repo.ApplyMerge(ctx, plan); err != nil {
		return nil, err
	}
	s.logger.Info("cart merged",
		zap.String("guest_cart_id", guest.ID),
		zap.String("customer_cart_id", target.ID),
		zap.Int("updates", len(plan.Updates)),
		zap.Int("inserts", len(plan.Inserts)),
		zap.Int("skipped", len(guest.Lines)-len(plan.Updates)-len(plan.Inserts)))
	return s.View(ctx, target.ID)
}

// planMerge decides the target quantity for every guest line. Lines whose
// variant is gone or no longer live are dropped silently, and quantities
// are capped at current inventory.
func planMerge(guest *domain.Cart, targetID string, existing map[string]domain.CartLine, variants map[string]domain.Variant) cartrepo.MergePlan {
	plan := cartrepo.MergePlan{TargetCartID: targetID, SourceCartID: guest.ID}
	for _, l := range guest.Lines {
		v, ok := variants[l.VariantID]
		if !ok || !v.Live() {
			continue
		}
		current, had := existing[l.VariantID]
		final := min(current.Quantity+l.Quantity, v.InventoryQuantity)
		if final <= 0 {
			continue
		}
		line := cartrepo.MergeLine{VariantID: l.VariantID, Quantity: final}
		switch {
		case !had:
			plan.Inserts = append(plan.Inserts, line)
		case final != current.Quantity:
			plan.Updates = append(plan.Updates, line)
		}
	}
	return plan
}

// PurgeExpired deletes anonymous carts past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("purge expired carts", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged expired carts", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) load(ctx context.Context, cartID string) (*domain.Cart, error) {
	c, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}
	return c, nil
}
