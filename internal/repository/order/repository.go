package order

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// PlacedLine is a priced cart line frozen into an order item.
type PlacedLine struct {
	VariantID    string
	Quantity     int
	ProductTitle string
	VariantTitle string
	SKU          string
	Price        decimal.Decimal
	ImageURL     string
}

// PlaceInput carries everything checkout computed before the atomic unit.
type PlaceInput struct {
	CartID          string
	OrderNumber     string
	CustomerID      *string
	Email           string
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	DiscountCodeID  *string
	ShippingAddress domain.Address
	// SaveAddress stores ShippingAddress for CustomerID in the same
	// transaction; ignored for guest orders.
	SaveAddress bool
	Note        string
	Lines       []PlacedLine
	Payment     domain.Payment
}

type FulfillmentInput struct {
	Carrier        string
	TrackingNumber string
	TrackingURL    string
}

type Repository interface {
	// Place materializes the order, debits inventory and discount usage and
	// empties the cart, all or nothing.
	Place(ctx context.Context, in PlaceInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error)
	// UpdateStatus moves the order from one status to another; it fails with
	// domain.ErrInvalidStatusTransition if the order is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
	AddFulfillment(ctx context.Context, id string, in FulfillmentInput) (*domain.Order, error)
}
