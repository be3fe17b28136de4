package customer

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists users, their customer profiles and saved addresses.
type Repository interface {
	CreateUser(ctx context.Context, u domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// EnsureCustomer returns the customer profile of userID, creating it on
	// first use.
	EnsureCustomer(ctx context.Context, userID, email string) (*domain.Customer, error)
	ListAddresses(ctx context.Context, customerID string) ([]domain.Address, error)
}
