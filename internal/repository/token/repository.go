package token

import (
	"context"
	"time"
)

const (
	KindAccess    = "access"
	KindAnonymous = "anonymous"
)

// Token is an opaque bearer credential. Access tokens carry a UserID,
// anonymous tokens an AnonymousID used as the cart session id.
type Token struct {
	Token       string
	UserID      *string
	AnonymousID *string
	Kind        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

type Repository interface {
	Create(ctx context.Context, token Token) error
	// Get returns domain.ErrNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*Token, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
