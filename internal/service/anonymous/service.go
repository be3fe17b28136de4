package anonymous

import (
	"context"
	"errors"
	"time"

	tokenrepo "storefront/internal/repository/token"
)

var ErrInvalidToken = errors.New("invalid token")

// Service issues anonymous session tokens. The anonymous id doubles as the
// guest cart's session id.
type Service struct {
	tokens *tokenManager
	ttl    time.Duration
}

func New(tokens tokenrepo.Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		tokens: newTokenManager(tokens),
		ttl:    ttl,
	}
}

// Session is a freshly issued anonymous token.
type Session struct {
	Token       string    `json:"accessToken"`
	AnonymousID string    `json:"anonymousId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Service) Issue(ctx context.Context) (*Session, error) {
	return s.tokens.Issue(ctx, s.ttl)
}

// LookupByToken returns the anonymous id of a live anonymous token.
func (s *Service) LookupByToken(ctx context.Context, token string) (string, error) {
	id, ok := s.tokens.Validate(ctx, token)
	if !ok {
		return "", ErrInvalidToken
	}
	return id, nil
}

// PurgeExpired removes expired tokens of every kind.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.repo.DeleteExpired(ctx)
}

func (s *Service) AccessTTLSeconds() int {
	return int(s.ttl.Seconds())
}
