package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	anonymoussvc "storefront/internal/service/anonymous"
	customersvc "storefront/internal/service/customer"
)

const (
	requestIDHeader      = "X-Request-ID"
	anonymousTokenHeader = "X-Anonymous-Token"
)

type ctxKey string

const (
	requestIDCtxKey ctxKey = "requestID"
	principalCtxKey ctxKey = "principal"
)

// principal is the caller behind a bearer token: either a signed-in user
// with its customer profile, or an anonymous session.
type principal struct {
	Token       string
	User        *domain.User
	CustomerID  string
	AnonymousID string
}

func (p *principal) owner() domain.CartOwner {
	if p.CustomerID != "" {
		return domain.CustomerOwner(p.CustomerID)
	}
	return domain.SessionOwner(p.AnonymousID)
}

func (p *principal) customerIDPtr() *string {
	if p.CustomerID == "" {
		return nil
	}
	id := p.CustomerID
	return &id
}

func principalFrom(c *gin.Context) *principal {
	p, _ := c.Request.Context().Value(principalCtxKey).(*principal)
	return p
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDCtxKey, id))
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	id, _ := c.Request.Context().Value(requestIDCtxKey).(string)
	return id
}

func accessLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID(c)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

func recoveryHandler(logger *zap.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", requestID(c)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal", "InternalError", "internal server error"))
	}
}

// authMiddleware resolves an optional bearer token. Customer access tokens
// are tried first, then anonymous session tokens. A token that matches
// neither is rejected; a missing token leaves the request unauthenticated.
func authMiddleware(customers customerService, anonymous anonymousService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		p, err := resolveCustomer(ctx, customers, token)
		if errors.Is(err, customersvc.ErrInvalidToken) {
			var anonID string
			anonID, err = anonymous.LookupByToken(ctx, token)
			if err == nil {
				p = &principal{Token: token, AnonymousID: anonID}
			}
		}
		if err != nil {
			if errors.Is(err, customersvc.ErrInvalidToken) || errors.Is(err, anonymoussvc.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthorized", "InvalidToken", "invalid or expired token"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal", "InternalError", "could not resolve token"))
			return
		}
		c.Request = c.Request.WithContext(context.WithValue(ctx, principalCtxKey, p))
		c.Next()
	}
}

func resolveCustomer(ctx context.Context, customers customerService, token string) (*principal, error) {
	u, err := customers.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	profile, err := customers.ResolveProfile(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &principal{Token: token, User: u, CustomerID: profile.ID}, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession admits any authenticated caller, customer or anonymous.
func requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthorized", "MissingToken", "bearer token required"))
			return
		}
		c.Next()
	}
}

func requireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalFrom(c)
		if p == nil || p.User == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthorized", "MissingToken", "customer login required"))
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalFrom(c)
		if p == nil || p.User == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthorized", "MissingToken", "login required"))
			return
		}
		if p.User.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody("Forbidden", "AdminOnly", "admin role required"))
			return
		}
		c.Next()
	}
}
