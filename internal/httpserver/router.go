package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
	anonymoussvc "storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
)

type cartService interface {
	GetOrCreate(ctx context.Context, owner domain.CartOwner) (*cartsvc.View, error)
	AddItem(ctx context.Context, cartID, variantID string, quantity int) (*cartsvc.View, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*cartsvc.View, error)
	RemoveItem(ctx context.Context, cartID, itemID string) (*cartsvc.View, error)
	Clear(ctx context.Context, cartID string) (*cartsvc.View, error)
	Merge(ctx context.Context, sessionID, customerID string) (*cartsvc.View, error)
}

type checkoutService interface {
	Quote(ctx context.Context, cartID, code string) (*checkoutsvc.Quote, error)
	Checkout(ctx context.Context, cartID string, in checkoutsvc.Input, customerID *string) (*domain.Order, error)
	GetOrder(ctx context.Context, id, customerID string) (*domain.Order, error)
	LookupPublic(ctx context.Context, number, email string) (*domain.Order, error)
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error)
	AdminGetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error)
	CreateFulfillment(ctx context.Context, id string, in checkoutsvc.FulfillmentInput) (*domain.Order, error)
}

type customerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*customersvc.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	ResolveProfile(ctx context.Context, userID string) (*domain.Customer, error)
	Addresses(ctx context.Context, customerID string) ([]domain.Address, error)
	AccessTTLSeconds() int
}

type anonymousService interface {
	Issue(ctx context.Context) (*anonymoussvc.Session, error)
	LookupByToken(ctx context.Context, token string) (string, error)
	AccessTTLSeconds() int
}

// Deps holds the services behind the HTTP handlers.
type Deps struct {
	CartSvc      cartService
	CheckoutSvc  checkoutService
	CustomerSvc  customerService
	AnonymousSvc anonymousService
	// AllowedOrigins enables CORS for browser storefronts. Empty disables it.
	AllowedOrigins []string
}

func (d Deps) validate() error {
	if d.CartSvc == nil || d.CheckoutSvc == nil || d.CustomerSvc == nil || d.AnonymousSvc == nil {
		return errors.New("httpserver: cart, checkout, customer and anonymous services are required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestIDMiddleware(), accessLogMiddleware(logger), gin.CustomRecovery(recoveryHandler(logger)))
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", anonymousTokenHeader},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api", authMiddleware(deps.CustomerSvc, deps.AnonymousSvc))

	auth := api.Group("/auth")
	auth.POST("/anonymous", h.issueAnonymous)
	auth.POST("/signup", h.signup)
	auth.POST("/login", h.login)
	auth.POST("/logout", requireCustomer(), h.logout)

	me := api.Group("/me", requireCustomer())
	me.GET("", h.me)
	me.GET("/addresses", h.addresses)

	cart := api.Group("/cart", requireSession())
	cart.GET("", h.getCart)
	cart.DELETE("", h.clearCart)
	cart.POST("/items", h.addItem)
	cart.PATCH("/items/:itemId", h.updateItem)
	cart.DELETE("/items/:itemId", h.removeItem)
	cart.POST("/merge", requireCustomer(), h.mergeCart)

	api.POST("/discounts/preview", requireSession(), h.previewDiscount)
	api.POST("/checkout", requireSession(), h.checkout)

	api.GET("/orders/lookup", h.lookupOrder)
	orders := api.Group("/orders", requireCustomer())
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)

	admin := api.Group("/admin", requireAdmin())
	admin.GET("/orders/:id", h.adminGetOrder)
	admin.PATCH("/orders/:id/status", h.updateOrderStatus)
	admin.POST("/orders/:id/fulfillments", h.createFulfillment)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}
