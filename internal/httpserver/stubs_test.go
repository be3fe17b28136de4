package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	anonymoussvc "storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
)

const (
	customerToken = "customer-token"
	adminToken    = "admin-token"
	guestToken    = "guest-token"
)

type stubCustomerSvc struct {
	users    map[string]*domain.User
	loginErr error
	signErr  error
	logouts  []string
}

func newStubCustomerSvc() *stubCustomerSvc {
	return &stubCustomerSvc{users: map[string]*domain.User{
		customerToken: {ID: "user-1", Email: "shopper@example.com", Role: domain.RoleCustomer},
		adminToken:    {ID: "user-2", Email: "admin@example.com", Role: domain.RoleAdmin},
	}}
}

func (s *stubCustomerSvc) Signup(_ context.Context, in customersvc.SignupInput) (*domain.User, error) {
	if s.signErr != nil {
		return nil, s.signErr
	}
	return &domain.User{ID: "user-new", Email: in.Email, Role: domain.RoleCustomer}, nil
}

func (s *stubCustomerSvc) Login(_ context.Context, email, _ string) (*customersvc.Session, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &customersvc.Session{
		Token:     customerToken,
		ExpiresAt: time.Now().Add(time.Hour),
		User:      &domain.User{ID: "user-1", Email: email, Role: domain.RoleCustomer},
	}, nil
}

func (s *stubCustomerSvc) Logout(_ context.Context, token string) error {
	s.logouts = append(s.logouts, token)
	return nil
}

func (s *stubCustomerSvc) Authenticate(_ context.Context, token string) (*domain.User, error) {
	u, ok := s.users[token]
	if !ok {
		return nil, customersvc.ErrInvalidToken
	}
	return u, nil
}

func (s *stubCustomerSvc) ResolveProfile(_ context.Context, userID string) (*domain.Customer, error) {
	return &domain.Customer{ID: "cust-" + userID, UserID: userID}, nil
}

func (s *stubCustomerSvc) Addresses(_ context.Context, _ string) ([]domain.Address, error) {
	return []domain.Address{{ID: "addr-1", City: "Springfield", IsDefault: true}}, nil
}

func (s *stubCustomerSvc) AccessTTLSeconds() int { return 3600 }

type stubAnonymousSvc struct{}

func (stubAnonymousSvc) Issue(_ context.Context) (*anonymoussvc.Session, error) {
	return &anonymoussvc.Session{Token: guestToken, AnonymousID: "anon-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (stubAnonymousSvc) LookupByToken(_ context.Context, token string) (string, error) {
	if token != guestToken {
		return "", anonymoussvc.ErrInvalidToken
	}
	return "anon-1", nil
}

func (stubAnonymousSvc) AccessTTLSeconds() int { return 7200 }

type mergeCall struct {
	sessionID, customerID string
}

type stubCartSvc struct {
	owners []domain.CartOwner
	added  []string
	merges []mergeCall
	err    error
}

func (s *stubCartSvc) view(id string) *cartsvc.View {
	return &cartsvc.View{ID: id, Items: []cartsvc.ItemView{}}
}

func (s *stubCartSvc) GetOrCreate(_ context.Context, owner domain.CartOwner) (*cartsvc.View, error) {
	s.owners = append(s.owners, owner)
	if owner.CustomerID != "" {
		return s.view("cart-" + owner.CustomerID), nil
	}
	return s.view("cart-" + owner.SessionID), nil
}

func (s *stubCartSvc) AddItem(_ context.Context, cartID, variantID string, quantity int) (*cartsvc.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.added = append(s.added, cartID+":"+variantID)
	v := s.view(cartID)
	v.ItemCount = quantity
	return v, nil
}

func (s *stubCartSvc) UpdateItemQuantity(_ context.Context, cartID, _ string, quantity int) (*cartsvc.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	v := s.view(cartID)
	v.ItemCount = quantity
	return v, nil
}

func (s *stubCartSvc) RemoveItem(_ context.Context, cartID, _ string) (*cartsvc.View, error) {
	return s.view(cartID), s.err
}

func (s *stubCartSvc) Clear(_ context.Context, cartID string) (*cartsvc.View, error) {
	return s.view(cartID), s.err
}

func (s *stubCartSvc) Merge(_ context.Context, sessionID, customerID string) (*cartsvc.View, error) {
	s.merges = append(s.merges, mergeCall{sessionID: sessionID, customerID: customerID})
	return s.view("cart-" + customerID), s.err
}

type checkoutCall struct {
	cartID     string
	input      checkoutsvc.Input
	customerID *string
}

type stubCheckoutSvc struct {
	order     *domain.Order
	err       error
	checkouts []checkoutCall
	statusTo  domain.OrderStatus
}

func (s *stubCheckoutSvc) Quote(_ context.Context, cartID, _ string) (*checkoutsvc.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.Quote{CartID: cartID, Currency: "USD"}, nil
}

func (s *stubCheckoutSvc) Checkout(_ context.Context, cartID string, in checkoutsvc.Input, customerID *string) (*domain.Order, error) {
	s.checkouts = append(s.checkouts, checkoutCall{cartID: cartID, input: in, customerID: customerID})
	return s.order, s.err
}

func (s *stubCheckoutSvc) GetOrder(_ context.Context, _, _ string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubCheckoutSvc) LookupPublic(_ context.Context, _, _ string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubCheckoutSvc) ListForCustomer(_ context.Context, _ string, _, _ int) ([]domain.Order, error) {
	if s.order == nil {
		return nil, s.err
	}
	return []domain.Order{*s.order}, s.err
}

func (s *stubCheckoutSvc) AdminGetOrder(_ context.Context, _ string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubCheckoutSvc) UpdateStatus(_ context.Context, _ string, to domain.OrderStatus) (*domain.Order, error) {
	s.statusTo = to
	return s.order, s.err
}

func (s *stubCheckoutSvc) CreateFulfillment(_ context.Context, _ string, _ checkoutsvc.FulfillmentInput) (*domain.Order, error) {
	return s.order, s.err
}

type testServer struct {
	router    *gin.Engine
	customers *stubCustomerSvc
	carts     *stubCartSvc
	checkout  *stubCheckoutSvc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		customers: newStubCustomerSvc(),
		carts:     &stubCartSvc{},
		checkout:  &stubCheckoutSvc{},
	}
	router, err := buildRouter(zap.NewNop(), nil, Deps{
		CartSvc:      ts.carts,
		CheckoutSvc:  ts.checkout,
		CustomerSvc:  ts.customers,
		AnonymousSvc: stubAnonymousSvc{},
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	ts.router = router
	return ts
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}
