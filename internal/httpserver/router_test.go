package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

func TestBuildRouter_RequiresServices(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), nil, Deps{}); err == nil {
		t.Fatalf("expected error for missing services")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from readyz without db, got %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestAuthMiddleware_RejectsUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/cart", "nope", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_AnonymousTokenOwnsSessionCart(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/cart", guestToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(ts.carts.owners) != 1 || ts.carts.owners[0] != domain.SessionOwner("anon-1") {
		t.Fatalf("expected session owner, got %+v", ts.carts.owners)
	}
}

func TestAuthMiddleware_CustomerTokenOwnsCustomerCart(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/cart", customerToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(ts.carts.owners) != 1 || ts.carts.owners[0] != domain.CustomerOwner("cust-user-1") {
		t.Fatalf("expected customer owner, got %+v", ts.carts.owners)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.order = &domain.Order{ID: "order-1"}

	if rec := ts.do(http.MethodGet, "/api/admin/orders/order-1", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/admin/orders/order-1", customerToken, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/admin/orders/order-1", adminToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestWriteError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &handlers{logger: zap.NewNop()}
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrCartNotFound, http.StatusNotFound},
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrCartChanged, http.StatusConflict},
		{domain.InsufficientInventory("v1", 2), http.StatusUnprocessableEntity},
		{domain.ErrExpired, http.StatusUnprocessableEntity},
		{domain.ErrCardDeclined, http.StatusPaymentRequired},
		{domain.ErrPaymentProcessingFailed, http.StatusBadGateway},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		h.writeError(c, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}
