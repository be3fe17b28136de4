package httpserver

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestCartRoutes_RequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.carts.owners)
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cart/items", guestToken, `{"variantId":"v1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		ID        string `json:"id"`
		ItemCount int    `json:"itemCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cart-anon-1", body.ID)
	assert.Equal(t, 1, body.ItemCount)
	assert.Equal(t, []string{"cart-anon-1:v1"}, ts.carts.added)
}

func TestAddItem_MissingVariant(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cart/items", guestToken, `{"quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.carts.added)
}

func TestAddItem_InsufficientInventoryCarriesAvailable(t *testing.T) {
	ts := newTestServer(t)
	ts.carts.err = domain.InsufficientInventory("v1", 3)

	rec := ts.do(http.MethodPost, "/api/cart/items", guestToken, `{"variantId":"v1","quantity":5}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error apiError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "InsufficientInventory", body.Error.Code)
	assert.Equal(t, "v1", body.Error.VariantID)
	require.NotNil(t, body.Error.Available)
	assert.Equal(t, 3, *body.Error.Available)
}

func TestUpdateItem_ZeroQuantityIsForwarded(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPatch, "/api/cart/items/item-1", customerToken, `{"quantity":0}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPatch, "/api/cart/items/item-1", customerToken, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateItem_ForeignItemNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.carts.err = domain.ErrCartItemNotFound

	rec := ts.do(http.MethodPatch, "/api/cart/items/other", guestToken, `{"quantity":2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveItemAndClear(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodDelete, "/api/cart/items/missing", guestToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/cart", guestToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestMergeCart(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cart/merge", guestToken, `{"anonymousToken":"guest-token"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "guests cannot merge")

	rec = ts.do(http.MethodPost, "/api/cart/merge", customerToken, `{"anonymousToken":"stale"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/cart/merge", customerToken, `{"anonymousToken":"guest-token"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.carts.merges, 1)
	assert.Equal(t, mergeCall{sessionID: "anon-1", customerID: "cust-user-1"}, ts.carts.merges[0])
}
