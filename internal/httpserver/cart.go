package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cartsvc "storefront/internal/service/cart"
)

type addItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type mergeCartRequest struct {
	AnonymousToken string `json:"anonymousToken" binding:"required"`
}

// currentCart resolves (or lazily creates) the caller's cart.
func (h *handlers) currentCart(c *gin.Context) (*cartsvc.View, bool) {
	view, err := h.deps.CartSvc.GetOrCreate(c.Request.Context(), principalFrom(c).owner())
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return view, true
}

func (h *handlers) getCart(c *gin.Context) {
	view, ok := h.currentCart(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "variantId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	current, ok := h.currentCart(c)
	if !ok {
		return
	}
	view, err := h.deps.CartSvc.AddItem(c.Request.Context(), current.ID, req.VariantID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	current, ok := h.currentCart(c)
	if !ok {
		return
	}
	view, err := h.deps.CartSvc.UpdateItemQuantity(c.Request.Context(), current.ID, c.Param("itemId"), *req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) removeItem(c *gin.Context) {
	current, ok := h.currentCart(c)
	if !ok {
		return
	}
	view, err := h.deps.CartSvc.RemoveItem(c.Request.Context(), current.ID, c.Param("itemId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) clearCart(c *gin.Context) {
	current, ok := h.currentCart(c)
	if !ok {
		return
	}
	view, err := h.deps.CartSvc.Clear(c.Request.Context(), current.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) mergeCart(c *gin.Context) {
	var req mergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "anonymousToken is required")
		return
	}
	ctx := c.Request.Context()
	anonID, err := h.deps.AnonymousSvc.LookupByToken(ctx, req.AnonymousToken)
	if err != nil {
		h.logger.Info("cart merge with unknown anonymous token", zap.String("request_id", requestID(c)))
		c.JSON(http.StatusBadRequest, errorBody("Validation", "InvalidAnonymousToken", "anonymous token is invalid or expired"))
		return
	}
	view, err := h.deps.CartSvc.Merge(ctx, anonID, principalFrom(c).CustomerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
