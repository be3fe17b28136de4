package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	checkoutsvc "storefront/internal/service/checkout"
)

type previewDiscountRequest struct {
	Code string `json:"code"`
}

// previewDiscount prices the caller's cart with an optional code. Nothing is
// reserved or recorded.
func (h *handlers) previewDiscount(c *gin.Context) {
	var req previewDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid discount preview payload")
		return
	}
	current, ok := h.currentCart(c)
	if !ok {
		return
	}
	quote, err := h.deps.CheckoutSvc.Quote(c.Request.Context(), current.ID, req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *handlers) checkout(c *gin.Context) {
	var in checkoutsvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid checkout payload")
		return
	}
	p := principalFrom(c)
	if strings.TrimSpace(in.Email) == "" && p.User != nil {
		in.Email = p.User.Email
	}
	current, ok := h.currentCart(c)
	if !ok {
		return
	}
	order, err := h.deps.CheckoutSvc.Checkout(c.Request.Context(), current.ID, in, p.customerIDPtr())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
