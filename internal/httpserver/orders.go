package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	checkoutsvc "storefront/internal/service/checkout"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlers) listOrders(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		badRequest(c, "offset must be an integer")
		return
	}
	orders, err := h.deps.CheckoutSvc.ListForCustomer(c.Request.Context(), principalFrom(c).CustomerID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"limit": limit, "offset": offset, "count": len(orders), "results": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.deps.CheckoutSvc.GetOrder(c.Request.Context(), c.Param("id"), principalFrom(c).CustomerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// lookupOrder serves guest order tracking by number and email.
func (h *handlers) lookupOrder(c *gin.Context) {
	order, err := h.deps.CheckoutSvc.LookupPublic(c.Request.Context(), c.Query("number"), c.Query("email"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) adminGetOrder(c *gin.Context) {
	order, err := h.deps.CheckoutSvc.AdminGetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	order, err := h.deps.CheckoutSvc.UpdateStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) createFulfillment(c *gin.Context) {
	var in checkoutsvc.FulfillmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid fulfillment payload")
		return
	}
	order, err := h.deps.CheckoutSvc.CreateFulfillment(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
