package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	customersvc "storefront/internal/service/customer"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	// AnonymousToken, when given, merges that guest cart into the customer cart.
	AnonymousToken string `json:"anonymousToken"`
}

func (h *handlers) issueAnonymous(c *gin.Context) {
	session, err := h.deps.AnonymousSvc.Issue(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"accessToken": session.Token,
		"anonymousId": session.AnonymousID,
		"expiresAt":   session.ExpiresAt,
		"expiresIn":   h.deps.AnonymousSvc.AccessTTLSeconds(),
		"tokenType":   "Bearer",
	})
}

func (h *handlers) signup(c *gin.Context) {
	var req customersvc.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid signup payload")
		return
	}
	user, err := h.deps.CustomerSvc.Signup(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	ctx := c.Request.Context()
	session, err := h.deps.CustomerSvc.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	profile, err := h.deps.CustomerSvc.ResolveProfile(ctx, session.User.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{
		"accessToken": session.Token,
		"expiresAt":   session.ExpiresAt,
		"expiresIn":   h.deps.CustomerSvc.AccessTTLSeconds(),
		"tokenType":   "Bearer",
		"user":        session.User,
		"customerId":  profile.ID,
	}

	anonToken := strings.TrimSpace(req.AnonymousToken)
	if anonToken == "" {
		anonToken = strings.TrimSpace(c.GetHeader(anonymousTokenHeader))
	}
	if anonToken != "" {
		// A stale guest token must not block login; the guest cart is simply left behind.
		anonID, err := h.deps.AnonymousSvc.LookupByToken(ctx, anonToken)
		if err != nil {
			h.logger.Warn("login: anonymous token not merged", zap.String("request_id", requestID(c)), zap.Error(err))
		} else {
			cart, err := h.deps.CartSvc.Merge(ctx, anonID, profile.ID)
			if err != nil {
				h.logger.Error("login: cart merge failed",
					zap.String("customer_id", profile.ID),
					zap.String("request_id", requestID(c)),
					zap.Error(err))
			} else {
				resp["cart"] = cart
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.deps.CustomerSvc.Logout(c.Request.Context(), principalFrom(c).Token); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	p := principalFrom(c)
	c.JSON(http.StatusOK, gin.H{"user": p.User, "customerId": p.CustomerID})
}

func (h *handlers) addresses(c *gin.Context) {
	list, err := h.deps.CustomerSvc.Addresses(c.Request.Context(), principalFrom(c).CustomerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}
