package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
)

type apiError struct {
	Kind      string `json:"kind"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	VariantID string `json:"variantId,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func errorBody(kind, code, msg string) gin.H {
	return gin.H{"error": apiError{Kind: kind, Code: code, Message: msg}}
}

var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:              http.StatusNotFound,
	domain.KindValidation:            http.StatusBadRequest,
	domain.KindConflict:              http.StatusConflict,
	domain.KindInsufficientInventory: http.StatusUnprocessableEntity,
	domain.KindDiscountRejected:      http.StatusUnprocessableEntity,
	domain.KindPaymentDeclined:       http.StatusPaymentRequired,
	domain.KindPaymentFailed:         http.StatusBadGateway,
}

// writeError maps a service error onto a status code and JSON body.
// Unclassified errors are logged and hidden behind a 500.
func (h *handlers) writeError(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		status, ok := kindStatus[de.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": apiError{
			Kind:      string(de.Kind),
			Code:      string(de.Code),
			Message:   de.Error(),
			VariantID: de.VariantID,
			Available: de.Available,
		}})
		return
	}

	switch {
	case errors.Is(err, customersvc.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorBody("Unauthorized", "InvalidCredentials", "invalid email or password"))
	case errors.Is(err, customersvc.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, errorBody("Unauthorized", "InvalidToken", "invalid or expired token"))
	case errors.Is(err, customersvc.ErrInvalidSignup):
		c.JSON(http.StatusBadRequest, errorBody(string(domain.KindValidation), "InvalidSignup", err.Error()))
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, errorBody(string(domain.KindConflict), "AlreadyExists", "resource already exists"))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody(string(domain.KindNotFound), "NotFound", "resource not found"))
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("Internal", "InternalError", "internal server error"))
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody(string(domain.KindValidation), "InvalidRequest", msg))
}
