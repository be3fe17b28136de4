package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
)

// Kind classifies failures surfaced by the cart and checkout services.
type Kind string

const (
	KindNotFound              Kind = "NotFound"
	KindValidation            Kind = "Validation"
	KindInsufficientInventory Kind = "InsufficientInventory"
	KindDiscountRejected      Kind = "DiscountRejected"
	KindPaymentDeclined       Kind = "PaymentDeclined"
	KindPaymentFailed         Kind = "PaymentFailed"
	KindConflict              Kind = "Conflict"
)

// Code is the specific reason within a Kind.
type Code string

const (
	CodeCartNotFound            Code = "CartNotFound"
	CodeCartItemNotFound        Code = "CartItemNotFound"
	CodeOrderNotFound           Code = "OrderNotFound"
	CodeUnavailableVariant      Code = "UnavailableVariant"
	CodeInvalidQuantity         Code = "InvalidQuantity"
	CodeInvalidIdentity         Code = "InvalidIdentity"
	CodeInvalidCheckout         Code = "InvalidCheckout"
	CodeEmptyCart               Code = "EmptyCart"
	CodeInsufficientInventory   Code = "InsufficientInventory"
	CodeInvalidCode             Code = "InvalidCode"
	CodeCodeInactive            Code = "CodeInactive"
	CodeNotYetActive            Code = "NotYetActive"
	CodeExpired                 Code = "Expired"
	CodeUsageLimitReached       Code = "UsageLimitReached"
	CodeMinimumNotMet           Code = "MinimumNotMet"
	CodeCardDeclined            Code = "CardDeclined"
	CodePaymentProcessingFailed Code = "PaymentProcessingFailed"
	CodeInvalidStatus           Code = "InvalidStatus"
	CodeInvalidStatusTransition Code = "InvalidStatusTransition"
	CodeCartChanged             Code = "CartChanged"
)

// Error is the tagged failure type returned by the core services.
// Callers match it with errors.Is against the sentinels below, or
// errors.As to read VariantID and Available.
type Error struct {
	Kind      Kind
	Code      Code
	Message   string
	VariantID string
	// Available is the variant quantity observed when an inventory check
	// failed; nil when unknown.
	Available *int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so wrapped or detailed errors still equal their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrCartNotFound            = newError(KindNotFound, CodeCartNotFound, "cart not found")
	ErrCartItemNotFound        = newError(KindNotFound, CodeCartItemNotFound, "item does not belong to cart")
	ErrOrderNotFound           = newError(KindNotFound, CodeOrderNotFound, "order not found")
	ErrUnavailableVariant      = newError(KindValidation, CodeUnavailableVariant, "variant is not available")
	ErrInvalidQuantity         = newError(KindValidation, CodeInvalidQuantity, "quantity must be a positive integer")
	ErrInvalidIdentity         = newError(KindValidation, CodeInvalidIdentity, "exactly one of customer id or session id is required")
	ErrInvalidCheckout         = newError(KindValidation, CodeInvalidCheckout, "invalid checkout input")
	ErrEmptyCart               = newError(KindValidation, CodeEmptyCart, "cart is empty")
	ErrInsufficientInventory   = newError(KindInsufficientInventory, CodeInsufficientInventory, "insufficient inventory")
	ErrInvalidCode             = newError(KindDiscountRejected, CodeInvalidCode, "discount code does not exist")
	ErrCodeInactive            = newError(KindDiscountRejected, CodeCodeInactive, "discount code is not active")
	ErrNotYetActive            = newError(KindDiscountRejected, CodeNotYetActive, "discount code is not active yet")
	ErrExpired                 = newError(KindDiscountRejected, CodeExpired, "discount code has expired")
	ErrUsageLimitReached       = newError(KindDiscountRejected, CodeUsageLimitReached, "discount code usage limit reached")
	ErrMinimumNotMet           = newError(KindDiscountRejected, CodeMinimumNotMet, "order subtotal below discount minimum")
	ErrCardDeclined            = newError(KindPaymentDeclined, CodeCardDeclined, "card declined")
	ErrPaymentProcessingFailed = newError(KindPaymentFailed, CodePaymentProcessingFailed, "payment processing failed")
	ErrInvalidStatus           = newError(KindValidation, CodeInvalidStatus, "unknown order status")
	ErrInvalidStatusTransition = newError(KindConflict, CodeInvalidStatusTransition, "order status transition not allowed")
	ErrCartChanged             = newError(KindConflict, CodeCartChanged, "cart changed during checkout")
)

// InsufficientInventory builds an inventory failure carrying the quantity
// that was available for the variant.
func InsufficientInventory(variantID string, available int) error {
	if available < 0 {
		available = 0
	}
	return &Error{
		Kind:      KindInsufficientInventory,
		Code:      CodeInsufficientInventory,
		Message:   fmt.Sprintf("only %d available for variant %s", available, variantID),
		VariantID: variantID,
		Available: &available,
	}
}

// Invalid returns a validation failure with a custom message that still
// matches the given sentinel.
func Invalid(sentinel *Error, msg string) error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: msg}
}

// KindOf returns the Kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
