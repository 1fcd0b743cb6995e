package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies domain errors for transport mapping.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindSignature   ErrorKind = "signature"
	KindIntegration ErrorKind = "integration"
	KindInternal    ErrorKind = "internal"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeInvalidQuantity         = "INVALID_QUANTITY"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeCartEmpty               = "CART_EMPTY"
	ErrCodeCartNotFound            = "CART_NOT_FOUND"
	ErrCodeProductNotFound         = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodePromoNotFound           = "PROMO_NOT_FOUND"
	ErrCodePaymentSessionNotFound  = "PAYMENT_SESSION_NOT_FOUND"
	ErrCodeInsufficientStock       = "INSUFFICIENT_STOCK"
	ErrCodePromoExpired            = "PROMO_EXPIRED"
	ErrCodeMinimumOrderNotMet      = "MINIMUM_ORDER_NOT_MET"
	ErrCodeUsageLimitReached       = "USAGE_LIMIT_REACHED"
	ErrCodePromoAlreadyUsed        = "PROMO_ALREADY_USED"
	ErrCodeBundleNotMet            = "BUNDLE_NOT_MET"
	ErrCodePromoMismatch           = "PROMO_MISMATCH"
	ErrCodePromoExists             = "PROMO_EXISTS"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeDeliveryUnavailable     = "DELIVERY_UNAVAILABLE"
	ErrCodePaymentAmountMismatch   = "PAYMENT_AMOUNT_MISMATCH"
	ErrCodePaymentSessionConsumed  = "PAYMENT_SESSION_CONSUMED"
	ErrCodeInvalidSignature        = "INVALID_SIGNATURE"
	ErrCodeGatewayUnavailable      = "GATEWAY_UNAVAILABLE"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// DomainError is a business rule failure carrying a stable code and a human-readable reason.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so reworded copies still match their sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of the error with a more specific reason.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: message}
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// AsDomainError unwraps err into a DomainError when possible.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain errors
var (
	ErrInvalidRequest  = NewDomainError(KindValidation, ErrCodeInvalidRequest, "Invalid request")
	ErrInvalidQuantity = NewDomainError(KindValidation, ErrCodeInvalidQuantity, "Quantity must be greater than zero")

	ErrCartEmpty              = NewDomainError(KindValidation, ErrCodeCartEmpty, "Cart is empty")
	ErrCartNotFound           = NewDomainError(KindNotFound, ErrCodeCartNotFound, "Cart not found")
	ErrProductNotFound        = NewDomainError(KindNotFound, ErrCodeProductNotFound, "Product not found")
	ErrOrderNotFound          = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrPromoNotFound          = NewDomainError(KindNotFound, ErrCodePromoNotFound, "Invalid or inactive promo code")
	ErrPaymentSessionNotFound = NewDomainError(KindNotFound, ErrCodePaymentSessionNotFound, "Payment session not found")

	ErrInsufficientStock       = NewDomainError(KindConflict, ErrCodeInsufficientStock, "Insufficient stock")
	ErrPromoExpired            = NewDomainError(KindConflict, ErrCodePromoExpired, "Promo code has expired")
	ErrMinimumOrderNotMet      = NewDomainError(KindConflict, ErrCodeMinimumOrderNotMet, "Minimum order value not met")
	ErrUsageLimitReached       = NewDomainError(KindConflict, ErrCodeUsageLimitReached, "Promo code usage limit reached")
	ErrPromoAlreadyUsed        = NewDomainError(KindConflict, ErrCodePromoAlreadyUsed, "You have already used this promo code")
	ErrBundleNotMet            = NewDomainError(KindConflict, ErrCodeBundleNotMet, "Not enough eligible items for this bundle")
	ErrPromoMismatch           = NewDomainError(KindConflict, ErrCodePromoMismatch, "Promo discount does not match the current cart")
	ErrPromoExists             = NewDomainError(KindConflict, ErrCodePromoExists, "Promo code already exists")
	ErrInvalidStatusTransition = NewDomainError(KindConflict, ErrCodeInvalidStatusTransition, "Order status transition not allowed")
	ErrDeliveryUnavailable     = NewDomainError(KindConflict, ErrCodeDeliveryUnavailable, "No courier options available for this pincode")
	ErrPaymentAmountMismatch   = NewDomainError(KindConflict, ErrCodePaymentAmountMismatch, "Payable amount changed since the payment was authorised")
	ErrPaymentSessionConsumed  = NewDomainError(KindConflict, ErrCodePaymentSessionConsumed, "Payment has already been used for an order")

	ErrInvalidSignature = NewDomainError(KindSignature, ErrCodeInvalidSignature, "Invalid payment signature")

	ErrGatewayUnavailable = NewDomainError(KindIntegration, ErrCodeGatewayUnavailable, "Payment service unavailable")
	ErrInternal           = NewDomainError(KindInternal, ErrCodeInternalError, "Internal server error")
)
