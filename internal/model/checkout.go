package model

import (
	"github.com/google/uuid"
)

// DirectLine is a single ad-hoc item ordered without a cart. The price is always re-derived from the catalogue.
type DirectLine struct {
	ProductID  string     `json:"productId"`
	Quantity   int        `json:"quantity"`
	Variant    Variant    `json:"variant"`
	Dimensions Dimensions `json:"dimensions"`
}

// Validate checks the line before any catalogue lookup.
func (l DirectLine) Validate() error {
	if l.ProductID == "" {
		return ErrInvalidRequest.WithMessage("productId is required")
	}
	if l.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// DeliveryQuoteRequest asks for the cheapest courier rate to a pincode.
type DeliveryQuoteRequest struct {
	Pincode string `json:"pincode"`
	COD     bool   `json:"cod"`
}

// DirectDeliveryQuoteRequest quotes delivery for a single ad-hoc line.
type DirectDeliveryQuoteRequest struct {
	DeliveryQuoteRequest
	Item DirectLine `json:"item"`
}

// DeliveryQuote is the chosen courier option.
type DeliveryQuote struct {
	Rate        Money  `json:"rate"`
	CourierID   int    `json:"courierId"`
	CourierName string `json:"courierName"`
	EtaDays     int    `json:"etaDays"`
}

// ApplyPromoRequest evaluates a promo code against the caller's cart.
type ApplyPromoRequest struct {
	Code string `json:"code"`
}

// PromoResult is the outcome of a successful promo evaluation.
type PromoResult struct {
	DiscountAmount Money     `json:"discountAmount"`
	FinalAmount    Money     `json:"finalAmount"`
	PromoCode      string    `json:"promoCode"`
	PromoCodeID    uuid.UUID `json:"promoCodeId"`
}

// CheckoutRequest carries everything the finalizer needs for a cart checkout.
// PromoCodeDiscount is a client hint and is re-derived server-side. CourierID is
// the quoted courier the shopper picked; zero lets the courier auto-assign.
type CheckoutRequest struct {
	ShippingAddress   Address `json:"shippingAddress"`
	DeliveryRate      Money   `json:"deliveryRate"`
	CourierID         int     `json:"courierId,omitempty"`
	PromoCode         *string `json:"promoCode,omitempty"`
	PromoCodeDiscount *Money  `json:"promoCodeDiscount,omitempty"`
}

// Validate checks request shape.
func (r CheckoutRequest) Validate() error {
	if err := r.ShippingAddress.Validate(); err != nil {
		return err
	}
	if r.DeliveryRate.IsNegative() {
		return ErrInvalidRequest.WithMessage("deliveryRate cannot be negative")
	}
	if r.CourierID < 0 {
		return ErrInvalidRequest.WithMessage("courierId cannot be negative")
	}
	if r.PromoCodeDiscount != nil && r.PromoCodeDiscount.IsNegative() {
		return ErrInvalidRequest.WithMessage("promoCodeDiscount cannot be negative")
	}
	return nil
}

// DirectCheckoutRequest is a CheckoutRequest for a single ad-hoc line.
type DirectCheckoutRequest struct {
	CheckoutRequest
	Item DirectLine `json:"item"`
}

// Validate checks request shape.
func (r DirectCheckoutRequest) Validate() error {
	if err := r.Item.Validate(); err != nil {
		return err
	}
	return r.CheckoutRequest.Validate()
}

// PaymentConfirmation is the gateway callback triple.
type PaymentConfirmation struct {
	GatewayOrderID   string `json:"razorpayOrderId"`
	GatewayPaymentID string `json:"razorpayPaymentId"`
	Signature        string `json:"razorpaySignature"`
}

// ConfirmRequest finalizes a prepaid cart checkout.
type ConfirmRequest struct {
	CheckoutRequest
	Payment PaymentConfirmation `json:"payment"`
}

// DirectConfirmRequest finalizes a prepaid direct checkout.
type DirectConfirmRequest struct {
	DirectCheckoutRequest
	Payment PaymentConfirmation `json:"payment"`
}

// PaymentSessionResponse is returned to the client to open the gateway checkout.
type PaymentSessionResponse struct {
	GatewayOrderID string `json:"razorpayOrderId"`
	Amount         Money  `json:"amount"`
	AmountMinor    int64  `json:"amountMinor"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
}

// UpdateStatusRequest changes an order's status.
type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// CancelOrderRequest cancels an order with a reason.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// SetPromoStatusRequest toggles a promo code.
type SetPromoStatusRequest struct {
	Active bool `json:"active"`
}
