package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderType distinguishes prepaid orders from cash-on-delivery.
type OrderType string

const (
	OrderTypePrepaid OrderType = "prepaid"
	OrderTypeCOD     OrderType = "cod"
)

// InitialStatus returns the status an order of this type is created with.
func (t OrderType) InitialStatus() OrderStatus {
	if t == OrderTypePrepaid {
		return OrderStatusConfirmed
	}
	return OrderStatusPending
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case OrderStatusCancelled:
		return true
	case OrderStatusProcessing:
		return s == OrderStatusPending || s == OrderStatusConfirmed
	case OrderStatusShipped:
		return s == OrderStatusProcessing
	case OrderStatusDelivered:
		return s == OrderStatusShipped
	}
	return false
}

// Address is a shipping address copied into the order.
type Address struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Street         string `json:"street"`
	StreetOptional string `json:"streetOptional,omitempty"`
	City           string `json:"city"`
	State          string `json:"state"`
	ZipCode        string `json:"zipCode"`
	Country        string `json:"country"`
}

// Validate checks the fields a courier needs.
func (a Address) Validate() error {
	switch {
	case a.Name == "":
		return ErrInvalidRequest.WithMessage("shipping address name is required")
	case a.Phone == "":
		return ErrInvalidRequest.WithMessage("shipping address phone is required")
	case a.Street == "":
		return ErrInvalidRequest.WithMessage("shipping address street is required")
	case a.City == "":
		return ErrInvalidRequest.WithMessage("shipping address city is required")
	case a.State == "":
		return ErrInvalidRequest.WithMessage("shipping address state is required")
	case a.ZipCode == "":
		return ErrInvalidRequest.WithMessage("shipping address zip code is required")
	}
	return nil
}

// Order represents a finalized customer order. Totals and items are frozen at creation.
type Order struct {
	ID                 uuid.UUID   `json:"id"`
	UserID             string      `json:"userId"`
	Items              []OrderItem `json:"items"`
	Subtotal           Money       `json:"subtotal"`
	DeliveryRate       Money       `json:"deliveryRate"`
	FreeShipping       bool        `json:"freeShipping"`
	PromoCodeID        *uuid.UUID  `json:"promoCodeId,omitempty"`
	PromoCode          *string     `json:"promoCode,omitempty"`
	PromoCodeDiscount  Money       `json:"promoCodeDiscount"`
	Total              Money       `json:"total"`
	Type               OrderType   `json:"type"`
	Status             OrderStatus `json:"status"`
	ShippingAddress    Address     `json:"shippingAddress"`
	CourierID          int         `json:"courierId,omitempty"`
	PaymentID          *string     `json:"paymentId,omitempty"`
	PaymentOrderID     *string     `json:"paymentOrderId,omitempty"`
	ShipmentID         *string     `json:"shipmentId,omitempty"`
	CourierOrderID     *string     `json:"courierOrderId,omitempty"`
	AWBCode            *string     `json:"awbCode,omitempty"`
	CancellationReason *string     `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// OrderItem is a snapshot of a purchased line.
type OrderItem struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"-"`
	ProductID   string     `json:"productId"`
	ProductName string     `json:"productName"`
	Quantity    int        `json:"quantity"`
	Price       Money      `json:"price"`
	Variant     Variant    `json:"variant"`
	Dimensions  Dimensions `json:"dimensions"`
}
