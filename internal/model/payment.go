package model

import "time"

// PaymentSessionStatus tracks whether a gateway authorisation has been turned into an order.
type PaymentSessionStatus string

const (
	PaymentSessionCreated  PaymentSessionStatus = "created"
	PaymentSessionConsumed PaymentSessionStatus = "consumed"
)

// PaymentSession records the amount authorised with the gateway so finalization can re-check it.
type PaymentSession struct {
	GatewayOrderID string               `json:"gatewayOrderId"`
	UserID         string               `json:"userId"`
	Amount         Money                `json:"amount"`
	AmountMinor    int64                `json:"amountMinor"`
	Currency       string               `json:"currency"`
	Receipt        string               `json:"receipt"`
	DeliveryRate   Money                `json:"deliveryRate"`
	PromoCode      *string              `json:"promoCode,omitempty"`
	Status         PaymentSessionStatus `json:"status"`
	CreatedAt      time.Time            `json:"createdAt"`
}
